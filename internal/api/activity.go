package api

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ActivityEntry 活动流条目
type ActivityEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Workflow  string                 `json:"workflow,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// ActivityFeed 最近的工作流日志
type ActivityFeed struct {
	entries    []ActivityEntry
	maxEntries int
	mu         sync.RWMutex
}

// NewActivityFeed 创建活动流
func NewActivityFeed(maxEntries int) *ActivityFeed {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &ActivityFeed{
		entries:    make([]ActivityEntry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Add 添加日志条目
func (f *ActivityFeed) Add(entry *logrus.Entry) {
	fields := make(map[string]interface{}, len(entry.Data))
	var workflow string
	for k, v := range entry.Data {
		if k == "workflow" {
			workflow, _ = v.(string)
			continue
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fields[k] = v
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, ActivityEntry{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Workflow:  workflow,
		Message:   entry.Message,
		Fields:    fields,
	})

	// 超过最大数量时移除最旧的条目
	if len(f.entries) > f.maxEntries {
		f.entries = f.entries[len(f.entries)-f.maxEntries:]
	}
}

// Page 分页获取，最新的在前；level与workflow为空时不过滤
func (f *ActivityFeed) Page(level, workflow string, page, pageSize int) ([]ActivityEntry, int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	filtered := make([]ActivityEntry, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if level != "" && e.Level != level {
			continue
		}
		if workflow != "" && e.Workflow != workflow {
			continue
		}
		filtered = append(filtered, e)
	}

	total := len(filtered)
	start := (page - 1) * pageSize
	if start >= total {
		return []ActivityEntry{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total
}

// Clear 清空活动流
func (f *ActivityFeed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make([]ActivityEntry, 0, f.maxEntries)
}

// ActivityHook 把工作流日志写入活动流的logrus钩子
type ActivityHook struct {
	feed *ActivityFeed
}

// NewActivityHook 创建活动流钩子
func NewActivityHook(feed *ActivityFeed) *ActivityHook {
	return &ActivityHook{feed: feed}
}

// Fire 实现 logrus.Hook 接口
func (h *ActivityHook) Fire(entry *logrus.Entry) error {
	h.feed.Add(entry)
	return nil
}

// Levels 实现 logrus.Hook 接口，不记录debug与trace
func (h *ActivityHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}
