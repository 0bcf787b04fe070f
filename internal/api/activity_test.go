package api

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(level logrus.Level, workflow, msg string) *logrus.Entry {
	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	if workflow != "" {
		entry = entry.WithField("workflow", workflow)
	}
	entry.Level = level
	entry.Message = msg
	entry.Time = time.Now()
	return entry
}

func TestActivityFeed_Add(t *testing.T) {
	feed := NewActivityFeed(10)

	entry := newEntry(logrus.WarnLevel, "submit", "评分提交失败")
	entry.Data["error"] = errors.New("connection refused")
	entry.Data["status"] = 502
	feed.Add(entry)

	entries, total := feed.Page("", "", 1, 10)
	require.Equal(t, 1, total)
	got := entries[0]
	assert.Equal(t, "warning", got.Level)
	assert.Equal(t, "submit", got.Workflow)
	assert.Equal(t, "评分提交失败", got.Message)
	assert.Equal(t, "connection refused", got.Fields["error"])
	assert.Equal(t, 502, got.Fields["status"])
	assert.NotContains(t, got.Fields, "workflow")
}

func TestActivityFeed_MaxEntries(t *testing.T) {
	feed := NewActivityFeed(3)
	for i := 0; i < 5; i++ {
		feed.Add(newEntry(logrus.InfoLevel, "refresh", fmt.Sprintf("第%d次", i)))
	}

	entries, total := feed.Page("", "", 1, 10)
	assert.Equal(t, 3, total)
	assert.Equal(t, "第4次", entries[0].Message, "最新的在前")
	assert.Equal(t, "第2次", entries[2].Message)
}

func TestActivityFeed_Page(t *testing.T) {
	feed := NewActivityFeed(0)
	feed.Add(newEntry(logrus.InfoLevel, "refresh", "a"))
	feed.Add(newEntry(logrus.WarnLevel, "submit", "b"))
	feed.Add(newEntry(logrus.InfoLevel, "submit", "c"))
	feed.Add(newEntry(logrus.ErrorLevel, "refresh", "d"))

	tests := []struct {
		name      string
		level     string
		workflow  string
		page      int
		pageSize  int
		wantMsgs  []string
		wantTotal int
	}{
		{"全部", "", "", 1, 10, []string{"d", "c", "b", "a"}, 4},
		{"按级别", "info", "", 1, 10, []string{"c", "a"}, 2},
		{"按工作流", "", "submit", 1, 10, []string{"c", "b"}, 2},
		{"组合过滤", "error", "refresh", 1, 10, []string{"d"}, 1},
		{"第二页", "", "", 2, 3, []string{"a"}, 4},
		{"超出范围", "", "", 3, 3, []string{}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, total := feed.Page(tt.level, tt.workflow, tt.page, tt.pageSize)
			assert.Equal(t, tt.wantTotal, total)

			msgs := make([]string, len(entries))
			for i, e := range entries {
				msgs[i] = e.Message
			}
			assert.Equal(t, tt.wantMsgs, msgs)
		})
	}
}

func TestActivityFeed_Clear(t *testing.T) {
	feed := NewActivityFeed(5)
	feed.Add(newEntry(logrus.InfoLevel, "refresh", "a"))

	feed.Clear()

	_, total := feed.Page("", "", 1, 10)
	assert.Zero(t, total)
}

func TestActivityHook(t *testing.T) {
	feed := NewActivityFeed(10)
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(NewActivityHook(feed))

	logger.WithField("workflow", "refresh").Debug("不进入活动流")
	logger.WithField("workflow", "refresh").Info("交易列表刷新完成")
	logger.WithField("workflow", "submit").Warn("评分提交失败")

	entries, total := feed.Page("", "", 1, 10)
	require.Equal(t, 2, total)
	assert.Equal(t, "评分提交失败", entries[0].Message)
	assert.Equal(t, "交易列表刷新完成", entries[1].Message)
}
