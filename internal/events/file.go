package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	fileBatchSize     = 100
	fileFlushInterval = time.Second
	fileQueueSize     = 1000
)

// ErrPublisherClosed 发布器已关闭
var ErrPublisherClosed = errors.New("事件发布器已关闭")

// FilePublisher 把事件按JSON行异步写入文件
type FilePublisher struct {
	file   *os.File
	writer *bufio.Writer
	logger *logrus.Logger

	queue  chan Event
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	mu     sync.RWMutex
	done   bool

	batchSize     int
	flushInterval time.Duration
}

// NewFilePublisher 在dir下创建 events_<时间>.jsonl 并启动写入协程
func NewFilePublisher(dir string, logger *logrus.Logger) (*FilePublisher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建事件目录失败: %w", err)
	}

	name := fmt.Sprintf("events_%s.jsonl", time.Now().Format("20060102_150405"))
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("创建事件文件 %s 失败: %w", name, err)
	}

	p := &FilePublisher{
		file:          file,
		writer:        bufio.NewWriter(file),
		logger:        logger,
		queue:         make(chan Event, fileQueueSize),
		closed:        make(chan struct{}),
		batchSize:     fileBatchSize,
		flushInterval: fileFlushInterval,
	}

	p.wg.Add(1)
	go p.run()

	logger.WithField("file", file.Name()).Info("事件文件输出已初始化")
	return p, nil
}

// Path 事件文件路径
func (p *FilePublisher) Path() string {
	return p.file.Name()
}

// Publish 事件入队，队列满时等待直到ctx结束
func (p *FilePublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.done {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("事件入队失败: %w", ctx.Err())
	}
}

// run 批量写入，达到批量大小或定时刷新
func (p *FilePublisher) run() {
	defer p.wg.Done()

	pending := 0
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-p.queue:
			p.write(event)
			pending++
			if pending >= p.batchSize {
				p.flush()
				pending = 0
			}

		case <-ticker.C:
			if pending > 0 {
				p.flush()
				pending = 0
			}

		case <-p.closed:
			// 写入剩余事件
			for {
				select {
				case event := <-p.queue:
					p.write(event)
				default:
					p.flush()
					return
				}
			}
		}
	}
}

func (p *FilePublisher) write(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("序列化事件失败")
		return
	}
	data = append(data, '\n')
	if _, err := p.writer.Write(data); err != nil {
		p.logger.WithError(err).Error("写入事件失败")
	}
}

func (p *FilePublisher) flush() {
	if err := p.writer.Flush(); err != nil {
		p.logger.WithError(err).Error("刷新事件文件失败")
	}
}

// Close 写完队列中的事件后关闭文件
func (p *FilePublisher) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.done = true
		p.mu.Unlock()

		close(p.closed)
		p.wg.Wait()
		err = p.file.Close()
	})
	return err
}
