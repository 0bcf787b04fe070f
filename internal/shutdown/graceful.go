package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// 停机顺序
const (
	OrderStopServer  = 10 // 停止接受API请求
	OrderFlushEvents = 20 // 关闭事件发布器
	OrderCloseStore  = 30 // 关闭配置数据库
)

// defaultTimeout 默认停机超时
const defaultTimeout = 15 * time.Second

// Hook 停机处理函数
type Hook struct {
	Name  string
	Order int // 数字越小越早执行
	Func  func(ctx context.Context) error
}

// Manager 优雅停机管理器
//
// 停机开始时先取消Context()，再按顺序执行已注册的处理函数，全部共享一个超时。
type Manager struct {
	logger  *logrus.Logger
	timeout time.Duration

	mu    sync.Mutex
	hooks []Hook
	errs  []error

	signals chan os.Signal
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	done    chan struct{}
}

// NewManager 创建优雅停机管理器
func NewManager(timeout time.Duration, logger *logrus.Logger) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:  logger,
		timeout: timeout,
		signals: make(chan os.Signal, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Register 注册停机处理函数
func (m *Manager) Register(name string, order int, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, Hook{Name: name, Order: order, Func: fn})
	m.logger.Debugf("注册停机处理函数: %s (order: %d)", name, order)
}

// Listen 监听SIGINT/SIGTERM，收到信号后触发停机
func (m *Manager) Listen() {
	signal.Notify(m.signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-m.signals:
			m.Trigger(fmt.Sprintf("收到信号 %v", sig))
		case <-m.done:
		}
		signal.Stop(m.signals)
	}()
}

// Trigger 触发停机，只有第一次调用生效
func (m *Manager) Trigger(reason string) {
	m.once.Do(func() {
		m.logger.WithField("reason", reason).Info("开始优雅停机")
		m.cancel()
		go m.run()
	})
}

// Context 停机开始时取消
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Done 所有处理函数执行完毕后关闭
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait 等待停机完成，返回处理函数的错误
func (m *Manager) Wait() error {
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.errs...)
}

func (m *Manager) run() {
	defer close(m.done)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Order < hooks[j].Order })

	for _, h := range hooks {
		if ctx.Err() != nil {
			m.record(fmt.Errorf("%s: 停机超时，未执行", h.Name))
			continue
		}

		start := time.Now()
		err := h.Func(ctx)
		entry := m.logger.WithFields(logrus.Fields{"hook": h.Name, "duration": time.Since(start)})
		if err != nil {
			entry.WithError(err).Error("停机处理失败")
			m.record(fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		entry.Info("停机处理完成")
	}

	m.logger.Info("优雅停机流程完成")
}

func (m *Manager) record(err error) {
	m.mu.Lock()
	m.errs = append(m.errs, err)
	m.mu.Unlock()
}
