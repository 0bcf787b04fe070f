package errors

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrorCallback 错误回调函数
type ErrorCallback func(err *DashboardError)

// ErrorHandler 工作流边界上的错误处理器：归一化、统计、记录日志、回调
type ErrorHandler struct {
	logger    *logrus.Logger
	stats     *ErrorStats
	callbacks []ErrorCallback
	mu        sync.RWMutex
}

// NewErrorHandler 创建错误处理器
func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:    logger,
		stats:     NewErrorStats(),
		callbacks: make([]ErrorCallback, 0),
	}
}

// Handle 处理错误并返回归一化后的DashboardError，err为nil时返回nil
func (eh *ErrorHandler) Handle(err error, component string) *DashboardError {
	if err == nil {
		return nil
	}

	de, ok := AsDashboardError(err)
	if !ok {
		de = WrapError(err, ErrorTypeSystem, SeverityMedium, "UNKNOWN_ERROR", "未知错误")
	}
	if de.Component == "" {
		de.Component = component
	}

	eh.mu.Lock()
	eh.stats.RecordError(de)
	callbacks := make([]ErrorCallback, len(eh.callbacks))
	copy(callbacks, eh.callbacks)
	eh.mu.Unlock()

	eh.log(de)

	for _, cb := range callbacks {
		eh.safeCallback(cb, de)
	}

	return de
}

// log 根据严重级别选择日志级别
func (eh *ErrorHandler) log(err *DashboardError) {
	entry := eh.logger.WithFields(logrus.Fields{
		"error_type": err.Type.String(),
		"error_code": err.Code,
		"component":  err.Component,
	})
	if len(err.Context) > 0 {
		entry = entry.WithField("context", err.Context)
	}
	if err.Cause != nil {
		entry = entry.WithError(err.Cause)
	}

	switch err.Severity {
	case SeverityLow:
		entry.Debug(err.Message)
	case SeverityMedium:
		entry.Warn(err.Message)
	default:
		entry.Error(err.Message)
	}
}

// safeCallback 回调panic不影响工作流
func (eh *ErrorHandler) safeCallback(cb ErrorCallback, err *DashboardError) {
	defer func() {
		if r := recover(); r != nil {
			eh.logger.Errorf("错误回调执行时发生panic: %v", r)
		}
	}()
	cb(err)
}

// AddCallback 添加错误回调
func (eh *ErrorHandler) AddCallback(callback ErrorCallback) {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.callbacks = append(eh.callbacks, callback)
}

// GetStats 获取错误统计信息的副本
func (eh *ErrorHandler) GetStats() ErrorStats {
	eh.mu.RLock()
	defer eh.mu.RUnlock()

	cp := ErrorStats{
		TotalErrors:       eh.stats.TotalErrors,
		ErrorsByType:      make(map[ErrorType]int, len(eh.stats.ErrorsByType)),
		ErrorsByComponent: make(map[string]int, len(eh.stats.ErrorsByComponent)),
		RecentErrors:      append([]*DashboardError(nil), eh.stats.RecentErrors...),
		LastError:         eh.stats.LastError,
	}
	for k, v := range eh.stats.ErrorsByType {
		cp.ErrorsByType[k] = v
	}
	for k, v := range eh.stats.ErrorsByComponent {
		cp.ErrorsByComponent[k] = v
	}
	return cp
}

// ClearStats 清除统计信息
func (eh *ErrorHandler) ClearStats() {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.stats = NewErrorStats()
}
