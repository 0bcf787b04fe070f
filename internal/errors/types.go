package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType 错误类型
type ErrorType int

const (
	// 评分服务调用失败：网络错误或非2xx状态码
	ErrorTypeTransport ErrorType = iota
	// 响应体结构不符合预期
	ErrorTypeShape
	// 用户输入校验失败
	ErrorTypeValidation

	ErrorTypeConfig
	ErrorTypeEvents
	ErrorTypeSystem
)

// ErrorSeverity 错误严重级别
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// DashboardError 仪表盘统一错误类型
type DashboardError struct {
	Type      ErrorType              `json:"type"`
	Severity  ErrorSeverity          `json:"severity"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error 实现error接口
func (e *DashboardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *DashboardError) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配，配合预定义错误使用
func (e *DashboardError) Is(target error) bool {
	t, ok := target.(*DashboardError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Type == e.Type
}

// WithContext 添加上下文信息
func (e *DashboardError) WithContext(key string, value interface{}) *DashboardError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithComponent 标记出错组件
func (e *DashboardError) WithComponent(component string) *DashboardError {
	e.Component = component
	return e
}

// UserMessage 面向操作员的提示信息
func (e *DashboardError) UserMessage() string {
	return e.Message
}

// NewDashboardError 创建新的错误
func NewDashboardError(errorType ErrorType, severity ErrorSeverity, code, message string) *DashboardError {
	return &DashboardError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WrapError 包装现有错误
func WrapError(err error, errorType ErrorType, severity ErrorSeverity, code, message string) *DashboardError {
	e := NewDashboardError(errorType, severity, code, message)
	e.Cause = err
	return e
}

// NewTransportError 评分服务传输错误
func NewTransportError(code, message string, cause error) *DashboardError {
	return WrapError(cause, ErrorTypeTransport, SeverityMedium, code, message)
}

// NewShapeError 响应结构错误
func NewShapeError(code, message string, cause error) *DashboardError {
	return WrapError(cause, ErrorTypeShape, SeverityMedium, code, message)
}

// NewValidationError 输入校验错误
func NewValidationError(code, message string) *DashboardError {
	return NewDashboardError(ErrorTypeValidation, SeverityLow, code, message)
}

// AsDashboardError 从错误链中取出DashboardError
func AsDashboardError(err error) (*DashboardError, bool) {
	var de *DashboardError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsType 判断错误链中是否含有指定类型的错误
func IsType(err error, errorType ErrorType) bool {
	de, ok := AsDashboardError(err)
	return ok && de.Type == errorType
}

// IsTransport 是否为传输错误
func IsTransport(err error) bool { return IsType(err, ErrorTypeTransport) }

// IsShape 是否为结构错误
func IsShape(err error) bool { return IsType(err, ErrorTypeShape) }

// IsValidation 是否为校验错误
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// 预定义错误码
const (
	CodeListFailed        = "LIST_TRANSACTIONS_FAILED"
	CodeListBadStatus     = "LIST_TRANSACTIONS_BAD_STATUS"
	CodeListNotArray      = "LIST_TRANSACTIONS_NOT_ARRAY"
	CodePredictFailed     = "PREDICT_FAILED"
	CodePredictBadStatus  = "PREDICT_BAD_STATUS"
	CodePredictBadBody    = "PREDICT_BAD_BODY"
	CodeMissingField      = "MISSING_REQUIRED_FIELD"
	CodeUnknownDraftField = "UNKNOWN_DRAFT_FIELD"
)

// 面向用户的提示文案
const (
	MsgFetchFailed  = "Failed to fetch transactions. Please try again later."
	MsgSubmitFailed = "Failed to process transaction"
)

// 预定义错误
var (
	ErrListNotArray = NewShapeError(CodeListNotArray, "交易列表响应不是数组", nil)
	ErrMissingField = NewValidationError(CodeMissingField, "缺少必填字段")
)

// 错误类型字符串映射
var errorTypeNames = map[ErrorType]string{
	ErrorTypeTransport:  "Transport",
	ErrorTypeShape:      "Shape",
	ErrorTypeValidation: "Validation",
	ErrorTypeConfig:     "Config",
	ErrorTypeEvents:     "Events",
	ErrorTypeSystem:     "System",
}

// String 返回错误类型的字符串表示
func (et ErrorType) String() string {
	if name, exists := errorTypeNames[et]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", et)
}

var severityNames = map[ErrorSeverity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

// String 返回严重级别的字符串表示
func (es ErrorSeverity) String() string {
	if name, exists := severityNames[es]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", es)
}

// ErrorStats 错误统计
type ErrorStats struct {
	TotalErrors       int               `json:"total_errors"`
	ErrorsByType      map[ErrorType]int `json:"errors_by_type"`
	ErrorsByComponent map[string]int    `json:"errors_by_component"`
	RecentErrors      []*DashboardError `json:"recent_errors"`
	LastError         *DashboardError   `json:"last_error"`
}

// maxRecentErrors 最多保留的最近错误数
const maxRecentErrors = 50

// NewErrorStats 创建错误统计
func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ErrorsByType:      make(map[ErrorType]int),
		ErrorsByComponent: make(map[string]int),
		RecentErrors:      make([]*DashboardError, 0),
	}
}

// RecordError 记录错误
func (es *ErrorStats) RecordError(err *DashboardError) {
	es.TotalErrors++
	es.ErrorsByType[err.Type]++
	if err.Component != "" {
		es.ErrorsByComponent[err.Component]++
	}
	es.LastError = err

	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > maxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}
