package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"frauddash/internal/config"
	dasherrors "frauddash/internal/errors"
	"frauddash/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// maxBodySize 响应体读取上限
const maxBodySize = 10 << 20

// Client 评分服务客户端
type Client interface {
	// ListTransactions 获取已评分交易列表的原始响应体
	ListTransactions(ctx context.Context) ([]byte, error)
	// Predict 提交一笔交易评分，返回原始响应体
	Predict(ctx context.Context, req models.PredictRequest) ([]byte, error)
}

// StatusError 非2xx响应
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s 返回状态码 %d: %s", e.Method, e.URL, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Option 客户端选项
type Option func(*HTTPClient)

// WithHTTPClient 指定底层http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithHeader 为所有请求添加请求头
func WithHeader(key, value string) Option {
	return func(c *HTTPClient) {
		c.headers[key] = value
	}
}

// HTTPClient 基于HTTP/JSON的评分服务客户端，每次调用只发送一次请求
type HTTPClient struct {
	httpClient       *http.Client
	baseURL          string
	transactionsPath string
	predictPath      string
	headers          map[string]string
	logger           *logrus.Logger
}

// NewHTTPClient 创建评分服务客户端
func NewHTTPClient(cfg *config.ScorerConfig, logger *logrus.Logger, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		httpClient:       &http.Client{Timeout: cfg.TimeoutDuration()},
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		transactionsPath: cfg.TransactionsPath,
		predictPath:      cfg.PredictPath,
		headers: map[string]string{
			"Accept": "application/json",
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTransactions 实现Client接口
func (c *HTTPClient) ListTransactions(ctx context.Context) ([]byte, error) {
	body, err := c.do(ctx, http.MethodGet, c.transactionsPath, nil)
	if err != nil {
		return nil, classify(err, dasherrors.CodeListFailed, dasherrors.CodeListBadStatus, "获取交易列表失败")
	}
	return body, nil
}

// Predict 实现Client接口
func (c *HTTPClient) Predict(ctx context.Context, req models.PredictRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, dasherrors.NewShapeError(dasherrors.CodePredictBadBody, "序列化评分请求失败", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.predictPath, payload)
	if err != nil {
		return nil, classify(err, dasherrors.CodePredictFailed, dasherrors.CodePredictBadStatus, "提交评分请求失败")
	}
	return body, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	url := c.baseURL + path
	requestID := uuid.NewString()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"method":     method,
			"url":        url,
			"request_id": requestID,
		}).WithError(err).Debug("评分服务请求失败")
		return nil, fmt.Errorf("请求评分服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":     method,
		"url":        url,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   time.Since(start),
	}).Debug("评分服务请求完成")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// classify 所有网络与状态错误都归为传输错误
func classify(err error, failedCode, statusCode, message string) error {
	if se, ok := err.(*StatusError); ok {
		return dasherrors.NewTransportError(statusCode, message, se).WithContext("status", se.StatusCode)
	}
	return dasherrors.NewTransportError(failedCode, message, err)
}
