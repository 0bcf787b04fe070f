package events

import (
	"context"
	"fmt"
	"time"

	"frauddash/internal/config"
	"frauddash/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind 事件类型
type Kind string

const (
	KindVerdict Kind = "verdict"
	KindRefresh Kind = "refresh"
)

// Event 仪表盘工作流事件
type Event struct {
	ID        string                    `json:"id"`
	Kind      Kind                      `json:"kind"`
	Timestamp time.Time                 `json:"timestamp"`
	Request   *models.PredictRequest    `json:"request,omitempty"`
	Verdict   *models.PredictionVerdict `json:"verdict,omitempty"`
	Failure   *models.SubmissionError   `json:"failure,omitempty"`
	Stats     *models.AggregateStats    `json:"stats,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

// NewVerdictEvent 提交完成事件
func NewVerdictEvent(req models.PredictRequest, slot models.VerdictSlot) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      KindVerdict,
		Timestamp: time.Now().UTC(),
		Request:   &req,
		Verdict:   slot.Verdict,
		Failure:   slot.Error,
	}
}

// NewRefreshEvent 刷新完成事件，失败时只带错误信息
func NewRefreshEvent(stats models.AggregateStats, fetchErr string) Event {
	e := Event{
		ID:        uuid.NewString(),
		Kind:      KindRefresh,
		Timestamp: time.Now().UTC(),
		Error:     fetchErr,
	}
	if fetchErr == "" {
		e.Stats = &stats
	}
	return e
}

// Publisher 事件发布器
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

// Publish 实现Publisher接口
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 实现Publisher接口
func (NopPublisher) Close() error { return nil }

// LogPublisher 把事件写入日志
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher 创建日志事件发布器
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish 实现Publisher接口
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	entry := p.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_kind": string(event.Kind),
	})

	switch {
	case event.Verdict != nil:
		entry = entry.WithFields(logrus.Fields{
			"is_fraud":      event.Verdict.IsFraud,
			"confidence":    event.Verdict.Confidence,
			"anomaly_score": event.Verdict.AnomalyScore,
		})
	case event.Failure != nil:
		entry = entry.WithField("failure", event.Failure.Message)
	case event.Stats != nil:
		entry = entry.WithFields(logrus.Fields{
			"total":      event.Stats.TotalTransactions,
			"fraudulent": event.Stats.FraudulentTransactions,
		})
	case event.Error != "":
		entry = entry.WithField("error", event.Error)
	}

	entry.Info("仪表盘事件")
	return nil
}

// Close 实现Publisher接口
func (p *LogPublisher) Close() error { return nil }

// NewPublisher 按配置创建事件发布器
func NewPublisher(cfg *config.EventsConfig, logger *logrus.Logger) (Publisher, error) {
	if cfg == nil {
		return NopPublisher{}, nil
	}

	switch cfg.Sink {
	case "", "none":
		return NopPublisher{}, nil
	case "log":
		return NewLogPublisher(logger), nil
	case "file":
		return NewFilePublisher(cfg.Dir, logger)
	case "kafka":
		if cfg.Kafka == nil {
			return nil, fmt.Errorf("kafka事件输出缺少配置")
		}
		return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
	default:
		return nil, fmt.Errorf("不支持的事件输出: %s", cfg.Sink)
	}
}
