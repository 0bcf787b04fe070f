package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	dasherrors "frauddash/internal/errors"
	"frauddash/internal/events"
	"frauddash/internal/normalize"
	"frauddash/internal/scorer"
	"frauddash/internal/stats"
	"frauddash/internal/submit"
	"frauddash/internal/validation"
	"frauddash/pkg/models"

	"github.com/sirupsen/logrus"
)

// publishTimeout 单个事件的发布超时
const publishTimeout = 5 * time.Second

// Option 控制器选项
type Option func(*Controller)

// WithPublisher 设置事件发布器
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithErrorHandler 设置错误处理器
func WithErrorHandler(h *dasherrors.ErrorHandler) Option {
	return func(c *Controller) {
		c.errHandler = h
	}
}

// WithValidator 设置草稿验证器
func WithValidator(v *validation.Validator) Option {
	return func(c *Controller) {
		c.validator = v
	}
}

// Controller 仪表盘状态控制器
//
// 刷新与提交可以在不同goroutine上并发执行。每次完成时整体替换自己负责的状态
// （记录与统计一起替换，判定结果单独替换），不做请求隔离，后完成的覆盖先完成的。
type Controller struct {
	client     scorer.Client
	submitter  *submit.Submitter
	validator  *validation.Validator
	publisher  events.Publisher
	errHandler *dasherrors.ErrorHandler
	logger     *logrus.Logger

	mu            sync.RWMutex
	records       []models.TransactionRecord
	stats         models.AggregateStats
	verdict       models.VerdictSlot
	fetchErr      string
	fetchState    FetchState // 最近一次完成的刷新结果
	submitState   SubmitState
	refreshing    int // 进行中的刷新数
	submitting    int // 进行中的提交数
	draft         models.PredictionDraft
	validationErr string
	warnings      []string
	lastRefreshed time.Time
}

// NewController 创建仪表盘控制器
func NewController(client scorer.Client, logger *logrus.Logger, opts ...Option) *Controller {
	c := &Controller{
		client:    client,
		submitter: submit.NewSubmitter(client, logger),
		publisher: events.NopPublisher{},
		logger:    logger,
		records:   make([]models.TransactionRecord, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.errHandler == nil {
		c.errHandler = dasherrors.NewErrorHandler(logger)
	}
	if c.validator == nil {
		c.validator = validation.NewValidator(logger, false)
	}
	return c
}

// Start 激活时执行一次刷新，刷新失败不影响启动
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("仪表盘控制器启动，开始首次刷新")
	return c.Refresh(ctx)
}

// Refresh 获取并归一化交易列表
//
// 成功时整体替换记录与统计并清除错误；失败时保留原有记录，只设置错误信息。
// 调用方主动取消时不改动共享状态，只返回错误。
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshing++
	c.mu.Unlock()

	// 加载标记在结果写入的同一临界区内清除，panic时由defer兜底
	settled := false
	defer func() {
		if !settled {
			c.mu.Lock()
			c.refreshing--
			c.mu.Unlock()
		}
	}()

	start := time.Now()
	records, err := c.fetch(ctx)

	var aggregate models.AggregateStats
	if err == nil {
		aggregate = stats.Aggregate(records)
	}

	canceled := err != nil && errors.Is(ctx.Err(), context.Canceled)

	c.mu.Lock()
	c.refreshing--
	settled = true
	switch {
	case canceled:
		// 保留原状态
	case err != nil:
		c.fetchErr = dasherrors.MsgFetchFailed
		c.fetchState = FetchError
	default:
		c.records = records
		c.stats = aggregate
		c.fetchErr = ""
		c.fetchState = FetchReady
		c.lastRefreshed = time.Now()
	}
	c.mu.Unlock()

	if canceled {
		c.logger.WithField("workflow", "refresh").Debug("刷新已被调用方取消")
		return err
	}
	if err != nil {
		c.errHandler.Handle(err, "refresh")
		c.publish(ctx, events.NewRefreshEvent(models.AggregateStats{}, dasherrors.MsgFetchFailed))
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"workflow":   "refresh",
		"records":    aggregate.TotalTransactions,
		"fraudulent": aggregate.FraudulentTransactions,
		"duration":   time.Since(start),
	}).Info("交易列表刷新完成")

	c.publish(ctx, events.NewRefreshEvent(aggregate, ""))
	return nil
}

func (c *Controller) fetch(ctx context.Context) ([]models.TransactionRecord, error) {
	body, err := c.client.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return normalize.Records(body)
}

// Submit 提交草稿评分
//
// 必填项缺失时直接返回校验错误，不发请求也不刷新。否则无论成功失败，
// 都会替换判定结果位并随后刷新交易列表。返回的error只表示校验失败。
func (c *Controller) Submit(ctx context.Context, draft models.PredictionDraft) (submit.Result, error) {
	check := c.validator.ValidateDraft(draft)

	c.mu.Lock()
	c.warnings = check.Warnings
	if !check.Valid {
		c.validationErr = check.Message()
		c.mu.Unlock()

		c.errHandler.Handle(check.Err(), "submit")
		return submit.Result{}, check.Err()
	}
	c.validationErr = ""
	c.submitting++
	c.mu.Unlock()

	result := c.submitter.Submit(ctx, draft)

	c.mu.Lock()
	c.submitting--
	c.verdict = result.Slot()
	if result.OK() {
		c.submitState = SubmitSucceeded
	} else {
		c.submitState = SubmitFailed
	}
	c.mu.Unlock()

	if result.Cause != nil {
		c.errHandler.Handle(result.Cause, "submit")
	}
	c.publish(ctx, events.NewVerdictEvent(submit.BuildRequest(draft), result.Slot()))

	// 提交后总是重新获取列表，刷新失败时以刷新错误为准。
	// 刷新结果写入共享状态，不随调用方取消而中断
	_ = c.Refresh(context.WithoutCancel(ctx))

	return result, nil
}

// SubmitDraft 提交当前编辑中的草稿，草稿提交后不清空
func (c *Controller) SubmitDraft(ctx context.Context) (submit.Result, error) {
	return c.Submit(ctx, c.Draft())
}

// UpdateDraft 按字段名更新草稿
func (c *Controller) UpdateDraft(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.draft.Set(field, value); err != nil {
		return dasherrors.WrapError(err, dasherrors.ErrorTypeValidation, dasherrors.SeverityLow,
			dasherrors.CodeUnknownDraftField, "未知的草稿字段").WithContext("field", field)
	}
	return nil
}

// Draft 当前草稿
func (c *Controller) Draft() models.PredictionDraft {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draft
}

// Snapshot 当前状态快照
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]models.TransactionRecord, len(c.records))
	copy(records, c.records)

	fetchState := c.fetchState
	if c.refreshing > 0 {
		fetchState = FetchLoading
	}
	submitState := c.submitState
	if c.submitting > 0 {
		submitState = SubmitSubmitting
	}

	return Snapshot{
		Records:         records,
		Stats:           c.stats,
		Trend:           stats.Trend(records),
		Verdict:         copySlot(c.verdict),
		Loading:         c.refreshing > 0,
		Error:           c.fetchErr,
		FetchState:      fetchState,
		SubmitState:     submitState,
		Draft:           c.draft,
		ValidationError: c.validationErr,
		Warnings:        append([]string(nil), c.warnings...),
		LastRefreshed:   c.lastRefreshed,
	}
}

// ErrorStats 工作流错误统计
func (c *Controller) ErrorStats() dasherrors.ErrorStats {
	return c.errHandler.GetStats()
}

// publish 事件发布失败只记录日志，不影响仪表盘状态
func (c *Controller) publish(ctx context.Context, event events.Event) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := c.publisher.Publish(pctx, event); err != nil {
		c.errHandler.Handle(dasherrors.WrapError(err, dasherrors.ErrorTypeEvents, dasherrors.SeverityLow,
			"EVENT_PUBLISH_FAILED", "发布仪表盘事件失败").WithContext("event_kind", string(event.Kind)), "events")
	}
}

func copySlot(s models.VerdictSlot) models.VerdictSlot {
	out := models.VerdictSlot{}
	if s.Verdict != nil {
		v := *s.Verdict
		out.Verdict = &v
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}
