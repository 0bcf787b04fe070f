package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dasherrors "frauddash/internal/errors"
	"frauddash/internal/normalize"
	"frauddash/internal/scorer"
	"frauddash/pkg/models"

	"github.com/sirupsen/logrus"
)

// Result 一次提交的结果，Verdict与Err二者恰有其一
type Result struct {
	Verdict *models.PredictionVerdict
	Err     *models.SubmissionError
	Cause   error
}

// OK 提交是否成功
func (r Result) OK() bool {
	return r.Verdict != nil
}

// Slot 转换为判定结果位
func (r Result) Slot() models.VerdictSlot {
	return models.VerdictSlot{Verdict: r.Verdict, Error: r.Err}
}

// Submitter 评分提交器
type Submitter struct {
	client scorer.Client
	logger *logrus.Logger
}

// NewSubmitter 创建评分提交器
func NewSubmitter(client scorer.Client, logger *logrus.Logger) *Submitter {
	return &Submitter{
		client: client,
		logger: logger,
	}
}

// Submit 提交草稿评分，只发送一次请求；失败时返回带可读信息的失败标记
//
// 必填项校验由调用方负责，这里只做数值转换。
func (s *Submitter) Submit(ctx context.Context, draft models.PredictionDraft) Result {
	req := BuildRequest(draft)
	start := time.Now()

	body, err := s.client.Predict(ctx, req)
	if err != nil {
		return s.failure(err, dasherrors.CodePredictFailed)
	}

	verdict, err := ParseVerdict(body)
	if err != nil {
		return s.failure(err, dasherrors.CodePredictBadBody)
	}

	s.logger.WithFields(logrus.Fields{
		"workflow":      "submit",
		"is_fraud":      verdict.IsFraud,
		"confidence":    verdict.Confidence,
		"anomaly_score": verdict.AnomalyScore,
		"duration":      time.Since(start),
	}).Info("交易评分完成")

	return Result{Verdict: verdict}
}

func (s *Submitter) failure(err error, fallbackCode string) Result {
	code := fallbackCode
	if de, ok := dasherrors.AsDashboardError(err); ok {
		code = de.Code
	}

	message := dasherrors.MsgSubmitFailed
	if detail := serviceMessage(err); detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}

	return Result{
		Err:   &models.SubmissionError{Message: message, Code: code},
		Cause: err,
	}
}

// BuildRequest 草稿转换为评分请求，无法解析的数字按0处理
func BuildRequest(draft models.PredictionDraft) models.PredictRequest {
	return models.PredictRequest{
		FromAddress: strings.TrimSpace(draft.FromAddress),
		ToAddress:   strings.TrimSpace(draft.ToAddress),
		ValueEth:    normalize.Text(draft.ValueEth),
		GasPriceEth: normalize.Text(draft.GasPriceEth),
	}
}

// ParseVerdict 解析评分响应：存在prediction对象时取其内容，否则整个响应即为判定
func ParseVerdict(body []byte) (*models.PredictionVerdict, error) {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, dasherrors.NewShapeError(dasherrors.CodePredictBadBody, "评分响应不是合法JSON", err)
	}

	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil, dasherrors.NewShapeError(dasherrors.CodePredictBadBody, "评分响应不是对象", nil)
	}

	if inner, ok := obj["prediction"].(map[string]interface{}); ok {
		obj = inner
	} else if msg, ok := obj["error"].(string); ok && msg != "" {
		return nil, dasherrors.NewShapeError(dasherrors.CodePredictBadBody, "评分服务返回错误", &serviceError{message: msg})
	}

	return &models.PredictionVerdict{
		IsFraud:      normalize.Bool(obj["is_fraud"]),
		Confidence:   normalize.Number(obj["confidence"]),
		AnomalyScore: normalize.Number(obj["anomaly_score"]),
	}, nil
}

// serviceError 评分服务在响应体中给出的错误信息
type serviceError struct {
	message string
}

func (e *serviceError) Error() string {
	return e.message
}

// serviceMessage 提取评分服务给出的错误信息
func serviceMessage(err error) string {
	var se *serviceError
	if errors.As(err, &se) {
		return se.message
	}

	var status *scorer.StatusError
	if errors.As(err, &status) {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(status.Body, &body) == nil {
			return body.Error
		}
	}
	return ""
}
