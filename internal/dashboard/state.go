package dashboard

import (
	"fmt"
	"time"

	"frauddash/pkg/models"
)

// FetchState 交易列表获取状态
type FetchState int

const (
	FetchIdle FetchState = iota
	FetchLoading
	FetchReady
	FetchError
)

var fetchStateNames = map[FetchState]string{
	FetchIdle:    "idle",
	FetchLoading: "loading",
	FetchReady:   "ready",
	FetchError:   "error",
}

// String 返回状态名
func (s FetchState) String() string {
	if name, ok := fetchStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", s)
}

// MarshalText 以状态名序列化
func (s FetchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SubmitState 评分提交状态
type SubmitState int

const (
	SubmitIdle SubmitState = iota
	SubmitSubmitting
	SubmitSucceeded
	SubmitFailed
)

var submitStateNames = map[SubmitState]string{
	SubmitIdle:       "idle",
	SubmitSubmitting: "submitting",
	SubmitSucceeded:  "succeeded",
	SubmitFailed:     "failed",
}

// String 返回状态名
func (s SubmitState) String() string {
	if name, ok := submitStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", s)
}

// MarshalText 以状态名序列化
func (s SubmitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot 渲染层读取的只读状态
type Snapshot struct {
	Records         []models.TransactionRecord `json:"records"`
	Stats           models.AggregateStats      `json:"stats"`
	Trend           []models.TrendPoint        `json:"trend"`
	Verdict         models.VerdictSlot         `json:"verdict"`
	Loading         bool                       `json:"loading"`
	Error           string                     `json:"error,omitempty"`
	FetchState      FetchState                 `json:"fetch_state"`
	SubmitState     SubmitState                `json:"submit_state"`
	Draft           models.PredictionDraft     `json:"draft"`
	ValidationError string                     `json:"validation_error,omitempty"`
	Warnings        []string                   `json:"warnings,omitempty"`
	LastRefreshed   time.Time                  `json:"last_refreshed"`
}
