package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 草稿字段名（与评分服务的线上字段一致）
const (
	FieldFromAddress = "from_address"
	FieldToAddress   = "to_address"
	FieldValueEth    = "value_eth"
	FieldGasPriceEth = "gas_price_eth"
)

// PredictionDraft 用户正在编辑的待评分交易
type PredictionDraft struct {
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	ValueEth    string `json:"value_eth"`     // 原始文本，提交时再解析
	GasPriceEth string `json:"gas_price_eth"` // 原始文本，提交时再解析
}

// Set 按字段名更新草稿
func (d *PredictionDraft) Set(field, value string) error {
	switch field {
	case FieldFromAddress:
		d.FromAddress = value
	case FieldToAddress:
		d.ToAddress = value
	case FieldValueEth:
		d.ValueEth = value
	case FieldGasPriceEth:
		d.GasPriceEth = value
	default:
		return fmt.Errorf("未知的草稿字段: %s", field)
	}
	return nil
}

// MissingFields 返回为空的必填字段
func (d PredictionDraft) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(d.FromAddress) == "" {
		missing = append(missing, FieldFromAddress)
	}
	if strings.TrimSpace(d.ToAddress) == "" {
		missing = append(missing, FieldToAddress)
	}
	return missing
}

// PredictRequest 评分请求体，数值字段已转换为数字
type PredictRequest struct {
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	ValueEth    float64 `json:"value_eth"`
	GasPriceEth float64 `json:"gas_price_eth"`
}

// PredictionVerdict 评分服务对单笔交易的判定
type PredictionVerdict struct {
	IsFraud      bool    `json:"is_fraud"`
	Confidence   float64 `json:"confidence"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// Label 判定结果文案
func (v PredictionVerdict) Label() string {
	if v.IsFraud {
		return "Suspicious Transaction Detected!"
	}
	return "Normal Transaction"
}

// FormatConfidence 置信度，保留2位小数
func (v PredictionVerdict) FormatConfidence() string {
	return fmt.Sprintf("%.2f", v.Confidence)
}

// FormatAnomalyScore 异常分，保留4位小数
func (v PredictionVerdict) FormatAnomalyScore() string {
	return fmt.Sprintf("%.4f", v.AnomalyScore)
}

// SubmissionError 提交失败标记，占据判定结果的位置
type SubmissionError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// VerdictSlot 判定结果位：要么是判定，要么是失败标记，或者都为空
type VerdictSlot struct {
	Verdict *PredictionVerdict `json:"verdict,omitempty"`
	Error   *SubmissionError   `json:"error,omitempty"`
}

// MarshalJSON 尚未提交过时输出null
func (s VerdictSlot) MarshalJSON() ([]byte, error) {
	if s.Verdict == nil && s.Error == nil {
		return []byte("null"), nil
	}
	type slot VerdictSlot
	return json.Marshal(slot(s))
}

// IsEmpty 尚未提交过
func (s *VerdictSlot) IsEmpty() bool {
	return s == nil || (s.Verdict == nil && s.Error == nil)
}

// Failed 最近一次提交是否失败
func (s *VerdictSlot) Failed() bool {
	return s != nil && s.Error != nil
}
