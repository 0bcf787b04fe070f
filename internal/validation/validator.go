package validation

import (
	"fmt"
	"regexp"
	"strings"

	"frauddash/internal/errors"
	"frauddash/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Validator 草稿验证器
type Validator struct {
	logger     *logrus.Logger
	strictMode bool // 严格模式：地址格式错误也视为错误
	rules      []ValidationRule
}

// ValidationRule 验证规则接口
type ValidationRule interface {
	Validate(draft models.PredictionDraft) error
	Name() string
	Description() string
	// Blocking 为true时违反规则会阻止提交
	Blocking() bool
}

// advisoryRule 严格模式下仍只给出提示的规则
type advisoryRule interface {
	Advisory() bool
}

// blocks 规则违反时是否阻止提交
func (v *Validator) blocks(rule ValidationRule) bool {
	if rule.Blocking() {
		return true
	}
	if a, ok := rule.(advisoryRule); ok && a.Advisory() {
		return false
	}
	return v.strictMode
}

// ValidationResult 验证结果
type ValidationResult struct {
	Valid    bool                     `json:"valid"`
	Errors   []*errors.DashboardError `json:"errors,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// Message 合并后的错误信息
func (r *ValidationResult) Message() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.UserMessage())
	}
	return strings.Join(msgs, "; ")
}

// Err 第一个错误，验证通过时为nil
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// NewValidator 创建草稿验证器
func NewValidator(logger *logrus.Logger, strictMode bool) *Validator {
	v := &Validator{
		logger:     logger,
		strictMode: strictMode,
	}

	// 注册默认验证规则，必填项放在最前
	v.AddRule(NewRequiredFieldsRule())
	v.AddRule(NewAddressValidationRule())
	v.AddRule(NewAmountValidationRule())

	return v
}

// AddRule 添加验证规则
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
	v.logger.Debugf("已注册验证规则: %s", rule.Name())
}

// ValidateDraft 验证草稿
func (v *Validator) ValidateDraft(draft models.PredictionDraft) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]*errors.DashboardError, 0),
		Warnings: make([]string, 0),
	}

	for _, rule := range v.rules {
		err := rule.Validate(draft)
		if err == nil {
			continue
		}

		de, ok := errors.AsDashboardError(err)
		if !ok {
			de = errors.WrapError(err, errors.ErrorTypeValidation, errors.SeverityMedium,
				"DRAFT_RULE_FAILED", fmt.Sprintf("规则 %s 验证失败", rule.Name()))
		}

		if v.blocks(rule) {
			result.Valid = false
			result.Errors = append(result.Errors, de.WithContext("rule", rule.Name()))
		} else {
			result.Warnings = append(result.Warnings, de.UserMessage())
		}
	}

	if !result.Valid {
		v.logger.WithField("errors", result.Message()).Debug("草稿验证失败")
	}
	return result
}

// GetValidationStats 获取验证统计信息
func (v *Validator) GetValidationStats() map[string]interface{} {
	return map[string]interface{}{
		"strict_mode":      v.strictMode,
		"registered_rules": len(v.rules),
	}
}

// SetStrictMode 设置严格模式
func (v *Validator) SetStrictMode(strict bool) {
	v.strictMode = strict
	v.logger.Infof("验证器严格模式设置为: %t", strict)
}

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// isValidAddress 以太坊地址格式校验，混合大小写时要求校验和正确
func isValidAddress(addr string) bool {
	if !hexAddressPattern.MatchString(addr) {
		return false
	}
	body := addr[2:]
	if strings.ToLower(body) == body || strings.ToUpper(body) == body {
		return common.IsHexAddress(addr)
	}
	return common.HexToAddress(addr).Hex() == addr
}

// RequiredFieldsRule 必填字段规则
type RequiredFieldsRule struct{}

func NewRequiredFieldsRule() *RequiredFieldsRule {
	return &RequiredFieldsRule{}
}

func (r *RequiredFieldsRule) Name() string {
	return "required"
}

func (r *RequiredFieldsRule) Description() string {
	return "发送方与接收方地址必填"
}

func (r *RequiredFieldsRule) Blocking() bool { return true }

func (r *RequiredFieldsRule) Validate(draft models.PredictionDraft) error {
	missing := draft.MissingFields()
	if len(missing) == 0 {
		return nil
	}
	return errors.NewValidationError(errors.CodeMissingField,
		fmt.Sprintf("Required fields missing: %s", strings.Join(missing, ", "))).
		WithContext("fields", missing)
}

// AddressValidationRule 地址格式规则，只提示不阻塞
type AddressValidationRule struct{}

func NewAddressValidationRule() *AddressValidationRule {
	return &AddressValidationRule{}
}

func (r *AddressValidationRule) Name() string {
	return "address"
}

func (r *AddressValidationRule) Description() string {
	return "以太坊地址格式提示"
}

func (r *AddressValidationRule) Blocking() bool { return false }

func (r *AddressValidationRule) Validate(draft models.PredictionDraft) error {
	var invalid []string
	for _, field := range []struct{ name, value string }{
		{models.FieldFromAddress, draft.FromAddress},
		{models.FieldToAddress, draft.ToAddress},
	} {
		addr := strings.TrimSpace(field.value)
		if addr != "" && !isValidAddress(addr) {
			invalid = append(invalid, field.name)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return errors.NewDashboardError(errors.ErrorTypeValidation, errors.SeverityLow,
		"INVALID_ADDRESS_FORMAT", fmt.Sprintf("Not a valid Ethereum address: %s", strings.Join(invalid, ", ")))
}

// AmountValidationRule 金额文本规则
type AmountValidationRule struct{}

func NewAmountValidationRule() *AmountValidationRule {
	return &AmountValidationRule{}
}

func (r *AmountValidationRule) Name() string {
	return "amount"
}

func (r *AmountValidationRule) Description() string {
	return "金额与Gas价格格式提示"
}

func (r *AmountValidationRule) Blocking() bool { return false }

// Advisory 金额文本无法解析时按0提交，严格模式也不阻塞
func (r *AmountValidationRule) Advisory() bool { return true }

func (r *AmountValidationRule) Validate(draft models.PredictionDraft) error {
	var invalid []string
	for _, field := range []struct{ name, value string }{
		{models.FieldValueEth, draft.ValueEth},
		{models.FieldGasPriceEth, draft.GasPriceEth},
	} {
		text := strings.TrimSpace(field.value)
		if text == "" {
			continue
		}
		if f, err := cast.ToFloat64E(text); err != nil || f < 0 {
			invalid = append(invalid, field.name)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return errors.NewDashboardError(errors.ErrorTypeValidation, errors.SeverityLow,
		"INVALID_AMOUNT", fmt.Sprintf("Not a valid non-negative number: %s", strings.Join(invalid, ", ")))
}
