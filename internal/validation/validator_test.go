package validation

import (
	"testing"

	"frauddash/internal/errors"
	"frauddash/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validFrom = "0x52908400098527886E0F7030069857D2E4169EE7"
	validTo   = "0x8617e340b3d01fa5f11f306f4090fd50e238070d"
)

func TestNewValidator(t *testing.T) {
	logger := logrus.New()
	validator := NewValidator(logger, true)

	assert.NotNil(t, validator)
	assert.True(t, validator.strictMode)
	assert.Equal(t, 3, len(validator.rules)) // 默认注册的规则数量
}

func TestValidateDraft_Valid(t *testing.T) {
	validator := NewValidator(logrus.New(), false)

	result := validator.ValidateDraft(models.PredictionDraft{
		FromAddress: validFrom,
		ToAddress:   validTo,
		ValueEth:    "1.5",
		GasPriceEth: "0.00002",
	})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.NoError(t, result.Err())
}

func TestValidateDraft_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		draft   models.PredictionDraft
		message string
	}{
		{"缺少发送方", models.PredictionDraft{ToAddress: validTo}, "Required fields missing: from_address"},
		{"缺少接收方", models.PredictionDraft{FromAddress: validFrom, ToAddress: "  "}, "Required fields missing: to_address"},
		{"都缺少", models.PredictionDraft{}, "Required fields missing: from_address, to_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewValidator(logrus.New(), false).ValidateDraft(tt.draft)

			assert.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tt.message, result.Message())
			assert.True(t, errors.IsValidation(result.Err()))
			assert.Equal(t, "required", result.Errors[0].Context["rule"])
		})
	}
}

func TestValidateDraft_AddressWarnings(t *testing.T) {
	validator := NewValidator(logrus.New(), false)

	result := validator.ValidateDraft(models.PredictionDraft{
		FromAddress: "0x123abc...",
		ToAddress:   validTo,
	})

	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Not a valid Ethereum address: from_address", result.Warnings[0])
}

func TestValidateDraft_BadChecksum(t *testing.T) {
	validator := NewValidator(logrus.New(), false)

	// 混合大小写但校验和错误
	result := validator.ValidateDraft(models.PredictionDraft{
		FromAddress: "0x52908400098527886e0F7030069857D2E4169EE7",
		ToAddress:   validTo,
	})

	assert.True(t, result.Valid)
	assert.Len(t, result.Warnings, 1)
}

func TestValidateDraft_AmountWarnings(t *testing.T) {
	validator := NewValidator(logrus.New(), false)

	result := validator.ValidateDraft(models.PredictionDraft{
		FromAddress: validFrom,
		ToAddress:   validTo,
		ValueEth:    "abc",
		GasPriceEth: "-1",
	})

	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Not a valid non-negative number: value_eth, gas_price_eth", result.Warnings[0])
}

func TestValidateDraft_StrictMode(t *testing.T) {
	validator := NewValidator(logrus.New(), false)
	validator.SetStrictMode(true)

	result := validator.ValidateDraft(models.PredictionDraft{
		FromAddress: "alice",
		ToAddress:   "bob",
	})

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 1)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, true, validator.GetValidationStats()["strict_mode"])
}

func TestValidateDraft_StrictModeAmountStaysWarning(t *testing.T) {
	tests := []struct {
		name      string
		draft     models.PredictionDraft
		wantValid bool
		wantCodes []string
		warnings  []string
	}{
		{
			name:      "金额无法解析仍可提交",
			draft:     models.PredictionDraft{FromAddress: validFrom, ToAddress: validTo, ValueEth: "abc", GasPriceEth: "1"},
			wantValid: true,
			warnings:  []string{"Not a valid non-negative number: value_eth"},
		},
		{
			name:      "地址错误阻止提交，金额只提示",
			draft:     models.PredictionDraft{FromAddress: "alice", ToAddress: validTo, ValueEth: "-1"},
			wantValid: false,
			wantCodes: []string{"INVALID_ADDRESS_FORMAT"},
			warnings:  []string{"Not a valid non-negative number: value_eth"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewValidator(logrus.New(), true)

			result := validator.ValidateDraft(tt.draft)

			assert.Equal(t, tt.wantValid, result.Valid)
			codes := make([]string, len(result.Errors))
			for i, e := range result.Errors {
				codes[i] = e.Code
			}
			assert.Equal(t, len(tt.wantCodes), len(codes))
			for _, code := range tt.wantCodes {
				assert.Contains(t, codes, code)
			}
			assert.Equal(t, tt.warnings, result.Warnings)
		})
	}
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		addr     string
		expected bool
	}{
		{validFrom, true},
		{validTo, true},
		{"0X8617E340B3D01FA5F11F306F4090FD50E238070D", false},
		{"0x8617E340B3D01FA5F11F306F4090FD50E238070D", true},
		{"0x123", false},
		{"8617e340b3d01fa5f11f306f4090fd50e238070d", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.expected, isValidAddress(tt.addr))
		})
	}
}
