package submit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"frauddash/internal/config"
	dasherrors "frauddash/internal/errors"
	"frauddash/internal/mockscorer"
	"frauddash/internal/scorer"
	"frauddash/internal/scorer/mocks"
	"frauddash/pkg/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name     string
		draft    models.PredictionDraft
		expected models.PredictRequest
	}{
		{
			name:     "数字文本",
			draft:    models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB", ValueEth: "1.5", GasPriceEth: "0.00002"},
			expected: models.PredictRequest{FromAddress: "0xA", ToAddress: "0xB", ValueEth: 1.5, GasPriceEth: 0.00002},
		},
		{
			name:     "无法解析按0处理",
			draft:    models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB", ValueEth: "abc", GasPriceEth: ""},
			expected: models.PredictRequest{FromAddress: "0xA", ToAddress: "0xB"},
		},
		{
			name:     "去除地址空白",
			draft:    models.PredictionDraft{FromAddress: " 0xA ", ToAddress: "0xB\n", ValueEth: " 2 "},
			expected: models.PredictRequest{FromAddress: "0xA", ToAddress: "0xB", ValueEth: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildRequest(tt.draft))
		})
	}
}

func TestParseVerdict_EnvelopeAndPassthrough(t *testing.T) {
	expected := &models.PredictionVerdict{IsFraud: true, Confidence: 0.9, AnomalyScore: 0}

	wrapped, err := ParseVerdict([]byte(`{"prediction": {"is_fraud": true, "confidence": 0.9}}`))
	require.NoError(t, err)
	unwrapped, err := ParseVerdict([]byte(`{"is_fraud": true, "confidence": 0.9}`))
	require.NoError(t, err)

	assert.Equal(t, expected, wrapped)
	assert.Equal(t, expected, unwrapped)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		expected  *models.PredictionVerdict
		wantShape bool
	}{
		{"完整字段", `{"is_fraud": false, "confidence": 0.85, "anomaly_score": -0.23}`, &models.PredictionVerdict{Confidence: 0.85, AnomalyScore: -0.23}, false},
		{"数字文本", `{"is_fraud": "true", "confidence": "0.5", "anomaly_score": "x"}`, &models.PredictionVerdict{IsFraud: true, Confidence: 0.5}, false},
		{"prediction非对象时透传", `{"prediction": null, "is_fraud": true}`, &models.PredictionVerdict{IsFraud: true}, false},
		{"空对象", `{}`, &models.PredictionVerdict{}, false},
		{"错误对象", `{"error": "model unavailable"}`, nil, true},
		{"数组", `[1, 2]`, nil, true},
		{"非JSON", `Internal Server Error`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := ParseVerdict([]byte(tt.body))
			if tt.wantShape {
				require.Error(t, err)
				assert.True(t, dasherrors.IsShape(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, verdict)
		})
	}
}

func TestSubmitter_Submit_Success(t *testing.T) {
	client := new(mocks.Client)
	logger, _ := test.NewNullLogger()
	submitter := NewSubmitter(client, logger)

	draft := models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB", ValueEth: "1.5", GasPriceEth: "0.00002"}
	expectedReq := models.PredictRequest{FromAddress: "0xA", ToAddress: "0xB", ValueEth: 1.5, GasPriceEth: 0.00002}

	client.On("Predict", mock.Anything, expectedReq).
		Return([]byte(`{"prediction": {"is_fraud": true, "confidence": 0.9}}`), nil).Once()

	result := submitter.Submit(context.Background(), draft)

	require.True(t, result.OK())
	assert.Nil(t, result.Err)
	assert.Equal(t, &models.PredictionVerdict{IsFraud: true, Confidence: 0.9}, result.Verdict)
	client.AssertExpectations(t)
}

func TestSubmitter_Submit_TransportFailure(t *testing.T) {
	client := new(mocks.Client)
	logger, _ := test.NewNullLogger()
	submitter := NewSubmitter(client, logger)

	cause := dasherrors.NewTransportError(dasherrors.CodePredictFailed, "提交评分请求失败", errors.New("connection refused"))
	client.On("Predict", mock.Anything, mock.Anything).Return(nil, cause).Once()

	result := submitter.Submit(context.Background(), models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB"})

	assert.False(t, result.OK())
	require.NotNil(t, result.Err)
	assert.Equal(t, dasherrors.MsgSubmitFailed, result.Err.Message)
	assert.Equal(t, dasherrors.CodePredictFailed, result.Err.Code)
	assert.ErrorIs(t, result.Cause, cause)

	slot := result.Slot()
	assert.True(t, slot.Failed())
	client.AssertNumberOfCalls(t, "Predict", 1)
}

func TestSubmitter_Submit_MalformedBody(t *testing.T) {
	client := new(mocks.Client)
	logger, _ := test.NewNullLogger()
	submitter := NewSubmitter(client, logger)

	client.On("Predict", mock.Anything, mock.Anything).Return([]byte(`<html>oops</html>`), nil).Once()

	result := submitter.Submit(context.Background(), models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB"})

	require.NotNil(t, result.Err)
	assert.Nil(t, result.Verdict)
	assert.Equal(t, dasherrors.CodePredictBadBody, result.Err.Code)
}

func TestSubmitter_Submit_ServiceErrorSurfaced(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := httptest.NewServer(mockscorer.NewService(logger).Router())
	defer srv.Close()

	cfg := config.GetDefaultConfig().Scorer
	cfg.BaseURL = srv.URL
	submitter := NewSubmitter(scorer.NewHTTPClient(cfg, logger), logger)

	// 草稿数值已在本地转换为0，服务端正常评分
	ok := submitter.Submit(context.Background(), models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB", ValueEth: "abc"})
	require.True(t, ok.OK())
	assert.False(t, ok.Verdict.IsFraud)
	assert.Equal(t, -0.23, ok.Verdict.AnomalyScore)

	fraud := submitter.Submit(context.Background(), models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB", ValueEth: "12"})
	require.True(t, fraud.OK())
	assert.True(t, fraud.Verdict.IsFraud)
	assert.Equal(t, 0.78, fraud.Verdict.AnomalyScore)
}

func TestSubmitter_Submit_StatusErrorMessage(t *testing.T) {
	client := new(mocks.Client)
	logger, _ := test.NewNullLogger()
	submitter := NewSubmitter(client, logger)

	statusErr := &scorer.StatusError{Method: "POST", URL: "/api/predict", StatusCode: 400, Body: []byte(`{"error": "bad input"}`)}
	client.On("Predict", mock.Anything, mock.Anything).
		Return(nil, dasherrors.NewTransportError(dasherrors.CodePredictBadStatus, "提交评分请求失败", statusErr)).Once()

	result := submitter.Submit(context.Background(), models.PredictionDraft{FromAddress: "0xA", ToAddress: "0xB"})

	require.NotNil(t, result.Err)
	assert.Equal(t, "Failed to process transaction: bad input", result.Err.Message)
	assert.Equal(t, dasherrors.CodePredictBadStatus, result.Err.Code)
}
