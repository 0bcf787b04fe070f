package mocks

import (
	"context"

	"frauddash/pkg/models"

	"github.com/stretchr/testify/mock"
)

// Client 评分服务客户端的mock实现
type Client struct {
	mock.Mock
}

// ListTransactions 实现scorer.Client
func (m *Client) ListTransactions(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

// Predict 实现scorer.Client
func (m *Client) Predict(ctx context.Context, req models.PredictRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}
