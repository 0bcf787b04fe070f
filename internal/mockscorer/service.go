package mockscorer

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// 模拟评分规则
const (
	FraudThresholdEth  = 5.0
	MockConfidence     = 0.85
	FraudAnomalyScore  = 0.78
	NormalAnomalyScore = -0.23
)

// Transaction 模拟服务保存的交易
type Transaction struct {
	ID          int     `json:"id"`
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	ValueEth    float64 `json:"value_eth"`
	GasPriceEth float64 `json:"gas_price_eth"`
	IsFraud     bool    `json:"is_fraud"`
	Timestamp   string  `json:"timestamp"`
}

// Prediction 模拟评分结果
type Prediction struct {
	IsFraud      bool    `json:"is_fraud"`
	Confidence   float64 `json:"confidence"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// Option 服务选项
type Option func(*Service)

// WithEnvelope 评分结果包装在 {"prediction": {...}} 中返回
func WithEnvelope() Option {
	return func(s *Service) {
		s.envelope = true
	}
}

// WithTransactions 替换初始交易列表
func WithTransactions(txs []Transaction) Option {
	return func(s *Service) {
		s.transactions = append([]Transaction(nil), txs...)
	}
}

// WithClock 指定时间源
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service 模拟评分服务：固定阈值判定，并把每笔评分追加到交易列表
type Service struct {
	transactions []Transaction
	envelope     bool
	now          func() time.Time
	logger       *logrus.Logger
	mu           sync.RWMutex
}

// SeedTransactions 初始交易
func SeedTransactions() []Transaction {
	return []Transaction{
		{
			ID:          1,
			FromAddress: "0x123abc...",
			ToAddress:   "0x456def...",
			ValueEth:    1.5,
			GasPriceEth: 0.0002,
			IsFraud:     false,
			Timestamp:   "2024-03-12T10:00:00",
		},
		{
			ID:          2,
			FromAddress: "0x789ghi...",
			ToAddress:   "0xjklmno...",
			ValueEth:    10.0,
			GasPriceEth: 0.0003,
			IsFraud:     true,
			Timestamp:   "2024-03-12T10:05:00",
		},
	}
}

// NewService 创建模拟评分服务
func NewService(logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		transactions: SeedTransactions(),
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router 创建gin路由
func (s *Service) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "mock-scorer"})
	})

	api := router.Group("/api")
	{
		api.GET("/transactions", s.listTransactions)
		api.POST("/predict", s.predict)
	}
	return router
}

// Transactions 当前交易列表副本
func (s *Service) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Score 按阈值评分
func Score(valueEth float64) Prediction {
	isFraud := valueEth > FraudThresholdEth
	p := Prediction{
		IsFraud:      isFraud,
		Confidence:   MockConfidence,
		AnomalyScore: NormalAnomalyScore,
	}
	if isFraud {
		p.AnomalyScore = FraudAnomalyScore
	}
	return p
}

func (s *Service) listTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Transactions())
}

func (s *Service) predict(c *gin.Context) {
	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		s.fail(c, err)
		return
	}

	valueEth, err := feature(data, "value_eth")
	if err != nil {
		s.fail(c, err)
		return
	}
	gasPriceEth, err := feature(data, "gas_price_eth")
	if err != nil {
		s.fail(c, err)
		return
	}

	prediction := Score(valueEth)

	s.mu.Lock()
	s.transactions = append(s.transactions, Transaction{
		ID:          len(s.transactions) + 1,
		FromAddress: cast.ToString(data["from_address"]),
		ToAddress:   cast.ToString(data["to_address"]),
		ValueEth:    valueEth,
		GasPriceEth: gasPriceEth,
		IsFraud:     prediction.IsFraud,
		Timestamp:   s.now().Format("2006-01-02T15:04:05.000000"),
	})
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"value_eth": valueEth,
		"is_fraud":  prediction.IsFraud,
	}).Info("模拟评分完成")

	if s.envelope {
		c.JSON(http.StatusOK, gin.H{"prediction": prediction})
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (s *Service) fail(c *gin.Context, err error) {
	s.logger.WithError(err).Warn("模拟评分请求无效")
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// feature 读取数值特征，缺失为0，无法转换时报错
func feature(data map[string]interface{}, key string) (float64, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return 0, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("无法将 %s 转换为数字: %v", key, v)
	}
	return f, nil
}

func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("请求处理完成")
	}
}
