package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"frauddash/internal/config"
	"frauddash/internal/dashboard"
	dasherrors "frauddash/internal/errors"
	"frauddash/pkg/models"
)

// Server 仪表盘API服务器
type Server struct {
	controller    *dashboard.Controller
	config        *config.Config
	configManager *ConfigManager
	logger        *logrus.Logger
	activity      *ActivityFeed
	limiter       *SubmitLimiter
	startedAt     time.Time

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewServer 创建新的API服务器，store可以为nil
func NewServer(cfg *config.Config, controller *dashboard.Controller, store ConfigStore, logger *logrus.Logger) *Server {
	activity := NewActivityFeed(cfg.API.ActivityLimit)

	// 工作流日志进入活动流
	logger.AddHook(NewActivityHook(activity))

	return &Server{
		controller:    controller,
		config:        cfg,
		configManager: NewConfigManager(store, cfg.Scorer, logger),
		logger:        logger,
		activity:      activity,
		limiter:       NewSubmitLimiter(cfg.API.SubmitRateLimit, cfg.API.SubmitBurst),
		startedAt:     time.Now(),
	}
}

// Router 创建路由
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(s.cors())
	router.Use(s.requestLogger())
	router.Use(gin.Recovery())

	s.setupRoutes(router)
	return router
}

// Start 启动API服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.config.API.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.Infof("API服务器启动在 %s", s.config.API.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止API服务器
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.stopped = true
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("正在关闭API服务器")
	return srv.Shutdown(ctx)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	// 健康检查
	router.GET("/health", s.healthCheck)

	api := router.Group("/api/v1")
	{
		// 仪表盘状态
		api.GET("/snapshot", s.getSnapshot)
		api.GET("/records", s.getRecords)
		api.GET("/stats", s.getStats)
		api.GET("/trend", s.getTrend)
		api.POST("/refresh", s.refresh)

		// 评分提交
		api.POST("/predict", s.limiter.Middleware(), s.predict)

		// 草稿编辑
		api.GET("/draft", s.getDraft)
		api.PUT("/draft", s.updateDraft)
		api.POST("/draft/submit", s.limiter.Middleware(), s.submitDraft)

		// 活动流与错误统计
		api.GET("/activity", s.getActivity)
		api.DELETE("/activity", s.clearActivity)
		api.GET("/errors", s.getErrors)

		// 评分服务配置
		api.GET("/config", s.configManager.GetEffectiveConfig)
		api.GET("/config/scorer", s.configManager.GetConfig)
		api.GET("/config/scorer/:key", s.configManager.GetConfig)
		api.PUT("/config/scorer/:key", s.configManager.UpdateConfig)
	}
}

// cors CORS中间件
func (s *Server) cors() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.config.API.AllowedOrigins))
	wildcard := false
	for _, o := range s.config.API.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger 请求日志，只在debug级别输出
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"duration":  time.Since(start),
			"client_ip": c.ClientIP(),
		}).Debug("API请求完成")
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	snap := s.controller.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().Unix(),
		"service":        "frauddash-api",
		"uptime":         time.Since(s.startedAt).Round(time.Second).String(),
		"fetch_state":    snap.FetchState,
		"last_refreshed": snap.LastRefreshed,
	})
}

// getSnapshot 获取完整快照
func (s *Server) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

// recordView 列表展示用的交易记录
type recordView struct {
	models.TransactionRecord
	Status          string `json:"status"`
	ShortFrom       string `json:"short_from"`
	ShortTo         string `json:"short_to"`
	ValueDisplay    string `json:"value_display"`
	GasPriceDisplay string `json:"gas_price_display"`
	ValueWei        string `json:"value_wei"`
}

func newRecordView(r models.TransactionRecord) recordView {
	return recordView{
		TransactionRecord: r,
		Status:            r.StatusLabel(),
		ShortFrom:         models.ShortAddress(r.FromAddress),
		ShortTo:           models.ShortAddress(r.ToAddress),
		ValueDisplay:      r.FormatValue(),
		GasPriceDisplay:   r.FormatGasPrice(),
		ValueWei:          r.ValueWei().String(),
	}
}

// getRecords 获取交易列表，按服务端顺序返回
func (s *Server) getRecords(c *gin.Context) {
	snap := s.controller.Snapshot()

	views := make([]recordView, len(snap.Records))
	for i, r := range snap.Records {
		views[i] = newRecordView(r)
	}

	c.JSON(http.StatusOK, gin.H{
		"records": views,
		"total":   len(views),
		"loading": snap.Loading,
		"error":   snap.Error,
	})
}

// getStats 获取统计信息
func (s *Server) getStats(c *gin.Context) {
	snap := s.controller.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"stats":                 snap.Stats,
		"average_value_display": snap.Stats.FormatAverageValue(),
		"fraud_rate_percent":    strconv.FormatFloat(snap.Stats.FraudRate*100, 'f', 1, 64),
	})
}

// getTrend 获取金额趋势
func (s *Server) getTrend(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"trend": s.controller.Snapshot().Trend,
	})
}

// refresh 手动刷新
func (s *Server) refresh(c *gin.Context) {
	err := s.controller.Refresh(c.Request.Context())
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	c.JSON(status, s.controller.Snapshot())
}

// predict 提交评分，请求体为草稿字段
func (s *Server) predict(c *gin.Context) {
	var draft models.PredictionDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respondSubmit(c, func(ctx context.Context) (bool, error) {
		result, err := s.controller.Submit(ctx, draft)
		return result.OK(), err
	})
}

// submitDraft 提交当前草稿
func (s *Server) submitDraft(c *gin.Context) {
	s.respondSubmit(c, func(ctx context.Context) (bool, error) {
		result, err := s.controller.SubmitDraft(ctx)
		return result.OK(), err
	})
}

func (s *Server) respondSubmit(c *gin.Context, submitFn func(ctx context.Context) (bool, error)) {
	ok, err := submitFn(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if dasherrors.IsValidation(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":    errorMessage(err),
			"snapshot": s.controller.Snapshot(),
		})
		return
	}

	snap := s.controller.Snapshot()
	body := gin.H{"verdict": snap.Verdict, "snapshot": snap}
	if v := snap.Verdict.Verdict; v != nil {
		body["label"] = v.Label()
		body["confidence_display"] = v.FormatConfidence()
		body["anomaly_score_display"] = v.FormatAnomalyScore()
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusBadGateway
	}
	c.JSON(status, body)
}

// getDraft 获取当前草稿
func (s *Server) getDraft(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"draft": s.controller.Draft()})
}

// updateDraft 按字段更新草稿，请求体为 {字段名: 值}
func (s *Server) updateDraft(c *gin.Context) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for field, value := range fields {
		if err := s.controller.UpdateDraft(field, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errorMessage(err)})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"draft": s.controller.Draft()})
}

// getActivity 获取活动流
func (s *Server) getActivity(c *gin.Context) {
	page := positiveInt(c.Query("page"), 1)
	pageSize := positiveInt(c.Query("pageSize"), 20)
	level := c.Query("level")
	workflow := c.Query("workflow")

	entries, total := s.activity.Page(level, workflow, page, pageSize)

	c.JSON(http.StatusOK, gin.H{
		"entries":  entries,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
		"level":    level,
	})
}

// clearActivity 清空活动流
func (s *Server) clearActivity(c *gin.Context) {
	s.activity.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "活动流已清空"})
}

// getErrors 获取工作流错误统计
func (s *Server) getErrors(c *gin.Context) {
	stats := s.controller.ErrorStats()

	byType := make(map[string]int, len(stats.ErrorsByType))
	for t, n := range stats.ErrorsByType {
		byType[t.String()] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"total":        stats.TotalErrors,
		"by_type":      byType,
		"by_component": stats.ErrorsByComponent,
		"recent":       stats.RecentErrors,
	})
}

func positiveInt(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v > 0 {
		return v
	}
	return def
}

func errorMessage(err error) string {
	if de, ok := dasherrors.AsDashboardError(err); ok {
		return de.UserMessage()
	}
	return err.Error()
}
