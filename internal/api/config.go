package api

import (
	"database/sql"
	"errors"
	"net/http"

	"frauddash/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ConfigStore 评分服务配置存储，由config.DatabaseConfig实现
type ConfigStore interface {
	ListConfigs() (map[string]string, error)
	GetConfig(key string) (string, error)
	UpdateConfig(key, value string) error
}

// 允许通过API修改的配置键
var scorerConfigKeys = map[string]bool{
	"base_url":          true,
	"transactions_path": true,
	"predict_path":      true,
	"timeout":           true,
}

// ConfigManager 配置管理器
type ConfigManager struct {
	store  ConfigStore
	scorer *config.ScorerConfig
	logger *logrus.Logger
}

// NewConfigManager 创建配置管理器，store为nil时只提供只读的当前配置
func NewConfigManager(store ConfigStore, scorer *config.ScorerConfig, logger *logrus.Logger) *ConfigManager {
	return &ConfigManager{
		store:  store,
		scorer: scorer,
		logger: logger,
	}
}

// GetEffectiveConfig 获取当前生效的评分服务配置
func (cm *ConfigManager) GetEffectiveConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scorer":   cm.scorer,
		"writable": cm.store != nil,
	})
}

// GetConfig 获取存储中的配置
func (cm *ConfigManager) GetConfig(c *gin.Context) {
	if !cm.requireStore(c) {
		return
	}

	key := c.Param("key")
	if key == "" {
		configs, err := cm.store.ListConfigs()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "获取配置失败",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"configs": configs})
		return
	}

	value, err := cm.store.GetConfig(key)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sql.ErrNoRows) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "配置不存在",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":   key,
		"value": value,
	})
}

// UpdateConfig 更新配置，重启后生效
func (cm *ConfigManager) UpdateConfig(c *gin.Context) {
	if !cm.requireStore(c) {
		return
	}

	key := c.Param("key")
	if !scorerConfigKeys[key] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的配置键: " + key})
		return
	}

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate := *cm.scorer
	config.ApplyScorerValues(&candidate, map[string]string{key: req.Value})
	if err := config.ValidateConfig(&config.Config{Scorer: &candidate}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cm.store.UpdateConfig(key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "更新配置失败",
			"message": err.Error(),
		})
		return
	}

	cm.logger.WithFields(logrus.Fields{"key": key, "value": req.Value}).Info("评分服务配置已更新")
	c.JSON(http.StatusOK, gin.H{
		"message": "配置已更新，重启后生效",
		"key":     key,
		"value":   req.Value,
	})
}

func (cm *ConfigManager) requireStore(c *gin.Context) bool {
	if cm.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "未配置配置数据库"})
		return false
	}
	return true
}
