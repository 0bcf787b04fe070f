package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"frauddash/internal/logging"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 FRAUDDASH_SCORER_BASE_URL
const EnvPrefix = "FRAUDDASH"

// Config 主配置
type Config struct {
	Scorer   *ScorerConfig      `mapstructure:"scorer"`
	API      *APIConfig         `mapstructure:"api"`
	Logging  *logging.LogConfig `mapstructure:"logging"`
	Events   *EventsConfig      `mapstructure:"events"`
	Database *DatabaseSettings  `mapstructure:"db"`
}

// ScorerConfig 评分服务配置
type ScorerConfig struct {
	BaseURL          string `mapstructure:"base_url" json:"base_url"`
	TransactionsPath string `mapstructure:"transactions_path" json:"transactions_path"`
	PredictPath      string `mapstructure:"predict_path" json:"predict_path"`
	Timeout          string `mapstructure:"timeout" json:"timeout"`
}

// TimeoutDuration 解析超时时间，空值或非法值返回0（使用传输层默认值）
func (c *ScorerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// APIConfig 仪表盘API配置
type APIConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	SubmitRateLimit float64  `mapstructure:"submit_rate_limit"` // 每秒允许的提交次数
	SubmitBurst     int      `mapstructure:"submit_burst"`
	ActivityLimit   int      `mapstructure:"activity_limit"` // 活动流保留条数
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// Addr 监听地址
func (c *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EventsConfig 事件输出配置
type EventsConfig struct {
	Sink  string       `mapstructure:"sink"` // none, log, file, kafka
	Dir   string       `mapstructure:"dir"`  // file输出目录
	Kafka *KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// DatabaseSettings 配置数据库连接
type DatabaseSettings struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig 加载配置：.env → YAML → 环境变量 → 数据库覆盖
func LoadConfig(configPath string, logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取.env文件失败: %w", err)
	}

	config, err := LoadConfigFromFile(configPath)
	if err != nil {
		return nil, err
	}

	if config.Database != nil && config.Database.DSN != "" {
		dbConfig, err := NewDatabaseConfig(config.Database.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("连接配置数据库失败: %w", err)
		}
		defer dbConfig.Close()

		if err := dbConfig.ApplyScorerOverrides(config.Scorer); err != nil {
			return nil, fmt.Errorf("从数据库加载评分服务配置失败: %w", err)
		}
		logger.Info("已从数据库加载评分服务配置")
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFromFile 从文件加载配置，configPath为空时只使用默认值与环境变量
func LoadConfigFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 注册默认值，环境变量覆盖依赖于已知键
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("scorer.base_url", d.Scorer.BaseURL)
	v.SetDefault("scorer.transactions_path", d.Scorer.TransactionsPath)
	v.SetDefault("scorer.predict_path", d.Scorer.PredictPath)
	v.SetDefault("scorer.timeout", d.Scorer.Timeout)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.submit_rate_limit", d.API.SubmitRateLimit)
	v.SetDefault("api.submit_burst", d.API.SubmitBurst)
	v.SetDefault("api.activity_limit", d.API.ActivityLimit)
	v.SetDefault("api.allowed_origins", d.API.AllowedOrigins)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("events.sink", d.Events.Sink)
	v.SetDefault("events.dir", d.Events.Dir)
	v.SetDefault("events.kafka.brokers", d.Events.Kafka.Brokers)
	v.SetDefault("events.kafka.topics", d.Events.Kafka.Topics)

	v.SetDefault("db.dsn", d.Database.DSN)
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Scorer: &ScorerConfig{
			BaseURL:          "http://localhost:5000",
			TransactionsPath: "/api/transactions",
			PredictPath:      "/api/predict",
			Timeout:          "",
		},
		API: &APIConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			SubmitRateLimit: 5,
			SubmitBurst:     10,
			ActivityLimit:   200,
			AllowedOrigins:  []string{"*"},
		},
		Logging: &logging.LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Events: &EventsConfig{
			Sink: "none",
			Dir:  "./outputs/events",
			Kafka: &KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topics: map[string]string{
					"verdict": "frauddash_verdicts",
					"refresh": "frauddash_refreshes",
				},
			},
		},
		Database: &DatabaseSettings{},
	}
}

// ValidateConfig 校验配置
func ValidateConfig(config *Config) error {
	if config == nil || config.Scorer == nil {
		return fmt.Errorf("缺少评分服务配置")
	}

	u, err := url.Parse(config.Scorer.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效的评分服务地址: %q", config.Scorer.BaseURL)
	}
	if !strings.HasPrefix(config.Scorer.TransactionsPath, "/") {
		return fmt.Errorf("交易列表路径必须以/开头: %q", config.Scorer.TransactionsPath)
	}
	if !strings.HasPrefix(config.Scorer.PredictPath, "/") {
		return fmt.Errorf("评分路径必须以/开头: %q", config.Scorer.PredictPath)
	}
	if config.Scorer.Timeout != "" {
		if _, err := time.ParseDuration(config.Scorer.Timeout); err != nil {
			return fmt.Errorf("无效的超时时间 %q: %w", config.Scorer.Timeout, err)
		}
	}

	if config.API != nil {
		if config.API.Port <= 0 || config.API.Port > 65535 {
			return fmt.Errorf("无效的API端口: %d", config.API.Port)
		}
		if config.API.SubmitRateLimit < 0 {
			return fmt.Errorf("提交限流不能为负数")
		}
	}

	if config.Events != nil {
		switch config.Events.Sink {
		case "", "none", "log":
		case "file":
			if config.Events.Dir == "" {
				return fmt.Errorf("file事件输出需要配置dir")
			}
		case "kafka":
			if config.Events.Kafka == nil || len(config.Events.Kafka.Brokers) == 0 {
				return fmt.Errorf("kafka事件输出需要配置brokers")
			}
		default:
			return fmt.Errorf("不支持的事件输出: %s", config.Events.Sink)
		}
	}

	return nil
}
