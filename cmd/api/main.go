package main

import (
	"context"
	"flag"
	"os"
	"time"

	"frauddash/internal/api"
	"frauddash/internal/config"
	"frauddash/internal/dashboard"
	dasherrors "frauddash/internal/errors"
	"frauddash/internal/events"
	"frauddash/internal/logging"
	"frauddash/internal/scorer"
	"frauddash/internal/shutdown"
	"frauddash/internal/validation"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath      = flag.String("config", "configs/config.yaml", "配置文件路径")
	port            = flag.Int("port", 0, "API 服务端口，0表示使用配置文件")
	strict          = flag.Bool("strict", false, "严格校验草稿（地址格式错误时拒绝提交）")
	verbose         = flag.Bool("verbose", false, "详细输出")
	shutdownTimeout = flag.Duration("shutdown-timeout", 15*time.Second, "优雅停机超时")
)

func main() {
	flag.Parse()

	bootLogger := logrus.New()
	bootLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig(*configPath, bootLogger)
	if err != nil {
		bootLogger.Fatalf("加载配置失败: %v", err)
	}
	if *port > 0 {
		cfg.API.Port = *port
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		bootLogger.Fatalf("初始化日志失败: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("服务异常退出")
		os.Exit(1)
	}
	logger.Info("服务已关闭")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}

	errHandler := dasherrors.NewErrorHandler(logger)
	errHandler.AddCallback(func(e *dasherrors.DashboardError) {
		if e.Severity >= dasherrors.SeverityHigh {
			logger.WithField("error_code", e.Code).Error("仪表盘出现严重错误")
		}
	})

	controller := dashboard.NewController(
		scorer.NewHTTPClient(cfg.Scorer, logger),
		logger,
		dashboard.WithPublisher(publisher),
		dashboard.WithErrorHandler(errHandler),
		dashboard.WithValidator(validation.NewValidator(logger, *strict)),
	)

	// 配置数据库可选，未配置时配置接口只读
	var store api.ConfigStore
	var dbConfig *config.DatabaseConfig
	if cfg.Database != nil && cfg.Database.DSN != "" {
		dbConfig, err = config.NewDatabaseConfig(cfg.Database.DSN, logger)
		if err != nil {
			return err
		}
		store = dbConfig
	}

	server := api.NewServer(cfg, controller, store, logger)

	mgr := shutdown.NewManager(*shutdownTimeout, logger)
	mgr.Register("api-server", shutdown.OrderStopServer, server.Stop)
	mgr.Register("events", shutdown.OrderFlushEvents, func(context.Context) error {
		return publisher.Close()
	})
	if dbConfig != nil {
		mgr.Register("config-store", shutdown.OrderCloseStore, func(context.Context) error {
			return dbConfig.Close()
		})
	}
	mgr.Listen()

	g, ctx := errgroup.WithContext(mgr.Context())

	g.Go(func() error {
		defer mgr.Trigger("API服务器退出")
		return server.Start()
	})

	g.Go(func() error {
		// 首次刷新失败只体现在仪表盘状态里
		if err := controller.Start(ctx); err != nil {
			logger.WithError(err).Warn("首次刷新失败")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		mgr.Trigger("上下文取消")
		return mgr.Wait()
	})

	return g.Wait()
}
