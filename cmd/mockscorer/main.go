package main

import (
	"errors"
	"flag"
	"net/http"
	"time"

	"frauddash/internal/mockscorer"
	"frauddash/internal/shutdown"

	"github.com/sirupsen/logrus"
)

var (
	addr     = flag.String("addr", ":5000", "监听地址")
	envelope = flag.Bool("envelope", false, "评分结果包装为 {\"prediction\": ...}")
	verbose  = flag.Bool("verbose", false, "详细输出")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var opts []mockscorer.Option
	if *envelope {
		opts = append(opts, mockscorer.WithEnvelope())
	}
	svc := mockscorer.NewService(logger, opts...)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mgr := shutdown.NewManager(5*time.Second, logger)
	mgr.Register("mock-scorer", shutdown.OrderStopServer, srv.Shutdown)
	mgr.Listen()

	go func() {
		logger.Infof("模拟评分服务启动在 %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("模拟评分服务启动失败")
		}
		mgr.Trigger("服务器退出")
	}()

	<-mgr.Context().Done()
	if err := mgr.Wait(); err != nil {
		logger.WithError(err).Error("停机过程中发生错误")
	}
	logger.Info("模拟评分服务已关闭")
}
