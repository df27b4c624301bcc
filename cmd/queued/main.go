package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskq/scheduler/internal/api"
	"github.com/taskq/scheduler/internal/bootstrap"
	"github.com/taskq/scheduler/internal/infra/persistence/executionrepo"
	"github.com/taskq/scheduler/internal/infra/persistence/taskrepo"
	"github.com/taskq/scheduler/internal/queue"
	"github.com/taskq/scheduler/internal/scheduler"
	"github.com/taskq/scheduler/pkg/config"
	"github.com/taskq/scheduler/pkg/logger"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
)

func main() {
	// 解析命令行参数
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 雪花ID生成器
	var options = idgen.NewIdGeneratorOptions(1)
	options.BaseTime = 1755937966000
	options.WorkerIdBitLength = 6
	idgen.SetIdGenerator(options)

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 创建日志器
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting task queue server",
		zap.Int("port", cfg.Server.Port))

	// 创建存储
	db, err := bootstrap.NewDatabase(*cfg)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// 创建repositories
	taskRepo := taskrepo.NewMysqlRepositoryImpl(db)
	executionRepo := executionrepo.NewMysqlRepositoryImpl(db)

	usecase := queue.NewUsecase(taskRepo, executionRepo, queue.SystemClock{}, zapLogger, cfg.Queue.DefaultTimezone)

	// 后台循环：到期提升（带分布式锁）与历史清理
	locker := scheduler.NewLocker(sqlDB, cfg.Queue.LockKey, cfg.Queue.LockTimeout, zapLogger)
	promoter := scheduler.NewPromoter(usecase, locker, cfg.Queue.PromoteInterval, zapLogger)
	janitor := scheduler.NewJanitor(usecase, cfg.Queue.PruneInterval, cfg.Queue.Retention, zapLogger)

	promoter.Start()
	janitor.Start()

	// 创建API服务器
	apiServer := api.NewServer(usecase, zapLogger)

	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        apiServer.Router(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		zapLogger.Info("Starting API server",
			zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down...")

	// 优雅关闭HTTP服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown API server", zap.Error(err))
	}

	promoter.Stop()
	janitor.Stop()

	zapLogger.Info("Shutdown complete")
}
