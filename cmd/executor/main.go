package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskq/scheduler/internal/executor"
	"github.com/taskq/scheduler/pkg/config"
	"github.com/taskq/scheduler/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// 解析命令行参数
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

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

	zapLogger.Info("Starting task executor",
		zap.String("api_base_url", cfg.Executor.APIBaseURL),
		zap.String("output_dir", cfg.Executor.OutputDir))

	sink, err := executor.NewFilesystemSink(cfg.Executor.OutputDir)
	if err != nil {
		zapLogger.Fatal("Failed to create output sink", zap.Error(err))
	}

	client := executor.NewClient(cfg.Executor.APIBaseURL, cfg.Executor.RequestTimeout, zapLogger)
	runner := executor.NewRunner(
		client,
		executor.NewRegistry(),
		sink,
		executor.SystemClock{},
		executor.RunnerConfig{
			PollInterval:   cfg.Executor.PollInterval,
			HandlerTimeout: cfg.Executor.HandlerTimeout,
			MaxWorkers:     cfg.Executor.MaxWorkers,
		},
		zapLogger,
	)

	runner.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down...")
	runner.Stop()
	zapLogger.Info("Shutdown complete")
}
