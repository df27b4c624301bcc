package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/taskq/scheduler/internal/queue"
	"go.uber.org/zap"
)

// Janitor 周期性清理保留期之外的已完成一次性任务。
// 执行器从不删除任务，清理只发生在这里。
type Janitor struct {
	usecase   *queue.Usecase
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewJanitor(usecase *queue.Usecase, interval, retention time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		usecase:   usecase,
		interval:  interval,
		retention: retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.loop()
	j.logger.Info("janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention))
}

func (j *Janitor) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce(context.Background())
		case <-j.stopCh:
			return
		}
	}
}

// RunOnce 执行一轮清理
func (j *Janitor) RunOnce(ctx context.Context) {
	if _, err := j.usecase.Prune(ctx, j.retention); err != nil {
		j.logger.Error("prune completed tasks failed", zap.Error(err))
	}
}
