// Package scheduler queued进程的后台循环：到期提升与历史清理。
// 循环只调用queue.Usecase的命名操作，不直接写存储。
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/taskq/scheduler/internal/queue"
	"go.uber.org/zap"
)

// Promoter 周期性把到期的pending任务提升为ready。
// GET /tasks/ready也会做提升，这里保证没有执行器轮询时任务也不会滞留。
type Promoter struct {
	usecase  *queue.Usecase
	locker   *Locker
	interval time.Duration
	logger   *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPromoter(usecase *queue.Usecase, locker *Locker, interval time.Duration, logger *zap.Logger) *Promoter {
	return &Promoter{
		usecase:  usecase,
		locker:   locker,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动提升循环
func (p *Promoter) Start() {
	p.wg.Add(1)
	go p.loop()
	p.logger.Info("promoter started",
		zap.Duration("interval", p.interval))
}

// Stop 停止提升循环
func (p *Promoter) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("promoter stopped")
}

func (p *Promoter) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(context.Background())
		case <-p.stopCh:
			return
		}
	}
}

// RunOnce 执行一轮提升，持锁失败（其他实例在做）时静默跳过
func (p *Promoter) RunOnce(ctx context.Context) {
	held, err := p.locker.WithLock(ctx, func() error {
		_, err := p.usecase.PromoteDue(ctx)
		return err
	})
	if err != nil {
		p.logger.Error("promote due tasks failed", zap.Error(err))
		return
	}
	if !held {
		p.logger.Debug("promoter lock held by another instance, skipping")
	}
}
