package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock 可注入的时钟
type Clock interface {
	Now() time.Time
}

// SystemClock 真实时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// 上报给队列的错误类别
const (
	errorKindHandler = "handler"
	errorKindTimeout = "timeout"
)

// RunnerConfig 轮询执行器配置
type RunnerConfig struct {
	PollInterval   time.Duration
	HandlerTimeout time.Duration
	MaxWorkers     int
}

// Runner 轮询循环：领取ready任务、跑handler、落盘工件、上报结果。
// 单个任务的失败只影响它自己，循环继续处理其余任务。
type Runner struct {
	instanceID string
	client     *Client
	registry   *Registry
	sink       Sink
	clock      Clock
	cfg        RunnerConfig
	logger     *zap.Logger

	sem    chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRunner(client *Client, registry *Registry, sink Sink, clock Clock, cfg RunnerConfig, logger *zap.Logger) *Runner {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return &Runner{
		instanceID: uuid.NewString(),
		client:     client,
		registry:   registry,
		sink:       sink,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		sem:        make(chan struct{}, cfg.MaxWorkers),
		stopCh:     make(chan struct{}),
	}
}

// Start 启动轮询循环
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	r.logger.Info("executor started",
		zap.String("instance_id", r.instanceID),
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Int("max_workers", r.cfg.MaxWorkers),
		zap.Strings("task_types", r.registry.Types()))
}

// Stop 停止轮询并等待在跑的任务结束
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("executor stopped")
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.PollOnce(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// PollOnce 执行一轮：拉取ready任务并逐个认领执行。
// 队列不可用时记日志退避，等下一轮再试。
func (r *Runner) PollOnce(ctx context.Context) {
	tasks, err := r.client.ListReady(ctx)
	if err != nil {
		if errors.Is(err, ErrQueueUnavailable) {
			r.logger.Warn("queue unavailable, backing off", zap.Error(err))
		} else {
			r.logger.Error("list ready tasks failed", zap.Error(err))
		}
		return
	}

	for _, t := range tasks {
		claimed, err := r.client.Claim(ctx, t.ID)
		if err != nil {
			r.logger.Error("claim failed",
				zap.String("task_id", t.ID),
				zap.Error(err))
			continue
		}
		if !claimed {
			// 被其他执行器抢走，不是异常
			continue
		}

		r.sem <- struct{}{}
		r.wg.Add(1)
		go func(t TaskView) {
			defer r.wg.Done()
			defer func() { <-r.sem }()
			r.Execute(ctx, t)
		}(t)
	}
}

// Execute 执行一个已认领的任务并上报结果
func (r *Runner) Execute(ctx context.Context, t TaskView) {
	audit := NewAudit(r.clock)
	audit.Step("task %s claimed by executor %s, type=%s format=%s", t.ID, r.instanceID, t.TaskType, t.OutputFormat)

	runDir, err := r.sink.RunDir(t.ID, r.clock.Now())
	if err != nil {
		r.report(ctx, t, "", "", fmt.Errorf("failed to prepare run dir: %w", err), errorKindHandler)
		return
	}

	result, err := r.invoke(ctx, t, audit)
	if err != nil {
		kind := errorKindHandler
		if errors.Is(err, context.DeadlineExceeded) {
			kind = errorKindTimeout
		}
		audit.Step("handler failed: %v", err)
		r.flushAudit(runDir, audit)
		r.report(ctx, t, "", "", err, kind)
		return
	}
	audit.Step("handler finished: %s", result.Summary)

	resultPath, err := WriteArtifact(runDir, t.OutputFormat, result)
	if err != nil {
		audit.Step("artifact write failed: %v", err)
		r.flushAudit(runDir, audit)
		r.report(ctx, t, "", "", err, errorKindHandler)
		return
	}
	audit.Step("artifact written to %s", resultPath)

	if err := FinalizeArtifact(resultPath, t.OutputFormat); err != nil {
		audit.Step("artifact verification failed: %v", err)
		r.flushAudit(runDir, audit)
		r.report(ctx, t, "", "", err, errorKindHandler)
		return
	}
	audit.Step("artifact verified")

	r.flushAudit(runDir, audit)
	r.report(ctx, t, resultPath, result.Summary, nil, "")
}

// invoke 带超时和panic保护地调用handler。
// handler跑在独立goroutine里，超时由select硬性保证：
// 不理会ctx的handler到点同样按超时上报，被放弃的goroutine自行结束，
// 不会占住worker让轮询循环饿死。
func (r *Runner) invoke(ctx context.Context, t TaskView, audit *Audit) (*Result, error) {
	handler, err := r.registry.Lookup(t.TaskType)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.HandlerTimeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	// 带缓冲，被放弃的handler发送结果时不会永久阻塞
	done := make(chan outcome, 1)

	audit.Step("handler started")
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("handler panicked: %v", p)}
			}
		}()
		result, err := handler(runCtx, t)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		// handler正常返回但超时已过，按超时处理
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		return out.result, nil
	case <-runCtx.Done():
		return nil, runCtx.Err()
	}
}

// report 把执行结果上报给队列。上报本身失败只能记日志，
// 任务会留在in_progress，由人工或后续巡检处理。
func (r *Runner) report(ctx context.Context, t TaskView, resultPath, summary string, execErr error, kind string) {
	if execErr == nil {
		if err := r.client.Complete(ctx, t.ID, resultPath, summary); err != nil {
			r.logger.Error("report complete failed",
				zap.String("task_id", t.ID),
				zap.Error(err))
			return
		}
		r.logger.Info("task executed",
			zap.String("task_id", t.ID),
			zap.String("result_path", resultPath))
		return
	}

	if err := r.client.Fail(ctx, t.ID, execErr.Error(), kind); err != nil {
		r.logger.Error("report fail failed",
			zap.String("task_id", t.ID),
			zap.Error(err))
		return
	}
	r.logger.Warn("task execution failed",
		zap.String("task_id", t.ID),
		zap.String("error_kind", kind),
		zap.Error(execErr))
}

func (r *Runner) flushAudit(runDir string, audit *Audit) {
	if err := r.sink.WriteAudit(runDir, audit.Lines()); err != nil {
		r.logger.Error("write audit log failed", zap.Error(err))
	}
}
