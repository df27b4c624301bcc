// Package queue 对任务状态的唯一合法修改入口。
// 所有生产者和执行器都通过这里的操作转移任务状态，
// 状态机的不变量在此集中维护。
package queue

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/taskq/scheduler/internal/biz/execution"
	"github.com/taskq/scheduler/internal/biz/task"
	"github.com/taskq/scheduler/internal/schedule"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
)

// Clock 可注入的时钟，测试时用假时钟推进
type Clock interface {
	Now() time.Time
}

// SystemClock 真实时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Usecase struct {
	taskRepo        task.Repo
	executionRepo   execution.Repo
	clock           Clock
	logger          *zap.Logger
	defaultTimezone string
}

func NewUsecase(
	taskRepo task.Repo,
	executionRepo execution.Repo,
	clock Clock,
	logger *zap.Logger,
	defaultTimezone string,
) *Usecase {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &Usecase{
		taskRepo:        taskRepo,
		executionRepo:   executionRepo,
		clock:           clock,
		logger:          logger,
		defaultTimezone: defaultTimezone,
	}
}

type CreateParams struct {
	TaskType     task.TaskType
	Payload      map[string]any
	OutputFormat task.OutputFormat
	ScheduleCron string
	Timezone     string
	CreatedBy    string
}

// Create 创建任务。带cron的任务以pending入库并预置next_run_time，
// 无调度的任务直接ready。
func (u *Usecase) Create(ctx context.Context, params CreateParams) (*task.Task, error) {
	if !params.TaskType.Valid() {
		return nil, newValidationError("task_type", "unknown task type %q", params.TaskType)
	}
	if params.OutputFormat == "" {
		params.OutputFormat = task.OutputFormatMarkdown
	}
	if !params.OutputFormat.Valid() {
		return nil, newValidationError("output_format", "unknown output format %q", params.OutputFormat)
	}

	t := &task.Task{
		ID:           uint64(idgen.NextId()),
		TaskType:     params.TaskType,
		Payload:      params.Payload,
		OutputFormat: params.OutputFormat,
		CreatedBy:    params.CreatedBy,
		Status:       task.TaskStatusReady,
	}

	if params.ScheduleCron != "" {
		tz := params.Timezone
		if tz == "" {
			tz = u.defaultTimezone
		}
		if err := schedule.Validate(params.ScheduleCron, tz); err != nil {
			return nil, newValidationError("schedule_cron", "%s", err.Error())
		}
		next, err := schedule.NextFire(params.ScheduleCron, tz, u.clock.Now())
		if err != nil {
			return nil, newValidationError("schedule_cron", "%s", err.Error())
		}
		t.Schedule = &task.Schedule{
			CronExpression: params.ScheduleCron,
			Timezone:       tz,
			Enabled:        true,
		}
		t.Status = task.TaskStatusPending
		t.NextRunTime = &next
	}

	if err := u.taskRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	u.logger.Info("task created",
		zap.Uint64("task_id", t.ID),
		zap.String("task_type", string(t.TaskType)),
		zap.String("status", string(t.Status)))

	return t, nil
}

// PromoteDue 将到期的pending任务提升为ready。
// 作为显式命名操作暴露，而不是藏在读取接口里。
func (u *Usecase) PromoteDue(ctx context.Context) (int64, error) {
	promoted, err := u.taskRepo.PromoteDue(ctx, u.clock.Now())
	if err != nil {
		return 0, err
	}
	if promoted > 0 {
		u.logger.Info("promoted due tasks", zap.Int64("count", promoted))
	}
	return promoted, nil
}

// ListReady 按创建顺序返回ready任务
func (u *Usecase) ListReady(ctx context.Context) ([]*task.Task, error) {
	return u.taskRepo.ListReady(ctx)
}

// Claim 原子认领：仅当任务仍为ready时成功。
// 返回false不是错误，是竞争的正常结果。
func (u *Usecase) Claim(ctx context.Context, id uint64) (bool, error) {
	claimed, err := u.taskRepo.ClaimReady(ctx, id, u.clock.Now())
	if err != nil {
		return false, err
	}
	if claimed {
		u.logger.Info("task claimed", zap.Uint64("task_id", id))
	}
	return claimed, nil
}

// Complete 成功上报。写入执行记录，一次性任务进入终态，
// 周期任务重算next_run_time后回到pending。整体在一个事务里。
func (u *Usecase) Complete(ctx context.Context, id uint64, resultPath, resultSummary string) error {
	return u.taskRepo.Execute(ctx, func(ctx context.Context) error {
		t, err := u.taskRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTaskNotFound
		}

		now := u.clock.Now()
		nextRun, err := u.nextRunFor(t, now)
		if err != nil {
			return err
		}

		patches, err := t.CompleteRun(now, resultPath, resultSummary, nextRun)
		if err != nil {
			return err
		}

		record := &execution.ExecutionRecord{
			ID:          uint64(idgen.NextId()),
			TaskID:      t.ID,
			StartedAt:   t.StartedAt,
			CompletedAt: &now,
			Status:      execution.ExecutionStatusSuccess,
			ResultPath:  resultPath,
		}
		if err := u.executionRepo.Create(ctx, record); err != nil {
			return err
		}

		for _, patch := range patches {
			if err := u.taskRepo.Update(ctx, t.ID, patch); err != nil {
				return err
			}
		}

		u.logger.Info("task completed",
			zap.Uint64("task_id", t.ID),
			zap.String("result_path", resultPath),
			zap.Bool("recurring", t.Recurring()))
		return nil
	})
}

// Fail 失败上报。一次性任务进入终态failed并保留error_log；
// 周期任务记录失败后回到pending，按原节奏等待下一次调度——
// 单次失败不应悄悄停掉一个无人值守的定时作业。
func (u *Usecase) Fail(ctx context.Context, id uint64, errorLog string, kind execution.ErrorKind) error {
	return u.taskRepo.Execute(ctx, func(ctx context.Context) error {
		t, err := u.taskRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTaskNotFound
		}

		now := u.clock.Now()
		nextRun, err := u.nextRunFor(t, now)
		if err != nil {
			return err
		}

		patches, err := t.FailRun(now, errorLog, nextRun)
		if err != nil {
			return err
		}

		status := execution.ExecutionStatusFailed
		if kind == execution.ErrorKindTimeout {
			status = execution.ExecutionStatusTimeout
		}
		record := &execution.ExecutionRecord{
			ID:          uint64(idgen.NextId()),
			TaskID:      t.ID,
			StartedAt:   t.StartedAt,
			CompletedAt: &now,
			Status:      status,
			ErrorLog:    errorLog,
			ErrorKind:   kind,
		}
		if err := u.executionRepo.Create(ctx, record); err != nil {
			return err
		}

		for _, patch := range patches {
			if err := u.taskRepo.Update(ctx, t.ID, patch); err != nil {
				return err
			}
		}

		u.logger.Warn("task failed",
			zap.Uint64("task_id", t.ID),
			zap.String("error_kind", string(kind)),
			zap.Bool("recurring", t.Recurring()))
		return nil
	})
}

// Get 返回任务与最近的执行记录
func (u *Usecase) Get(ctx context.Context, id uint64, recordLimit int) (*task.Task, []*execution.ExecutionRecord, error) {
	t, err := u.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, ErrTaskNotFound
	}
	records, err := u.executionRepo.ListByTask(ctx, id, recordLimit)
	if err != nil {
		return nil, nil, err
	}
	return t, records, nil
}

// FailureCount 任务历史执行中未成功的次数（失败与超时都算）
func (u *Usecase) FailureCount(ctx context.Context, id uint64) (int64, error) {
	failed, err := u.executionRepo.Count(ctx, execution.CountFilter{
		TaskID: mo.Some(id),
		Status: mo.Some(execution.ExecutionStatusFailed),
	})
	if err != nil {
		return 0, err
	}
	timedOut, err := u.executionRepo.Count(ctx, execution.CountFilter{
		TaskID: mo.Some(id),
		Status: mo.Some(execution.ExecutionStatusTimeout),
	})
	if err != nil {
		return 0, err
	}
	return failed + timedOut, nil
}

func (u *Usecase) List(ctx context.Context, filter *task.TaskFilter) ([]*task.Task, error) {
	return u.taskRepo.List(ctx, filter)
}

// Prune 清理retention之前完成的一次性任务
func (u *Usecase) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	before := u.clock.Now().Add(-retention)
	pruned, err := u.taskRepo.PruneCompleted(ctx, before)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		u.logger.Info("pruned completed tasks", zap.Int64("count", pruned))
	}
	return pruned, nil
}

// nextRunFor 周期任务重算下一次触发时间；一次性任务返回nil
func (u *Usecase) nextRunFor(t *task.Task, now time.Time) (*time.Time, error) {
	if !t.Recurring() {
		return nil, nil
	}
	next, err := schedule.NextFire(t.Schedule.CronExpression, t.Schedule.Timezone, now)
	if err != nil {
		return nil, err
	}
	return &next, nil
}
