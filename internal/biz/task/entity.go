package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// ErrInvalidTransition 违反状态机的转移请求
var ErrInvalidTransition = errors.New("invalid status transition")

// Schedule 周期配置；为空表示一次性任务
type Schedule struct {
	CronExpression string
	Timezone       string
	Enabled        bool
}

type Task struct {
	ID        uint64
	CreatedAt time.Time
	UpdatedAt time.Time

	TaskType     TaskType
	Payload      map[string]any
	OutputFormat OutputFormat
	Schedule     *Schedule
	Status       TaskStatus

	NextRunTime *time.Time

	ResultPath    string
	ResultSummary string
	ErrorLog      string

	CreatedBy       string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ExecutionCount  int
	LastExecutionAt *time.Time
}

// Recurring 是否为启用了周期调度的任务
func (t *Task) Recurring() bool {
	return t.Schedule != nil && t.Schedule.Enabled
}

// Due 任务是否到期可提升为ready
func (t *Task) Due(now time.Time) bool {
	if t.Status != TaskStatusPending {
		return false
	}
	if t.NextRunTime == nil {
		return true
	}
	return !t.NextRunTime.After(now)
}

// Promote 构造pending→ready的补丁
func (t *Task) Promote(now time.Time) (*TaskPatch, error) {
	if !t.Due(now) {
		return nil, fmt.Errorf("%w: task %d is not due", ErrInvalidTransition, t.ID)
	}
	t.Status = TaskStatusReady
	return NewTaskPatch().WithStatus(TaskStatusReady), nil
}

// CompleteRun 成功结束一次执行。一次性任务进入终态completed；
// 周期任务写入completed后立即回到pending并带上新的next_run_time。
// 返回的补丁按顺序应用，保证状态走的是合法边。
func (t *Task) CompleteRun(now time.Time, resultPath, resultSummary string, nextRun *time.Time) ([]*TaskPatch, error) {
	if !CanTransition(t.Status, TaskStatusCompleted) {
		return nil, fmt.Errorf("%w: cannot complete task in status %s", ErrInvalidTransition, t.Status)
	}

	completed := NewTaskPatch().
		WithStatus(TaskStatusCompleted).
		WithCompletedAt(now).
		WithLastExecutionAt(now).
		WithExecutionCount(t.ExecutionCount + 1).
		WithResultPath(resultPath).
		WithResultSummary(resultSummary)

	if !t.Recurring() {
		t.Status = TaskStatusCompleted
		t.ExecutionCount++
		// 一次性任务离开pending后next_run_time保持为空
		completed.WithNextRunTime(mo.None[time.Time]())
		return []*TaskPatch{completed}, nil
	}

	if nextRun == nil || !nextRun.After(now) {
		return nil, errors.New("recurring task requires a next run time strictly after now")
	}

	reset := NewTaskPatch().
		WithStatus(TaskStatusPending).
		WithNextRunTime(mo.Some(*nextRun))

	t.Status = TaskStatusPending
	t.ExecutionCount++
	t.NextRunTime = nextRun
	return []*TaskPatch{completed, reset}, nil
}

// FailRun 失败结束一次执行。一次性任务进入终态failed；
// 周期任务记录失败后回到pending，按原节奏等待下一次调度。
func (t *Task) FailRun(now time.Time, errorLog string, nextRun *time.Time) ([]*TaskPatch, error) {
	if !CanTransition(t.Status, TaskStatusFailed) {
		return nil, fmt.Errorf("%w: cannot fail task in status %s", ErrInvalidTransition, t.Status)
	}

	failed := NewTaskPatch().
		WithStatus(TaskStatusFailed).
		WithCompletedAt(now).
		WithLastExecutionAt(now).
		WithExecutionCount(t.ExecutionCount + 1).
		WithErrorLog(errorLog)

	if !t.Recurring() {
		t.Status = TaskStatusFailed
		t.ExecutionCount++
		failed.WithNextRunTime(mo.None[time.Time]())
		return []*TaskPatch{failed}, nil
	}

	if nextRun == nil || !nextRun.After(now) {
		return nil, errors.New("recurring task requires a next run time strictly after now")
	}

	reset := NewTaskPatch().
		WithStatus(TaskStatusPending).
		WithNextRunTime(mo.Some(*nextRun))

	t.Status = TaskStatusPending
	t.ExecutionCount++
	t.NextRunTime = nextRun
	return []*TaskPatch{failed, reset}, nil
}

// TaskPatch 局部更新。NextRunTime使用mo.Option区分
// 不更新（nil）、置空（None）与赋值（Some）。
type TaskPatch struct {
	Status          *TaskStatus
	NextRunTime     *mo.Option[time.Time]
	ResultPath      *string
	ResultSummary   *string
	ErrorLog        *string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastExecutionAt *time.Time
	ExecutionCount  *int
}

func NewTaskPatch() *TaskPatch {
	return &TaskPatch{}
}

func (p *TaskPatch) WithStatus(status TaskStatus) *TaskPatch {
	p.Status = &status
	return p
}

func (p *TaskPatch) WithNextRunTime(next mo.Option[time.Time]) *TaskPatch {
	p.NextRunTime = &next
	return p
}

func (p *TaskPatch) WithResultPath(path string) *TaskPatch {
	p.ResultPath = &path
	return p
}

func (p *TaskPatch) WithResultSummary(summary string) *TaskPatch {
	p.ResultSummary = &summary
	return p
}

func (p *TaskPatch) WithErrorLog(errorLog string) *TaskPatch {
	p.ErrorLog = &errorLog
	return p
}

func (p *TaskPatch) WithStartedAt(t time.Time) *TaskPatch {
	p.StartedAt = &t
	return p
}

func (p *TaskPatch) WithCompletedAt(t time.Time) *TaskPatch {
	p.CompletedAt = &t
	return p
}

func (p *TaskPatch) WithLastExecutionAt(t time.Time) *TaskPatch {
	p.LastExecutionAt = &t
	return p
}

func (p *TaskPatch) WithExecutionCount(count int) *TaskPatch {
	p.ExecutionCount = &count
	return p
}
