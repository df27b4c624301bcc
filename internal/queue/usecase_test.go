package queue

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskq/scheduler/internal/biz/execution"
	"github.com/taskq/scheduler/internal/biz/task"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	idgen.SetIdGenerator(idgen.NewIdGeneratorOptions(1))
	m.Run()
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memTaskRepo task.Repo的内存实现，补丁语义与mysql实现保持一致
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uint64]*task.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: map[uint64]*task.Task{}}
}

func (r *memTaskRepo) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memTaskRepo) Create(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id uint64) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) Update(ctx context.Context, id uint64, patch *task.TaskPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.NextRunTime != nil {
		if v, ok := patch.NextRunTime.Get(); ok {
			t.NextRunTime = &v
		} else {
			t.NextRunTime = nil
		}
	}
	if patch.ResultPath != nil {
		t.ResultPath = *patch.ResultPath
	}
	if patch.ResultSummary != nil {
		t.ResultSummary = *patch.ResultSummary
	}
	if patch.ErrorLog != nil {
		t.ErrorLog = *patch.ErrorLog
	}
	if patch.StartedAt != nil {
		t.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		t.CompletedAt = patch.CompletedAt
	}
	if patch.LastExecutionAt != nil {
		t.LastExecutionAt = patch.LastExecutionAt
	}
	if patch.ExecutionCount != nil {
		t.ExecutionCount = *patch.ExecutionCount
	}
	return nil
}

func (r *memTaskRepo) List(ctx context.Context, filter *task.TaskFilter) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if status, ok := filter.Status.Get(); ok && t.Status != status {
			continue
		}
		if taskType, ok := filter.TaskType.Get(); ok && t.TaskType != taskType {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memTaskRepo) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var promoted int64
	for _, t := range r.tasks {
		if t.Due(now) {
			t.Status = task.TaskStatusReady
			promoted++
		}
	}
	return promoted, nil
}

func (r *memTaskRepo) ListReady(ctx context.Context) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if t.Status == task.TaskStatusReady {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTaskRepo) ClaimReady(ctx context.Context, id uint64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != task.TaskStatusReady {
		return false, nil
	}
	t.Status = task.TaskStatusInProgress
	t.StartedAt = &now
	return true, nil
}

func (r *memTaskRepo) PruneCompleted(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pruned int64
	for id, t := range r.tasks {
		if t.Status != task.TaskStatusCompleted || t.Recurring() {
			continue
		}
		if t.CompletedAt != nil && t.CompletedAt.Before(before) {
			delete(r.tasks, id)
			pruned++
		}
	}
	return pruned, nil
}

// memExecutionRepo execution.Repo的内存实现
type memExecutionRepo struct {
	mu      sync.Mutex
	records []*execution.ExecutionRecord
}

func newMemExecutionRepo() *memExecutionRepo {
	return &memExecutionRepo{}
}

func (r *memExecutionRepo) Create(ctx context.Context, record *execution.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.records = append(r.records, &cp)
	return nil
}

func (r *memExecutionRepo) ListByTask(ctx context.Context, taskID uint64, limit int) ([]*execution.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*execution.ExecutionRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].TaskID == taskID {
			cp := *r.records[i]
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memExecutionRepo) Count(ctx context.Context, filter execution.CountFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, rec := range r.records {
		if taskID, ok := filter.TaskID.Get(); ok && rec.TaskID != taskID {
			continue
		}
		if status, ok := filter.Status.Get(); ok && rec.Status != status {
			continue
		}
		count++
	}
	return count, nil
}

type fixture struct {
	usecase  *Usecase
	taskRepo *memTaskRepo
	execRepo *memExecutionRepo
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	taskRepo := newMemTaskRepo()
	execRepo := newMemExecutionRepo()
	clock := newFakeClock(time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC))
	return &fixture{
		usecase:  NewUsecase(taskRepo, execRepo, clock, zap.NewNop(), "UTC"),
		taskRepo: taskRepo,
		execRepo: execRepo,
		clock:    clock,
	}
}

func TestCreateOneShot(t *testing.T) {
	f := newFixture(t)

	created, err := f.usecase.Create(context.Background(), CreateParams{
		TaskType:     task.TaskTypeCalculation,
		Payload:      map[string]any{"operation": "sum", "values": []any{1, 2}},
		OutputFormat: task.OutputFormatJSON,
	})
	require.NoError(t, err)

	// 无调度的任务直接ready
	assert.Equal(t, task.TaskStatusReady, created.Status)
	assert.Nil(t, created.NextRunTime)
	assert.Nil(t, created.Schedule)
}

func TestCreateRecurring(t *testing.T) {
	f := newFixture(t)

	created, err := f.usecase.Create(context.Background(), CreateParams{
		TaskType:     task.TaskTypeReportGeneration,
		OutputFormat: task.OutputFormatMarkdown,
		ScheduleCron: "0 7 * * *",
		Timezone:     "UTC",
	})
	require.NoError(t, err)

	// 带cron的任务pending入库并预置下一次触发时间
	assert.Equal(t, task.TaskStatusPending, created.Status)
	require.NotNil(t, created.NextRunTime)
	assert.Equal(t, time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC), created.NextRunTime.UTC())
	require.NotNil(t, created.Schedule)
	assert.True(t, created.Schedule.Enabled)
}

func TestCreateDefaultsToMarkdown(t *testing.T) {
	f := newFixture(t)

	created, err := f.usecase.Create(context.Background(), CreateParams{
		TaskType: task.TaskTypeReportGeneration,
	})
	require.NoError(t, err)
	assert.Equal(t, task.OutputFormatMarkdown, created.OutputFormat)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.usecase.Create(ctx, CreateParams{TaskType: "unknown"})
	assert.True(t, IsValidation(err))

	_, err = f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation, OutputFormat: "pdf"})
	assert.True(t, IsValidation(err))

	_, err = f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation, ScheduleCron: "not a cron"})
	assert.True(t, IsValidation(err))

	_, err = f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation, ScheduleCron: "0 7 * * *", Timezone: "Mars/Olympus"})
	assert.True(t, IsValidation(err))
}

func TestPromoteDueOnlyDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 每天07:00，当前08:00，下一次触发在明早
	created, err := f.usecase.Create(ctx, CreateParams{
		TaskType:     task.TaskTypeReportGeneration,
		ScheduleCron: "0 7 * * *",
	})
	require.NoError(t, err)

	promoted, err := f.usecase.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, promoted)

	f.clock.Advance(23 * time.Hour) // 次日07:00
	promoted, err = f.usecase.PromoteDue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, promoted)

	got, err := f.taskRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusReady, got.Status)
}

func TestClaimExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation})
	require.NoError(t, err)

	// 第一次认领成功，第二次必须落空
	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := f.taskRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusInProgress, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation})
	require.NoError(t, err)

	// 多个执行器同时抢，只能有一个赢
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := f.usecase.Claim(ctx, created.ID)
			if assert.NoError(t, err) && claimed {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestClaimPendingFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{
		TaskType:     task.TaskTypeReportGeneration,
		ScheduleCron: "0 7 * * *",
	})
	require.NoError(t, err)

	// pending未提升，不能直接认领
	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestCompleteOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation})
	require.NoError(t, err)

	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, f.usecase.Complete(ctx, created.ID, "/out/report.json", "sum = 3"))

	got, err := f.taskRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusCompleted, got.Status)
	assert.Equal(t, "/out/report.json", got.ResultPath)
	assert.Equal(t, 1, got.ExecutionCount)
	assert.NotNil(t, got.CompletedAt)

	records, err := f.execRepo.ListByTask(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, execution.ExecutionStatusSuccess, records[0].Status)
	assert.Equal(t, "/out/report.json", records[0].ResultPath)
}

func TestCompleteRecurringKeepsSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{
		TaskType:     task.TaskTypeReportGeneration,
		ScheduleCron: "0 7 * * *",
	})
	require.NoError(t, err)

	runOnce := func() *task.Task {
		t.Helper()
		_, err := f.usecase.PromoteDue(ctx)
		require.NoError(t, err)
		claimed, err := f.usecase.Claim(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, f.usecase.Complete(ctx, created.ID, "/out/report.md", "ok"))
		got, err := f.taskRepo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		return got
	}

	f.clock.Advance(23 * time.Hour) // 次日07:00到期
	first := runOnce()
	assert.Equal(t, task.TaskStatusPending, first.Status)
	require.NotNil(t, first.NextRunTime)
	firstNext := *first.NextRunTime

	f.clock.Advance(24 * time.Hour)
	second := runOnce()
	require.NotNil(t, second.NextRunTime)

	// 连续两轮后next_run_time严格递增
	assert.True(t, second.NextRunTime.After(firstNext))
	assert.Equal(t, 2, second.ExecutionCount)

	records, err := f.execRepo.ListByTask(ctx, created.ID, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCompleteWrongStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation})
	require.NoError(t, err)

	// ready不能直接complete
	err = f.usecase.Complete(ctx, created.ID, "/out/x", "")
	assert.ErrorIs(t, err, task.ErrInvalidTransition)
}

func TestCompleteNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.usecase.Complete(context.Background(), 12345, "/out/x", "")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestFailOneShotTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeQueryExecution})
	require.NoError(t, err)

	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, f.usecase.Fail(ctx, created.ID, "query failed", execution.ErrorKindHandler))

	got, err := f.taskRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusFailed, got.Status)
	assert.Equal(t, "query failed", got.ErrorLog)

	records, err := f.execRepo.ListByTask(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, execution.ExecutionStatusFailed, records[0].Status)
	assert.Equal(t, execution.ErrorKindHandler, records[0].ErrorKind)
}

func TestFailRecurringResumesSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{
		TaskType:     task.TaskTypeReportGeneration,
		ScheduleCron: "0 7 * * *",
	})
	require.NoError(t, err)

	f.clock.Advance(23 * time.Hour)
	_, err = f.usecase.PromoteDue(ctx)
	require.NoError(t, err)
	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, f.usecase.Fail(ctx, created.ID, "boom", execution.ErrorKindTransient))

	// 失败不停掉周期任务
	got, err := f.taskRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusPending, got.Status)
	require.NotNil(t, got.NextRunTime)
	assert.True(t, got.NextRunTime.After(f.clock.Now()))
}

func TestFailTimeoutKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeQueryExecution})
	require.NoError(t, err)
	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, f.usecase.Fail(ctx, created.ID, "deadline exceeded", execution.ErrorKindTimeout))

	records, err := f.execRepo.ListByTask(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, execution.ExecutionStatusTimeout, records[0].Status)
}

func TestFailureCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{
		TaskType:     task.TaskTypeQueryExecution,
		ScheduleCron: "0 7 * * *",
	})
	require.NoError(t, err)

	runOnce := func(report func() error) {
		t.Helper()
		f.clock.Advance(24 * time.Hour)
		_, err := f.usecase.PromoteDue(ctx)
		require.NoError(t, err)
		claimed, err := f.usecase.Claim(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, report())
	}

	// 成功、失败、超时各一轮；失败计数算上失败和超时，不算成功
	runOnce(func() error { return f.usecase.Complete(ctx, created.ID, "/out/report.md", "ok") })
	runOnce(func() error { return f.usecase.Fail(ctx, created.ID, "boom", execution.ErrorKindHandler) })
	runOnce(func() error { return f.usecase.Fail(ctx, created.ID, "too slow", execution.ErrorKindTimeout) })

	count, err := f.usecase.FailureCount(ctx, created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation})
	require.NoError(t, err)
	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.usecase.Complete(ctx, created.ID, "/out/x", ""))

	// 保留期内不清理
	pruned, err := f.usecase.Prune(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	f.clock.Advance(40 * 24 * time.Hour)
	pruned, err = f.usecase.Prune(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	got, err := f.taskRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetWithRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation})
	require.NoError(t, err)
	claimed, err := f.usecase.Claim(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.usecase.Complete(ctx, created.ID, "/out/x", "done"))

	got, records, err := f.usecase.Get(ctx, created.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Len(t, records, 1)

	_, _, err = f.usecase.Get(ctx, 999, 10)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestListFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeCalculation})
	require.NoError(t, err)
	_, err = f.usecase.Create(ctx, CreateParams{TaskType: task.TaskTypeReportGeneration, ScheduleCron: "0 7 * * *"})
	require.NoError(t, err)

	ready, err := f.usecase.List(ctx, &task.TaskFilter{Status: mo.Some(task.TaskStatusReady)})
	require.NoError(t, err)
	assert.Len(t, ready, 1)

	reports, err := f.usecase.List(ctx, &task.TaskFilter{TaskType: mo.Some(task.TaskTypeReportGeneration)})
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	all, err := f.usecase.List(ctx, &task.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
