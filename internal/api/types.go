package api

import (
	"time"

	"github.com/spf13/cast"
	"github.com/taskq/scheduler/internal/biz/execution"
	"github.com/taskq/scheduler/internal/biz/task"
)

type CreateTaskRequest struct {
	TaskType     string         `json:"task_type" binding:"required"`
	Payload      map[string]any `json:"payload"`
	OutputFormat string         `json:"output_format"`
	ScheduleCron string         `json:"schedule_cron"`
	Timezone     string         `json:"timezone"`
	CreatedBy    string         `json:"created_by"`
}

type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type CompleteTaskRequest struct {
	ResultPath    string `json:"result_path" binding:"required"`
	ResultSummary string `json:"result_summary"`
}

type FailTaskRequest struct {
	ErrorLog  string `json:"error_log" binding:"required"`
	ErrorKind string `json:"error_kind"`
}

type ClaimResponse struct {
	Success bool `json:"success"`
}

type ListTasksRequest struct {
	Status   string `form:"status" binding:"omitempty"`
	TaskType string `form:"task_type" binding:"omitempty"`
	Limit    int    `form:"limit" binding:"omitempty"`
}

// TaskResponse 任务视图。雪花ID以字符串下发，避免JS侧精度丢失。
type TaskResponse struct {
	ID              string         `json:"id"`
	TaskType        string         `json:"task_type"`
	Payload         map[string]any `json:"payload"`
	OutputFormat    string         `json:"output_format"`
	ScheduleCron    string         `json:"schedule_cron,omitempty"`
	Timezone        string         `json:"timezone,omitempty"`
	ScheduleEnabled bool           `json:"schedule_enabled"`
	Status          string         `json:"status"`
	NextRunTime     *time.Time     `json:"next_run_time"`
	ResultPath      string         `json:"result_path,omitempty"`
	ResultSummary   string         `json:"result_summary,omitempty"`
	ErrorLog        string         `json:"error_log,omitempty"`
	CreatedBy       string         `json:"created_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at"`
	ExecutionCount  int            `json:"execution_count"`
	LastExecutionAt *time.Time     `json:"last_execution_at"`
}

type ExecutionRecordResponse struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Status      string     `json:"status"`
	ResultPath  string     `json:"result_path,omitempty"`
	ErrorLog    string     `json:"error_log,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type TaskDetailResponse struct {
	Task         TaskResponse              `json:"task"`
	Executions   []ExecutionRecordResponse `json:"executions"`
	FailureCount int64                     `json:"failure_count"`
}

type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

func toTaskResponse(t *task.Task) TaskResponse {
	resp := TaskResponse{
		ID:              cast.ToString(t.ID),
		TaskType:        string(t.TaskType),
		Payload:         t.Payload,
		OutputFormat:    string(t.OutputFormat),
		Status:          string(t.Status),
		NextRunTime:     t.NextRunTime,
		ResultPath:      t.ResultPath,
		ResultSummary:   t.ResultSummary,
		ErrorLog:        t.ErrorLog,
		CreatedBy:       t.CreatedBy,
		CreatedAt:       t.CreatedAt,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
		ExecutionCount:  t.ExecutionCount,
		LastExecutionAt: t.LastExecutionAt,
	}
	if t.Schedule != nil {
		resp.ScheduleCron = t.Schedule.CronExpression
		resp.Timezone = t.Schedule.Timezone
		resp.ScheduleEnabled = t.Schedule.Enabled
	}
	return resp
}

func toExecutionRecordResponse(r *execution.ExecutionRecord) ExecutionRecordResponse {
	return ExecutionRecordResponse{
		ID:          cast.ToString(r.ID),
		TaskID:      cast.ToString(r.TaskID),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Status:      string(r.Status),
		ResultPath:  r.ResultPath,
		ErrorLog:    r.ErrorLog,
		ErrorKind:   string(r.ErrorKind),
		CreatedAt:   r.CreatedAt,
	}
}
