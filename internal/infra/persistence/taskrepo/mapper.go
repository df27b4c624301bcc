package taskrepo

import (
	domain "github.com/taskq/scheduler/internal/biz/task"
	"github.com/taskq/scheduler/internal/infra/persistence/commonrepo"
)

func (po *TaskPo) ToDomain() *domain.Task {
	var sched *domain.Schedule
	if po.ScheduleCron != "" {
		sched = &domain.Schedule{
			CronExpression: po.ScheduleCron,
			Timezone:       po.ScheduleTimezone,
			Enabled:        po.ScheduleEnabled,
		}
	}
	return &domain.Task{
		ID:              po.ID,
		CreatedAt:       po.CreatedAt,
		UpdatedAt:       po.UpdatedAt,
		TaskType:        po.TaskType,
		Payload:         po.Payload,
		OutputFormat:    po.OutputFormat,
		Schedule:        sched,
		Status:          po.Status,
		NextRunTime:     po.NextRunTime,
		ResultPath:      po.ResultPath,
		ResultSummary:   po.ResultSummary,
		ErrorLog:        po.ErrorLog,
		CreatedBy:       po.CreatedBy,
		StartedAt:       po.StartedAt,
		CompletedAt:     po.CompletedAt,
		ExecutionCount:  po.ExecutionCount,
		LastExecutionAt: po.LastExecutionAt,
	}
}

func (po *TaskPo) FromDomain(task *domain.Task) *TaskPo {
	out := &TaskPo{
		Mode: commonrepo.Mode{
			ID:        task.ID,
			CreatedAt: task.CreatedAt,
			UpdatedAt: task.UpdatedAt,
		},
		TaskType:        task.TaskType,
		Payload:         task.Payload,
		OutputFormat:    task.OutputFormat,
		Status:          task.Status,
		NextRunTime:     task.NextRunTime,
		ResultPath:      task.ResultPath,
		ResultSummary:   task.ResultSummary,
		ErrorLog:        task.ErrorLog,
		CreatedBy:       task.CreatedBy,
		StartedAt:       task.StartedAt,
		CompletedAt:     task.CompletedAt,
		ExecutionCount:  task.ExecutionCount,
		LastExecutionAt: task.LastExecutionAt,
	}
	if task.Schedule != nil {
		out.ScheduleCron = task.Schedule.CronExpression
		out.ScheduleTimezone = task.Schedule.Timezone
		out.ScheduleEnabled = task.Schedule.Enabled
	}
	return out
}

func patchToMap(input *domain.TaskPatch) map[string]any {
	var values = make(map[string]any)
	if input.Status != nil {
		values["status"] = *input.Status
	}
	if input.NextRunTime != nil {
		if next, ok := input.NextRunTime.Get(); ok {
			values["next_run_time"] = next
		} else {
			values["next_run_time"] = nil
		}
	}
	if input.ResultPath != nil {
		values["result_path"] = *input.ResultPath
	}
	if input.ResultSummary != nil {
		values["result_summary"] = *input.ResultSummary
	}
	if input.ErrorLog != nil {
		values["error_log"] = *input.ErrorLog
	}
	if input.StartedAt != nil {
		values["started_at"] = input.StartedAt
	}
	if input.CompletedAt != nil {
		values["completed_at"] = input.CompletedAt
	}
	if input.LastExecutionAt != nil {
		values["last_execution_at"] = input.LastExecutionAt
	}
	if input.ExecutionCount != nil {
		values["execution_count"] = *input.ExecutionCount
	}
	return values
}
