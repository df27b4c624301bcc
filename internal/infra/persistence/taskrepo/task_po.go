package taskrepo

import (
	"time"

	domain "github.com/taskq/scheduler/internal/biz/task"
	"github.com/taskq/scheduler/internal/infra/persistence/commonrepo"
	"gorm.io/datatypes"
)

type TaskPo struct {
	commonrepo.Mode
	TaskType     domain.TaskType     `gorm:"column:task_type;size:50;not null;index"`          // 任务类型
	Payload      datatypes.JSONMap   `gorm:"column:payload;type:json"`                         // 任务参数，核心不解释内容
	OutputFormat domain.OutputFormat `gorm:"column:output_format;size:20;not null"`            // 产物格式
	Status       domain.TaskStatus   `gorm:"column:status;size:20;not null;index"`             // 任务状态
	NextRunTime  *time.Time          `gorm:"column:next_run_time;index"`                       // 下次触发时间，一次性任务离开pending后为空

	ScheduleCron     string `gorm:"column:schedule_cron;size:100"`     // cron表达式，空表示一次性任务
	ScheduleTimezone string `gorm:"column:schedule_timezone;size:64"`  // 表达式解释时区
	ScheduleEnabled  bool   `gorm:"column:schedule_enabled;default:false"`

	ResultPath    string `gorm:"column:result_path;size:512"`
	ResultSummary string `gorm:"column:result_summary;type:text"`
	ErrorLog      string `gorm:"column:error_log;type:text"`

	CreatedBy       string     `gorm:"column:created_by;size:255"`
	StartedAt       *time.Time `gorm:"column:started_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at;index"`
	ExecutionCount  int        `gorm:"column:execution_count;default:0"`
	LastExecutionAt *time.Time `gorm:"column:last_execution_at"`
}

func (TaskPo) TableName() string {
	return "queue_tasks"
}
