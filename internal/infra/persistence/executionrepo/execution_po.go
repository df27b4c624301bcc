package executionrepo

import (
	"time"

	domain "github.com/taskq/scheduler/internal/biz/execution"
	"github.com/taskq/scheduler/internal/infra/persistence/commonrepo"
)

type ExecutionRecordPo struct {
	commonrepo.Mode
	TaskID      uint64                 `gorm:"column:task_id;not null;index:idx_task_status"`
	StartedAt   *time.Time             `gorm:"column:started_at"`
	CompletedAt *time.Time             `gorm:"column:completed_at"`
	Status      domain.ExecutionStatus `gorm:"column:status;size:20;not null;index:idx_task_status"`
	ResultPath  string                 `gorm:"column:result_path;size:512"`
	ErrorLog    string                 `gorm:"column:error_log;type:text"`
	ErrorKind   domain.ErrorKind       `gorm:"column:error_kind;size:20"`
}

func (ExecutionRecordPo) TableName() string {
	return "queue_execution_records"
}
