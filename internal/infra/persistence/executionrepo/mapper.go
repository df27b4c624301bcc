package executionrepo

import (
	domain "github.com/taskq/scheduler/internal/biz/execution"
	"github.com/taskq/scheduler/internal/infra/persistence/commonrepo"
)

func (po *ExecutionRecordPo) ToDomain() *domain.ExecutionRecord {
	return &domain.ExecutionRecord{
		ID:          po.ID,
		CreatedAt:   po.CreatedAt,
		TaskID:      po.TaskID,
		StartedAt:   po.StartedAt,
		CompletedAt: po.CompletedAt,
		Status:      po.Status,
		ResultPath:  po.ResultPath,
		ErrorLog:    po.ErrorLog,
		ErrorKind:   po.ErrorKind,
	}
}

func (po *ExecutionRecordPo) FromDomain(record *domain.ExecutionRecord) *ExecutionRecordPo {
	return &ExecutionRecordPo{
		Mode: commonrepo.Mode{
			ID:        record.ID,
			CreatedAt: record.CreatedAt,
		},
		TaskID:      record.TaskID,
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
		Status:      record.Status,
		ResultPath:  record.ResultPath,
		ErrorLog:    record.ErrorLog,
		ErrorKind:   record.ErrorKind,
	}
}
