package execution

import (
	"context"

	"github.com/samber/mo"
)

// Repo 执行记录仓储。记录是追加式的，没有更新接口。
type Repo interface {
	Create(ctx context.Context, record *ExecutionRecord) error
	ListByTask(ctx context.Context, taskID uint64, limit int) ([]*ExecutionRecord, error)
	Count(ctx context.Context, filter CountFilter) (int64, error)
}

type CountFilter struct {
	TaskID mo.Option[uint64]
	Status mo.Option[ExecutionStatus]
}
