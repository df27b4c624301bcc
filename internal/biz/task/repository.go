package task

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/taskq/scheduler/internal/infra/persistence/commonrepo"
)

type Repo interface {
	commonrepo.Transaction
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id uint64) (*Task, error)
	Update(ctx context.Context, id uint64, patch *TaskPatch) error
	List(ctx context.Context, filter *TaskFilter) ([]*Task, error)

	// PromoteDue 将到期的pending任务置为ready，返回提升数量
	PromoteDue(ctx context.Context, now time.Time) (int64, error)

	// ListReady 按创建顺序返回所有ready任务
	ListReady(ctx context.Context) ([]*Task, error)

	// ClaimReady 条件更新：仅当任务仍为ready时置为in_progress并记录started_at。
	// 返回false表示任务已被认领或不存在。这是唯一的并发敏感操作。
	ClaimReady(ctx context.Context, id uint64, now time.Time) (bool, error)

	// PruneCompleted 删除在before之前完成的一次性任务，返回删除数量
	PruneCompleted(ctx context.Context, before time.Time) (int64, error)
}

type TaskFilter struct {
	Status   mo.Option[TaskStatus]
	TaskType mo.Option[TaskType]
	Limit    int
}
