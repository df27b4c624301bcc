package taskrepo

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	domain "github.com/taskq/scheduler/internal/biz/task"
	"github.com/taskq/scheduler/internal/infra/persistence/commonrepo"
	"gorm.io/gorm"
)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) Create(ctx context.Context, task *domain.Task) error {
	po := new(TaskPo).FromDomain(task)
	err := r.Db(ctx).Create(po).Error
	if err != nil {
		return err
	}
	task.ID = po.ID
	task.CreatedAt = po.CreatedAt
	task.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Task, error) {
	var po TaskPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *MysqlRepositoryImpl) Update(ctx context.Context, id uint64, patch *domain.TaskPatch) error {
	values := patchToMap(patch)
	if len(values) == 0 {
		return nil
	}
	return r.Db(ctx).Model(&TaskPo{}).Where("id = ?", id).Updates(values).Error
}

func (r *MysqlRepositoryImpl) List(ctx context.Context, filter *domain.TaskFilter) ([]*domain.Task, error) {
	var pos []TaskPo
	query := r.Db(ctx).Model(&TaskPo{})
	if filter.Status.IsPresent() {
		query = query.Where("status = ?", filter.Status.MustGet())
	}
	if filter.TaskType.IsPresent() {
		query = query.Where("task_type = ?", filter.TaskType.MustGet())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Order("id ASC").Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po TaskPo, _ int) *domain.Task {
		return po.ToDomain()
	}), nil
}

func (r *MysqlRepositoryImpl) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.Db(ctx).Model(&TaskPo{}).
		Where("status = ? AND (next_run_time IS NULL OR next_run_time <= ?)",
			domain.TaskStatusPending, now).
		Update("status", domain.TaskStatusReady)
	return result.RowsAffected, result.Error
}

func (r *MysqlRepositoryImpl) ListReady(ctx context.Context) ([]*domain.Task, error) {
	var pos []TaskPo
	// 雪花ID单调递增，按id排序即按创建顺序（FIFO）
	if err := r.Db(ctx).Model(&TaskPo{}).
		Where("status = ?", domain.TaskStatusReady).
		Order("id ASC").
		Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po TaskPo, _ int) *domain.Task {
		return po.ToDomain()
	}), nil
}

func (r *MysqlRepositoryImpl) ClaimReady(ctx context.Context, id uint64, now time.Time) (bool, error) {
	// 单条条件更新，status仍为ready时才生效；两个执行器竞争同一任务时
	// 只有一个RowsAffected为1
	result := r.Db(ctx).Model(&TaskPo{}).
		Where("id = ? AND status = ?", id, domain.TaskStatusReady).
		Updates(map[string]any{
			"status":     domain.TaskStatusInProgress,
			"started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *MysqlRepositoryImpl) PruneCompleted(ctx context.Context, before time.Time) (int64, error) {
	result := r.Db(ctx).
		Where("status = ? AND schedule_enabled = ? AND completed_at < ?",
			domain.TaskStatusCompleted, false, before).
		Delete(&TaskPo{})
	return result.RowsAffected, result.Error
}
