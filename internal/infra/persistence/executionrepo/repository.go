package executionrepo

import (
	"context"

	"github.com/samber/lo"
	domain "github.com/taskq/scheduler/internal/biz/execution"
	"github.com/taskq/scheduler/internal/infra/persistence/commonrepo"
)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) Create(ctx context.Context, record *domain.ExecutionRecord) error {
	po := new(ExecutionRecordPo).FromDomain(record)
	err := r.Db(ctx).Create(po).Error
	if err != nil {
		return err
	}
	record.ID = po.ID
	record.CreatedAt = po.CreatedAt
	return nil
}

func (r *MysqlRepositoryImpl) ListByTask(ctx context.Context, taskID uint64, limit int) ([]*domain.ExecutionRecord, error) {
	var pos []ExecutionRecordPo
	query := r.Db(ctx).Model(&ExecutionRecordPo{}).
		Where("task_id = ?", taskID).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po ExecutionRecordPo, _ int) *domain.ExecutionRecord {
		return po.ToDomain()
	}), nil
}

func (r *MysqlRepositoryImpl) Count(ctx context.Context, filter domain.CountFilter) (int64, error) {
	var count int64
	query := r.Db(ctx).Model(&ExecutionRecordPo{})
	if filter.TaskID.IsPresent() {
		query = query.Where("task_id = ?", filter.TaskID.MustGet())
	}
	if filter.Status.IsPresent() {
		query = query.Where("status = ?", filter.Status.MustGet())
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
