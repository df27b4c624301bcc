package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Locker MySQL分布式锁，防止多个queued实例同时做到期提升
type Locker struct {
	db       *sql.DB
	lockName string
	timeout  time.Duration
	logger   *zap.Logger
	locked   bool
}

// NewLocker 创建分布式锁
func NewLocker(db *sql.DB, lockName string, timeout time.Duration, logger *zap.Logger) *Locker {
	return &Locker{
		db:       db,
		lockName: lockName,
		timeout:  timeout,
		logger:   logger,
		locked:   false,
	}
}

// TryLock 尝试获取锁
func (l *Locker) TryLock(ctx context.Context) (bool, error) {
	if l.locked {
		return true, nil
	}

	// MySQL GET_LOCK 函数
	// 返回值: 1-成功获取锁, 0-超时, NULL-错误
	query := "SELECT GET_LOCK(?, ?)"
	timeoutSeconds := int(l.timeout.Seconds())

	var result sql.NullInt64
	err := l.db.QueryRowContext(ctx, query, l.lockName, timeoutSeconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !result.Valid {
		return false, fmt.Errorf("lock query returned NULL")
	}

	if result.Int64 == 1 {
		l.locked = true
		l.logger.Debug("acquired distributed lock",
			zap.String("lock_name", l.lockName))
		return true, nil
	}

	return false, nil
}

// Unlock 释放锁
func (l *Locker) Unlock(ctx context.Context) error {
	if !l.locked {
		return nil
	}

	query := "SELECT RELEASE_LOCK(?)"

	var result sql.NullInt64
	err := l.db.QueryRowContext(ctx, query, l.lockName).Scan(&result)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if !result.Valid {
		return fmt.Errorf("release lock query returned NULL")
	}

	if result.Int64 == 1 {
		l.locked = false
		return nil
	}

	return fmt.Errorf("failed to release lock: not owner or lock does not exist")
}

// IsLocked 检查是否持有锁
func (l *Locker) IsLocked() bool {
	return l.locked
}

// WithLock 在持有锁的情况下执行函数；拿不到锁时返回false且不执行
func (l *Locker) WithLock(ctx context.Context, fn func() error) (bool, error) {
	locked, err := l.TryLock(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return false, nil
	}

	defer func() {
		if err := l.Unlock(ctx); err != nil {
			l.logger.Error("failed to release lock",
				zap.String("lock_name", l.lockName),
				zap.Error(err))
		}
	}()

	return true, fn()
}
