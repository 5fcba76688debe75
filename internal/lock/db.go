package lock

import (
	"context"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBLocker 基于 payment_locks 表的锁，获取操作为单条 upsert
type DBLocker struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewDBLocker 创建数据库锁
func NewDBLocker(db *gorm.DB, ttl time.Duration) *DBLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DBLocker{db: db, ttl: ttl, now: time.Now}
}

// Acquire 插入锁行；已存在且已过期时覆盖，未过期时不生效
func (l *DBLocker) Acquire(ctx context.Context, key string) bool {
	if l == nil || l.db == nil || strings.TrimSpace(key) == "" {
		return false
	}
	now := l.now()
	record := models.PaymentLock{
		Key:       key,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(l.ttl).UnixMilli(),
	}
	result := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"token":      record.Token,
			"expires_at": record.ExpiresAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: models.PaymentLock{}.TableName(), Name: "expires_at"}, Value: now.UnixMilli()},
		}},
	}).Create(&record)
	if result.Error != nil {
		logger.Warnw("lock_db_acquire_failed", "key", key, "error", result.Error)
		return false
	}
	return result.RowsAffected == 1
}

// Release 删除锁行
func (l *DBLocker) Release(ctx context.Context, key string) {
	if l == nil || l.db == nil || strings.TrimSpace(key) == "" {
		return
	}
	if err := l.db.WithContext(ctx).Where("key = ?", key).Delete(&models.PaymentLock{}).Error; err != nil {
		logger.Warnw("lock_db_release_failed", "key", key, "error", err)
	}
}
