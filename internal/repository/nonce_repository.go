package repository

import (
	"errors"
	"time"

	"github.com/dfinsell-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NonceRepository 一次性令牌消费记录
type NonceRepository interface {
	Consume(jti, action string, expiresAt time.Time) (bool, error)
	IsConsumed(jti string) (bool, error)
	DeleteExpired(now time.Time) (int64, error)
}

// GormNonceRepository GORM 实现
type GormNonceRepository struct {
	db *gorm.DB
}

// NewNonceRepository 创建令牌仓库
func NewNonceRepository(db *gorm.DB) *GormNonceRepository {
	return &GormNonceRepository{db: db}
}

// Consume 记录令牌已使用，重复消费返回 false
func (r *GormNonceRepository) Consume(jti, action string, expiresAt time.Time) (bool, error) {
	if jti == "" {
		return false, errors.New("nonce jti is empty")
	}
	record := models.UsedNonce{JTI: jti, Action: action, ExpiresAt: expiresAt}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IsConsumed 判断令牌是否已使用
func (r *GormNonceRepository) IsConsumed(jti string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.UsedNonce{}).Where("jti = ?", jti).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteExpired 清理过期记录
func (r *GormNonceRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", now).Delete(&models.UsedNonce{})
	return result.RowsAffected, result.Error
}
