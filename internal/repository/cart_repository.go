package repository

import (
	"strings"

	"github.com/dfinsell-next/internal/models"

	"gorm.io/gorm"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	Add(item *models.CartItem) error
	ListBySession(sessionKey string) ([]models.CartItem, error)
	ClearBySession(sessionKey string) (int64, error)
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// Add 添加购物车项
func (r *GormCartRepository) Add(item *models.CartItem) error {
	return r.db.Create(item).Error
}

// ListBySession 获取会话购物车
func (r *GormCartRepository) ListBySession(sessionKey string) ([]models.CartItem, error) {
	items := make([]models.CartItem, 0)
	if strings.TrimSpace(sessionKey) == "" {
		return items, nil
	}
	if err := r.db.Where("session_key = ?", sessionKey).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ClearBySession 清空会话购物车
func (r *GormCartRepository) ClearBySession(sessionKey string) (int64, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return 0, nil
	}
	result := r.db.Where("session_key = ?", sessionKey).Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}
