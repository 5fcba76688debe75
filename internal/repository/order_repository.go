package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetLatestByStatus(status string) (*models.Order, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	CompareAndSwapStatus(id uint, from, to string, updates map[string]interface{}) (bool, error)
	BindPaymentToken(id uint, payID string, updates map[string]interface{}) (bool, error)
	Update(id uint, updates map[string]interface{}) error
	AddNote(orderID uint, content string) error
	ListNotes(orderID uint) ([]models.OrderNote, error)
	List(filter OrderListFilter) ([]models.Order, int64, error)
	ListStalePending(before time.Time, limit int) ([]models.Order, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetLatestByStatus 获取指定状态下最新的订单
func (r *GormOrderRepository) GetLatestByStatus(status string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").Where("status = ?", status).Order("id DESC").First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 无条件更新订单状态
func (r *GormOrderRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// CompareAndSwapStatus 仅当当前状态为 from 时更新为 to，返回是否更新成功
func (r *GormOrderRepository) CompareAndSwapStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.db.Model(&models.Order{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// BindPaymentToken 写入支付令牌（仅当订单尚无令牌时生效）
func (r *GormOrderRepository) BindPaymentToken(id uint, payID string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["pay_id"] = payID
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND (pay_id IS NULL OR pay_id = '')", id).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Update 更新订单字段（pay_id 不可通过此方法修改）
func (r *GormOrderRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	delete(updates, "pay_id")
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// AddNote 添加订单备注
func (r *GormOrderRepository) AddNote(orderID uint, content string) error {
	note := models.OrderNote{OrderID: orderID, Content: content}
	return r.db.Create(&note).Error
}

// ListNotes 获取订单备注
func (r *GormOrderRepository) ListNotes(orderID uint) ([]models.OrderNote, error) {
	notes := make([]models.OrderNote, 0)
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// List 后台分页查询订单
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if title := strings.TrimSpace(filter.AccountTitle); title != "" {
		query = query.Where("account_title = ?", title)
	}
	if payID := strings.TrimSpace(filter.PayID); payID != "" {
		query = query.Where("pay_id = ?", payID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	orders := make([]models.Order, 0)
	query = applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize)
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListStalePending 查询进入待支付早于 before 的订单
func (r *GormOrderRepository) ListStalePending(before time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	orders := make([]models.Order, 0)
	err := r.db.Where("status = ? AND pending_since IS NOT NULL AND pending_since < ?", "pending", before).
		Order("pending_since ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
