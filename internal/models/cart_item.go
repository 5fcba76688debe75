package models

import "time"

// CartItem 购物车项（按会话归属）
type CartItem struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	SessionKey string    `gorm:"type:varchar(64);not null;index" json:"-"`
	ProductID  uint      `gorm:"not null" json:"product_id"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}
