package models

import "time"

// Product 商品库存
type Product struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	ManageStock bool      `gorm:"not null;default:false" json:"manage_stock"` // 是否管理库存
	Stock       int       `gorm:"not null;default:0" json:"stock"`            // 可用库存
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
