package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表（商城订单的本地映射）
type Order struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                          // 主键
	OrderKey     string         `gorm:"uniqueIndex;not null" json:"order_key"`                         // 订单密钥（回跳校验）
	Status       string         `gorm:"index;not null" json:"status"`                                  // 订单状态
	Currency     string         `gorm:"not null;default:'USD'" json:"currency"`                        // 币种
	TotalAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`     // 订单金额
	SessionKey   string         `gorm:"index;type:varchar(64)" json:"-"`                               // 购物车会话
	ClientIP     string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`                   // 下单客户端IP
	PayID        string         `gorm:"index;type:varchar(128)" json:"pay_id,omitempty"`               // 网关支付令牌（设置后不可变）
	Origin       string         `gorm:"type:varchar(32)" json:"origin,omitempty"`                      // 订单来源标记
	AccountTitle string         `gorm:"type:varchar(128)" json:"account_title,omitempty"`              // 签发令牌的商户账户
	PaymentMode  string         `gorm:"type:varchar(16)" json:"payment_mode,omitempty"`                // live / sandbox
	PendingSince *time.Time     `gorm:"index" json:"pending_since,omitempty"`                          // 进入待支付时间
	StockReduced bool           `gorm:"not null;default:false" json:"stock_reduced"`                   // 是否已占用库存
	PaidAt       *time.Time     `gorm:"index" json:"paid_at"`                                          // 支付时间
	CanceledAt   *time.Time     `gorm:"index" json:"canceled_at"`                                      // 取消时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间

	Billing BillingAddress `gorm:"embedded;embeddedPrefix:billing_" json:"billing"` // 账单信息

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
	Notes []OrderNote `gorm:"foreignKey:OrderID" json:"notes,omitempty"` // 订单备注
}

// BillingAddress 账单地址
type BillingAddress struct {
	FirstName string `gorm:"type:varchar(100)" json:"first_name"`
	LastName  string `gorm:"type:varchar(100)" json:"last_name"`
	Email     string `gorm:"type:varchar(200)" json:"email"`
	Phone     string `gorm:"type:varchar(50)" json:"phone"`
	Address1  string `gorm:"type:varchar(255)" json:"address_1"`
	Address2  string `gorm:"type:varchar(255)" json:"address_2"`
	City      string `gorm:"type:varchar(100)" json:"city"`
	State     string `gorm:"type:varchar(100)" json:"state"`
	Postcode  string `gorm:"type:varchar(32)" json:"postcode"`
	Country   string `gorm:"type:varchar(8)" json:"country"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单项表
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderNote 订单备注
type OrderNote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (OrderNote) TableName() string {
	return "order_notes"
}
