package models

// PaymentLock 账户支付锁（无 Redis 时的数据库实现）
type PaymentLock struct {
	Key       string `gorm:"primarykey;type:varchar(191)" json:"key"`
	Token     string `gorm:"type:varchar(64);not null" json:"-"`
	ExpiresAt int64  `gorm:"not null;index" json:"expires_at"` // Unix 毫秒
}

// TableName 指定表名
func (PaymentLock) TableName() string {
	return "payment_locks"
}
