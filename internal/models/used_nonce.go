package models

import "time"

// UsedNonce 已消费的一次性令牌
type UsedNonce struct {
	JTI       string    `gorm:"primarykey;type:varchar(64)" json:"jti"`
	Action    string    `gorm:"type:varchar(64);not null;index" json:"action"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (UsedNonce) TableName() string {
	return "used_nonces"
}
