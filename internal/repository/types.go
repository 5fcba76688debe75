package repository

import "time"

// OrderListFilter 后台订单列表过滤条件
type OrderListFilter struct {
	Page         int
	PageSize     int
	Status       string
	AccountTitle string
	PayID        string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}
