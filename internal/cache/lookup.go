package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/models"
)

const (
	orderLookupTTL  = 2 * time.Hour
	accountsListTTL = 10 * time.Minute
	accountsListKey = "dfinsell:accounts"
)

// OrderLookup 支付令牌到订单的映射快照
type OrderLookup struct {
	OrderID uint   `json:"order_id"`
	PayID   string `json:"pay_id"`
	Status  string `json:"status"`
}

func orderLookupKey(payID string) string {
	return fmt.Sprintf("dfinsell:order_by_pay_id:%s", strings.TrimSpace(payID))
}

// SetOrderLookup 写入支付令牌映射
func SetOrderLookup(ctx context.Context, lookup *OrderLookup) error {
	if lookup == nil || strings.TrimSpace(lookup.PayID) == "" {
		return nil
	}
	return SetJSON(ctx, orderLookupKey(lookup.PayID), lookup, orderLookupTTL)
}

// GetOrderLookup 读取支付令牌映射
func GetOrderLookup(ctx context.Context, payID string) (*OrderLookup, bool, error) {
	if strings.TrimSpace(payID) == "" {
		return nil, false, nil
	}
	var lookup OrderLookup
	hit, err := GetJSON(ctx, orderLookupKey(payID), &lookup)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &lookup, true, nil
}

// DelOrderLookup 删除支付令牌映射
func DelOrderLookup(ctx context.Context, payID string) error {
	if strings.TrimSpace(payID) == "" {
		return nil
	}
	return Del(ctx, orderLookupKey(payID))
}

// GetAccounts 读取账户列表缓存
func GetAccounts(ctx context.Context) ([]models.Account, bool, error) {
	var accounts []models.Account
	hit, err := GetJSON(ctx, accountsListKey, &accounts)
	if err != nil || !hit {
		return nil, hit, err
	}
	return accounts, true, nil
}

// SetAccounts 写入账户列表缓存
func SetAccounts(ctx context.Context, accounts []models.Account) error {
	return SetJSON(ctx, accountsListKey, accounts, accountsListTTL)
}

// DelAccounts 失效账户列表缓存
func DelAccounts(ctx context.Context) error {
	return Del(ctx, accountsListKey)
}
