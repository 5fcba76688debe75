package service

import (
	"context"
	"time"

	"github.com/dfinsell-next/internal/cache"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/payment/dfinsell"
	"github.com/dfinsell-next/internal/repository"
)

// OrderExpiryService 未支付订单超时取消
type OrderExpiryService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	store       *AccountStore
	client      *dfinsell.Client
	threshold   time.Duration
	now         func() time.Time
}

// NewOrderExpiryService 创建超时取消服务
func NewOrderExpiryService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, store *AccountStore, client *dfinsell.Client, threshold time.Duration) *OrderExpiryService {
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &OrderExpiryService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		store:       store,
		client:      client,
		threshold:   threshold,
		now:         time.Now,
	}
}

// ExpireResult 超时处理结果
type ExpireResult struct {
	OrderID          uint   `json:"order_id"`
	Status           string `json:"status"`
	Cancelled        bool   `json:"cancelled"`
	Skipped          bool   `json:"skipped"`
	LinkCancelCalled bool   `json:"link_cancel_called"`
}

// ExpireUnpaidOrder 取消超过阈值仍未支付的订单，并尽力作废网关支付链接。
// 网关调用失败只记录日志。
func (s *OrderExpiryService) ExpireUnpaidOrder(ctx context.Context, orderID uint) (*ExpireResult, error) {
	order, err := s.resolveOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	result := &ExpireResult{OrderID: order.ID, Status: order.Status}
	log := logger.SW("order_id", order.ID, "status", order.Status)

	if order.Status == constants.OrderStatusPending {
		since := order.CreatedAt
		if order.PendingSince != nil {
			since = *order.PendingSince
		}
		if s.now().Sub(since) < s.threshold {
			result.Skipped = true
			log.Debugw("order_expiry_not_due", "pending_since", since)
			return result, nil
		}
	}
	if isPaidStatus(order.Status) {
		result.Skipped = true
		log.Infow("order_expiry_skipped_paid")
		return result, nil
	}

	if order.Status != constants.OrderStatusCancelled {
		changed, err := transitionOrder(s.orderRepo, order, constants.OrderStatusCancelled, transitionSourceExpiry, nil)
		if err != nil {
			return nil, err
		}
		if changed {
			result.Cancelled = true
			restoreStock(s.orderRepo, s.productRepo, order)
			if err := cache.DelOrderLookup(ctx, order.PayID); err != nil {
				log.Warnw("order_lookup_cache_delete_failed", "error", err)
			}
			log.Infow("order_expiry_cancelled")
		}
	}
	result.Status = order.Status

	result.LinkCancelCalled = s.cancelPaymentLink(ctx, order)
	return result, nil
}

func (s *OrderExpiryService) resolveOrder(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order != nil {
		return order, nil
	}
	order, err = s.orderRepo.GetLatestByStatus(constants.OrderStatusCheckoutDraft)
	if err != nil {
		return nil, err
	}
	if order != nil {
		logger.Warnw("order_expiry_fallback_draft", "requested_order_id", orderID, "order_id", order.ID)
	}
	return order, nil
}

// cancelPaymentLink 作废支付链接，返回是否发起了网关调用
func (s *OrderExpiryService) cancelPaymentLink(ctx context.Context, order *models.Order) bool {
	log := logger.SW("order_id", order.ID)
	if order.PayID == "" {
		log.Infow("order_expiry_cancel_link_skipped_no_token")
		return false
	}
	publicKey := s.publicKeyFor(ctx, order)
	if publicKey == "" {
		log.Warnw("order_expiry_cancel_link_skipped_no_account", "account", order.AccountTitle)
		return false
	}
	if err := s.client.CancelOrderLink(ctx, publicKey, order.ID, order.PayID); err != nil {
		log.Warnw("order_expiry_cancel_link_failed", "pay_id", order.PayID, "error", err)
		return true
	}
	log.Infow("order_expiry_cancel_link_sent", "pay_id", order.PayID)
	return true
}

// publicKeyFor 优先使用签发令牌的账户，找不到时退回第一个账户
func (s *OrderExpiryService) publicKeyFor(ctx context.Context, order *models.Order) string {
	accounts, err := s.store.Load(ctx)
	if err != nil || len(accounts) == 0 {
		return ""
	}
	sandbox := order.PaymentMode == constants.PaymentModeSandbox
	for _, account := range accounts {
		if account.Title == order.AccountTitle {
			publicKey, _ := account.KeysFor(sandbox)
			return publicKey
		}
	}
	publicKey, _ := accounts[0].KeysFor(sandbox)
	return publicKey
}

// SweepResult 批量超时检查结果
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// SweepStale 扫描超过阈值仍为 pending 的订单逐个取消，队列不可用或延迟任务丢失时兜底
func (s *OrderExpiryService) SweepStale(ctx context.Context, limit int) (*SweepResult, error) {
	orders, err := s.orderRepo.ListStalePending(s.now().Add(-s.threshold), limit)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{Scanned: len(orders)}
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		expired, err := s.ExpireUnpaidOrder(ctx, order.ID)
		if err != nil {
			result.Failed++
			logger.Warnw("order_expiry_sweep_item_failed", "order_id", order.ID, "error", err)
			continue
		}
		if expired.Cancelled {
			result.Cancelled++
		}
	}
	if result.Scanned > 0 {
		logger.Infow("order_expiry_sweep_done", "scanned", result.Scanned, "cancelled", result.Cancelled, "failed", result.Failed)
	}
	return result, nil
}
