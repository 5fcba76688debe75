package service

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dfinsell-next/internal/cache"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/models"
)

// CallbackInput 网关服务端回调
type CallbackInput struct {
	Nonce       string `json:"nonce"`
	OrderID     uint   `json:"order_id"`
	PayID       string `json:"pay_id"`
	OrderStatus string `json:"order_status"`
}

// CallbackResult 回调处理结果，HTTPStatus 直接作为响应状态码
type CallbackResult struct {
	HTTPStatus int
	Success    bool
	Message    string
	ReturnURL  string
}

func callbackFailure(status int, message string) *CallbackResult {
	return &CallbackResult{HTTPStatus: status, Message: message}
}

// HandleProviderCallback 处理网关推送的订单状态。
// 仅当订单处于 pending 或 failed 时才会把 completed 映射为商户配置的目标状态，其余情况原样确认。
func (s *PaymentService) HandleProviderCallback(ctx context.Context, input CallbackInput) *CallbackResult {
	log := paymentLogger("order_id", input.OrderID, "pay_id", input.PayID)

	setting, err := s.settingSvc.GetGateway()
	if err != nil {
		log.Errorw("payment_callback_setting_load_failed", "error", err)
		return callbackFailure(http.StatusInternalServerError, "Unable to load gateway settings")
	}
	authorized, err := s.matchesAccountKey(ctx, input.Nonce, setting.Sandbox)
	if err != nil {
		log.Errorw("payment_callback_accounts_load_failed", "error", err)
		return callbackFailure(http.StatusInternalServerError, "Unable to load accounts")
	}
	if !authorized {
		log.Errorw("payment_callback_unauthorized")
		return callbackFailure(http.StatusUnauthorized, "Unauthorized")
	}

	orderID := s.resolveCallbackOrderID(ctx, input)
	payID := strings.TrimSpace(input.PayID)
	incoming := normalizeStatus(input.OrderStatus)
	if orderID == 0 || payID == "" || incoming == "" {
		log.Errorw("payment_callback_invalid_input", "order_status", input.OrderStatus)
		return callbackFailure(http.StatusBadRequest, "Missing order_id, pay_id or order_status")
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		log.Errorw("payment_callback_order_load_failed", "error", err)
		return callbackFailure(http.StatusInternalServerError, "Unable to load order")
	}
	if order == nil {
		log.Errorw("payment_callback_order_not_found")
		return callbackFailure(http.StatusNotFound, "Order not found")
	}
	if subtle.ConstantTimeCompare([]byte(order.PayID), []byte(payID)) != 1 {
		log.Errorw("payment_callback_pay_id_mismatch", "stored_pay_id", order.PayID)
		return callbackFailure(http.StatusBadRequest, "Payment token mismatch")
	}

	target := order.Status
	if incoming == constants.CallbackOrderStatusCompleted &&
		(order.Status == constants.OrderStatusPending || order.Status == constants.OrderStatusFailed) {
		target, err = s.settingSvc.resolveTargetStatus(setting)
		if err != nil {
			log.Errorw("payment_callback_target_status_invalid", "order_status", setting.OrderStatus)
			return callbackFailure(http.StatusInternalServerError, "Invalid order status configured")
		}
	}

	if target != order.Status {
		if _, err := transitionOrder(s.orderRepo, order, target, transitionSourceCallback, nil); err != nil {
			log.Errorw("payment_callback_order_update_failed", "target", target, "error", err)
			return callbackFailure(http.StatusInternalServerError, "Failed to update order status")
		}
	}

	s.clearCart(order)
	return &CallbackResult{
		HTTPStatus: http.StatusOK,
		Success:    true,
		Message:    "Order status updated",
		ReturnURL:  s.orderReceivedURL(order),
	}
}

// matchesAccountKey 使用常量时间比较校验回调 nonce 是否为任一账户的当前模式公钥
func (s *PaymentService) matchesAccountKey(ctx context.Context, nonce string, sandbox bool) (bool, error) {
	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return false, nil
	}
	accounts, err := s.accountStore.Load(ctx)
	if err != nil {
		return false, err
	}
	matched := 0
	for _, account := range accounts {
		publicKey, _ := account.KeysFor(sandbox)
		if publicKey == "" {
			continue
		}
		matched |= subtle.ConstantTimeCompare([]byte(publicKey), []byte(nonce))
	}
	return matched == 1, nil
}

func (s *PaymentService) resolveCallbackOrderID(ctx context.Context, input CallbackInput) uint {
	if input.OrderID != 0 {
		return input.OrderID
	}
	lookup, hit, err := cache.GetOrderLookup(ctx, input.PayID)
	if err != nil || !hit || lookup == nil {
		return 0
	}
	return lookup.OrderID
}

func (s *PaymentService) clearCart(order *models.Order) {
	if order == nil || s.cartRepo == nil {
		return
	}
	if _, err := s.cartRepo.ClearBySession(order.SessionKey); err != nil {
		logger.Warnw("cart_clear_failed", "order_id", order.ID, "error", err)
	}
}

// ReturnInput 网关回跳参数
type ReturnInput struct {
	OrderID  uint
	OrderKey string
	Nonce    string
}

// HandleReturn 校验并消费回跳令牌，返回订单完成页地址
func (s *PaymentService) HandleReturn(ctx context.Context, input ReturnInput) (string, error) {
	if input.OrderID == 0 {
		return "", ErrOrderNotFound
	}
	if err := s.nonceSvc.Consume(constants.NonceActionRedirect, orderSubject(input.OrderID), input.Nonce); err != nil {
		return "", err
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return "", err
	}
	if order == nil || !orderKeyMatches(order, input.OrderKey) {
		return "", ErrOrderNotFound
	}
	s.clearCart(order)
	return s.orderReceivedURL(order), nil
}
