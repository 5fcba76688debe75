package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/payment/dfinsell"
)

// PopupInput 弹窗会话请求
type PopupInput struct {
	OrderID uint   `json:"order_id"`
	Nonce   string `json:"nonce"`
}

// PopupResult 弹窗对账结果
type PopupResult struct {
	OrderID   uint   `json:"order_id"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
	Changed   bool   `json:"changed"`
	ReturnURL string `json:"return_url,omitempty"`
}

// CheckPaymentStatus 轮询订单当前状态
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, input PopupInput) (*PopupResult, error) {
	order, err := s.loadPopupOrder(input)
	if err != nil {
		return nil, err
	}
	result := &PopupResult{OrderID: order.ID, Status: order.Status, Paid: isPaidStatus(order.Status)}
	if result.Paid {
		result.ReturnURL = s.orderReceivedURL(order)
	}
	return result, nil
}

// HandlePopupClosed 付款人关闭支付弹窗后向网关查询交易状态并落库
func (s *PaymentService) HandlePopupClosed(ctx context.Context, input PopupInput) (*PopupResult, error) {
	order, err := s.loadPopupOrder(input)
	if err != nil {
		return nil, err
	}
	result := &PopupResult{OrderID: order.ID, Status: order.Status, Paid: isPaidStatus(order.Status)}
	if order.Status != constants.OrderStatusPending {
		if result.Paid {
			result.ReturnURL = s.orderReceivedURL(order)
		}
		return result, nil
	}
	if order.PayID == "" {
		return nil, ErrPaymentTokenMissing
	}

	log := paymentLogger("order_id", order.ID, "pay_id", order.PayID)
	resp, err := s.client.UpdateTxnStatus(ctx, input.Nonce, order.ID, order.PayID)
	if err != nil {
		log.Errorw("payment_popup_status_request_failed", "error", err)
		if errors.Is(err, dfinsell.ErrResponseInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayResponseInvalid, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayRequestFailed, err)
	}

	target, err := s.popupTargetStatus(resp.TransactionStatus)
	if err != nil {
		log.Errorw("payment_popup_status_unmapped", "transaction_status", resp.TransactionStatus, "error", err)
		return nil, err
	}
	changed, err := transitionOrder(s.orderRepo, order, target, transitionSourcePopup, nil)
	if err != nil {
		log.Errorw("payment_popup_order_update_failed", "target", target, "error", err)
		return nil, err
	}
	if changed && target == constants.OrderStatusCancelled {
		restoreStock(s.orderRepo, s.productRepo, order)
	}
	if changed && isPaidStatus(target) {
		s.clearCart(order)
	}

	result.Status = order.Status
	result.Changed = changed
	result.Paid = isPaidStatus(order.Status)
	if result.Paid {
		result.ReturnURL = s.orderReceivedURL(order)
	}
	log.Infow("payment_popup_reconciled", "transaction_status", resp.TransactionStatus, "status", order.Status, "changed", changed)
	return result, nil
}

func (s *PaymentService) loadPopupOrder(input PopupInput) (*models.Order, error) {
	if input.OrderID == 0 {
		return nil, ErrOrderNotFound
	}
	if _, err := s.nonceSvc.Verify(constants.NonceActionPopup, orderSubject(input.OrderID), input.Nonce); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// popupTargetStatus 网关交易状态到订单状态的映射
func (s *PaymentService) popupTargetStatus(txnStatus string) (string, error) {
	switch normalizeStatus(txnStatus) {
	case constants.TxnStatusSuccess, constants.TxnStatusPaid, constants.TxnStatusProcessing:
		setting, err := s.settingSvc.GetGateway()
		if err != nil {
			return "", err
		}
		return s.settingSvc.resolveTargetStatus(setting)
	case constants.TxnStatusFailed:
		return constants.OrderStatusFailed, nil
	case constants.TxnStatusCanceled, constants.TxnStatusExpired:
		return constants.OrderStatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown transaction status %q", ErrPaymentGatewayResponseInvalid, txnStatus)
}
