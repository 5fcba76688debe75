package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/metrics"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/repository"
)

// 对账来源
const (
	transitionSourceSubmit   = "submit"
	transitionSourceCallback = "callback"
	transitionSourcePopup    = "popup"
	transitionSourceExpiry   = "expiry"
)

var allowedTransitions = map[string]map[string]bool{
	constants.OrderStatusCheckoutDraft: {
		constants.OrderStatusPending:   true,
		constants.OrderStatusFailed:    true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusPending: {
		constants.OrderStatusProcessing: true,
		constants.OrderStatusCompleted:  true,
		constants.OrderStatusFailed:     true,
		constants.OrderStatusCancelled:  true,
	},
	constants.OrderStatusFailed: {
		constants.OrderStatusPending:    true,
		constants.OrderStatusProcessing: true,
		constants.OrderStatusCompleted:  true,
		constants.OrderStatusCancelled:  true,
	},
	constants.OrderStatusProcessing: {
		constants.OrderStatusCompleted: true,
		constants.OrderStatusRefunded:  true,
	},
	constants.OrderStatusCompleted: {
		constants.OrderStatusRefunded: true,
	},
}

func isTransitionAllowed(current, target string) bool {
	if current == target {
		return true
	}
	nexts, ok := allowedTransitions[current]
	if !ok {
		return false
	}
	return nexts[target]
}

// isOrderStatus 是否为合法订单状态
func isOrderStatus(status string) bool {
	switch status {
	case constants.OrderStatusCheckoutDraft,
		constants.OrderStatusPending,
		constants.OrderStatusProcessing,
		constants.OrderStatusCompleted,
		constants.OrderStatusFailed,
		constants.OrderStatusCancelled,
		constants.OrderStatusRefunded:
		return true
	}
	return false
}

// isValidTargetStatus 商户可配置的支付成功目标状态
func isValidTargetStatus(status string) bool {
	return status == constants.OrderStatusProcessing || status == constants.OrderStatusCompleted
}

func isPaidStatus(status string) bool {
	switch status {
	case constants.OrderStatusProcessing, constants.OrderStatusCompleted, constants.OrderStatusRefunded:
		return true
	}
	return false
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// transitionOrder 按状态机比较并交换订单状态。
// 返回 false 表示状态未变化（目标即当前状态，或已被其他对账入口抢先修改）。
func transitionOrder(orderRepo repository.OrderRepository, order *models.Order, target, source string, updates map[string]interface{}) (bool, error) {
	if order == nil {
		return false, ErrOrderNotFound
	}
	current := order.Status
	if current == target {
		return false, nil
	}
	if !isTransitionAllowed(current, target) {
		return false, fmt.Errorf("%w: %s -> %s", ErrOrderStatusInvalid, current, target)
	}
	now := time.Now()
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = now
	switch target {
	case constants.OrderStatusProcessing, constants.OrderStatusCompleted:
		if order.PaidAt == nil {
			updates["paid_at"] = now
		}
	case constants.OrderStatusCancelled:
		updates["canceled_at"] = now
	}

	swapped, err := orderRepo.CompareAndSwapStatus(order.ID, current, target, updates)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if !swapped {
		logger.Infow("order_transition_lost_race",
			"order_id", order.ID,
			"from", current,
			"to", target,
			"source", source,
		)
		return false, nil
	}
	order.Status = target
	metrics.ReconcileTransitionsTotal.WithLabelValues(source, target).Inc()
	note := fmt.Sprintf("Order status changed from %s to %s via %s.", current, target, source)
	if err := orderRepo.AddNote(order.ID, note); err != nil {
		logger.Warnw("order_note_create_failed", "order_id", order.ID, "error", err)
	}
	return true, nil
}
