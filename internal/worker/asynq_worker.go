package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/provider"
	"github.com/dfinsell-next/internal/queue"
	"github.com/dfinsell-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderUnpaidExpire, c.handleOrderUnpaidExpire)
	mux.HandleFunc(queue.TaskAccountSwitchNotify, c.handleAccountSwitchNotify)
}

func (c *Consumer) handleOrderUnpaidExpire(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_unpaid_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderUnpaidExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_unpaid_expire_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_unpaid_expire_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderExpiryService == nil {
		logger.Warnw("worker_order_unpaid_expire_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	result, err := c.OrderExpiryService.ExpireUnpaidOrder(ctx, payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_order_unpaid_expire_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			logger.Debugw("worker_order_unpaid_expire_skip_invalid_status", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_order_unpaid_expire_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	logger.Debugw("worker_order_unpaid_expire_done", "order_id", payload.OrderID, "cancelled", result.Cancelled, "skipped", result.Skipped)
	return nil
}

// handleAccountSwitchNotify 通知为尽力而为，失败不重试
func (c *Consumer) handleAccountSwitchNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_account_switch_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AccountSwitchNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_account_switch_notify_unmarshal_failed", "error", err)
		return nil
	}
	if payload.PreviousAccount == "" || payload.NewAccount == "" {
		logger.Debugw("worker_account_switch_notify_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_account_switch_notify_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.NotificationService.SendAccountSwitch(ctx, payload); err != nil {
		logger.Warnw("worker_account_switch_notify_failed",
			"previous_account", payload.PreviousAccount,
			"new_account", payload.NewAccount,
			"order_id", payload.OrderID,
			"error", err,
		)
	}
	return nil
}
