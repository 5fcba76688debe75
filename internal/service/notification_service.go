package service

import (
	"context"
	"fmt"

	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/payment/dfinsell"
	"github.com/dfinsell-next/internal/queue"
)

// NotificationService 账户切换通知
type NotificationService struct {
	store       *AccountStore
	client      *dfinsell.Client
	queueClient *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(store *AccountStore, client *dfinsell.Client, queueClient *queue.Client) *NotificationService {
	return &NotificationService{store: store, client: client, queueClient: queueClient}
}

// NotifyAccountSwitch 通知网关账户已切换。队列可用时异步投递，否则同步发送；失败只记录日志。
func (s *NotificationService) NotifyAccountSwitch(ctx context.Context, payload queue.AccountSwitchNotifyPayload) {
	if s == nil {
		return
	}
	if s.queueClient != nil && s.queueClient.Enabled() {
		err := s.queueClient.EnqueueAccountSwitchNotify(payload)
		if err == nil {
			return
		}
		logger.Warnw("account_switch_notify_enqueue_failed",
			"previous_account", payload.PreviousAccount,
			"new_account", payload.NewAccount,
			"error", err,
		)
	}
	if err := s.SendAccountSwitch(ctx, payload); err != nil {
		logger.Warnw("account_switch_notify_failed",
			"previous_account", payload.PreviousAccount,
			"new_account", payload.NewAccount,
			"order_id", payload.OrderID,
			"error", err,
		)
	}
}

// SendAccountSwitch 使用上一个账户的凭证调用切换通知接口
func (s *NotificationService) SendAccountSwitch(ctx context.Context, payload queue.AccountSwitchNotifyPayload) error {
	previous, err := s.store.FindByTitle(ctx, payload.PreviousAccount)
	if err != nil {
		return err
	}
	if previous == nil {
		return fmt.Errorf("%w: previous account %q", ErrNotFound, payload.PreviousAccount)
	}
	publicKey, secretKey := previous.KeysFor(payload.Sandbox)
	err = s.client.SwitchAccountEmail(ctx, publicKey, dfinsell.SwitchAccountInput{
		PreviousAccount: payload.PreviousAccount,
		NewAccount:      payload.NewAccount,
		OrderID:         payload.OrderID,
		SecretKey:       secretKey,
	})
	if err != nil {
		return err
	}
	logger.Infow("account_switch_notified",
		"previous_account", payload.PreviousAccount,
		"new_account", payload.NewAccount,
		"order_id", payload.OrderID,
	)
	return nil
}
