package queue

import (
	"encoding/json"

	"github.com/dfinsell-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderUnpaidExpire 未支付订单超时检查任务
	TaskOrderUnpaidExpire = constants.TaskOrderUnpaidExpire
	// TaskAccountSwitchNotify 账户切换通知任务
	TaskAccountSwitchNotify = constants.TaskAccountSwitchNotify
)

// OrderUnpaidExpirePayload 未支付订单超时检查任务载荷
type OrderUnpaidExpirePayload struct {
	OrderID uint `json:"order_id"`
}

// AccountSwitchNotifyPayload 账户切换通知任务载荷
type AccountSwitchNotifyPayload struct {
	PreviousAccount string `json:"previous_account"`
	NewAccount      string `json:"new_account"`
	OrderID         uint   `json:"order_id"`
	Sandbox         bool   `json:"sandbox"`
}

// NewOrderUnpaidExpireTask 创建未支付订单超时检查任务
func NewOrderUnpaidExpireTask(payload OrderUnpaidExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderUnpaidExpire, body), nil
}

// NewAccountSwitchNotifyTask 创建账户切换通知任务
func NewAccountSwitchNotifyTask(payload AccountSwitchNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountSwitchNotify, body), nil
}
