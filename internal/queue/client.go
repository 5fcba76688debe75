package queue

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列
	DefaultQueue = constants.QueueDefault
	// 超时检查比阈值稍晚触发，避免落在阈值边界被判定为未超时
	unpaidExpireGrace = 30 * time.Second
)

// Client asynq 客户端封装；未启用时所有投递为空操作
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{queue: DefaultQueue}, nil
	}
	return &Client{client: asynq.NewClient(redisOpt(cfg)), queue: DefaultQueue}, nil
}

// Enabled 是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// UnpaidExpireTaskID 每个订单只保留一个待执行的超时检查任务
func UnpaidExpireTaskID(orderID uint) string {
	return "order_unpaid_expire:" + strconv.FormatUint(uint64(orderID), 10)
}

// EnqueueOrderUnpaidExpire 投递未支付订单超时检查；同一订单已有待执行任务时忽略
func (c *Client) EnqueueOrderUnpaidExpire(payload OrderUnpaidExpirePayload, delay time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewOrderUnpaidExpireTask(payload)
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}
	_, err = c.client.Enqueue(task,
		asynq.Queue(c.queue),
		asynq.ProcessIn(delay+unpaidExpireGrace),
		asynq.TaskID(UnpaidExpireTaskID(payload.OrderID)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueAccountSwitchNotify 投递账户切换通知（尽力而为，不重试）
func (c *Client) EnqueueAccountSwitchNotify(payload AccountSwitchNotifyPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewAccountSwitchNotifyTask(payload)
	if err != nil {
		return err
	}
	options := append([]asynq.Option{asynq.Queue(c.queue), asynq.MaxRetry(0)}, opts...)
	_, err = c.client.Enqueue(task, options...)
	return err
}

// BuildServerConfig 生成 worker 端 asynq 配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{Concurrency: 10, Queues: map[string]int{DefaultQueue: 1}}
	if cfg != nil && cfg.Concurrency > 0 {
		serverCfg.Concurrency = cfg.Concurrency
	}
	if cfg != nil && len(cfg.Queues) > 0 {
		serverCfg.Queues = cfg.Queues
	}
	return redisOpt(cfg), serverCfg
}

func redisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host, port := "127.0.0.1", 6379
	opt := asynq.RedisClientOpt{}
	if cfg != nil {
		if h := strings.TrimSpace(cfg.Host); h != "" {
			host = h
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		opt.Password = cfg.Password
		opt.DB = cfg.DB
	}
	opt.Addr = net.JoinHostPort(host, fmt.Sprint(port))
	return opt
}
