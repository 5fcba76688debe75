package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/cache"
	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/metrics"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/payment/dfinsell"
	"github.com/dfinsell-next/internal/queue"
	"github.com/dfinsell-next/internal/repository"

	"go.uber.org/zap"
)

const redirectNonceTTL = 24 * time.Hour

// PaymentService 支付提交与对账服务
type PaymentService struct {
	cfg             *config.Config
	orderRepo       repository.OrderRepository
	productRepo     repository.ProductRepository
	cartRepo        repository.CartRepository
	accountStore    *AccountStore
	selector        *AccountSelector
	settingSvc      *SettingService
	nonceSvc        *NonceService
	notificationSvc *NotificationService
	client          *dfinsell.Client
	queueClient     *queue.Client
}

// NewPaymentService 创建支付服务
func NewPaymentService(cfg *config.Config, orderRepo repository.OrderRepository, productRepo repository.ProductRepository, cartRepo repository.CartRepository, accountStore *AccountStore, selector *AccountSelector, settingSvc *SettingService, nonceSvc *NonceService, notificationSvc *NotificationService, client *dfinsell.Client, queueClient *queue.Client) *PaymentService {
	return &PaymentService{
		cfg:             cfg,
		orderRepo:       orderRepo,
		productRepo:     productRepo,
		cartRepo:        cartRepo,
		accountStore:    accountStore,
		selector:        selector,
		settingSvc:      settingSvc,
		nonceSvc:        nonceSvc,
		notificationSvc: notificationSvc,
		client:          client,
		queueClient:     queueClient,
	}
}

// ProcessPaymentInput 提交支付请求
type ProcessPaymentInput struct {
	OrderID  uint
	OrderKey string
	ClientIP string
	Consent  bool
}

// ProcessPaymentResult 提交支付结果
type ProcessPaymentResult struct {
	Result      string    `json:"result"`
	OrderID     uint      `json:"order_id"`
	PaymentLink string    `json:"payment_link"`
	PopupNonce  string    `json:"nonce"`
	ExpiresAt   time.Time `json:"nonce_expires_at"`
}

type attemptOutcome int

const (
	attemptSucceeded attemptOutcome = iota
	attemptLimitExceeded
	attemptFailed
)

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

func orderSubject(orderID uint) string {
	return strconv.FormatUint(uint64(orderID), 10)
}

// orderKeyMatches 订单密钥必填，恒定时间比较
func orderKeyMatches(order *models.Order, key string) bool {
	if key == "" || order.OrderKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(order.OrderKey), []byte(key)) == 1
}

// ProcessPayment 选择账户并向网关提交支付。
// 账户日限额用尽时排除该账户继续尝试下一个，循环次数不超过候选账户数。
func (s *PaymentService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*ProcessPaymentResult, error) {
	setting, err := s.settingSvc.GetGateway()
	if err != nil {
		return nil, err
	}
	if !setting.Enabled {
		return nil, ErrGatewayDisabled
	}
	if setting.ShowConsentCheckbox && !input.Consent {
		return nil, ErrConsentRequired
	}

	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !orderKeyMatches(order, input.OrderKey) {
		return nil, ErrOrderNotFound
	}
	if !isPayableStatus(order.Status) || strings.TrimSpace(order.PayID) != "" {
		return nil, fmt.Errorf("%w: %s", ErrOrderStatusInvalid, order.Status)
	}

	log := paymentLogger("order_id", order.ID, "mode", setting.Mode())
	candidates, err := s.selector.Candidates(ctx, setting.Sandbox)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		metrics.PaymentNoAccountTotal.Inc()
		log.Errorw("payment_no_account_configured")
		return nil, ErrNoAccountAvailable
	}

	payload, err := s.buildPayload(order, input.ClientIP, setting.Sandbox)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(candidates))
	var previous string
	for attempt := 0; attempt < len(candidates); attempt++ {
		selected := s.selector.selectFrom(ctx, candidates, excluded, setting.Sandbox)
		if selected == nil {
			break
		}
		if previous != "" {
			s.notificationSvc.NotifyAccountSwitch(ctx, queue.AccountSwitchNotifyPayload{
				PreviousAccount: previous,
				NewAccount:      selected.Account.Title,
				OrderID:         order.ID,
				Sandbox:         setting.Sandbox,
			})
		}
		outcome, result, err := s.attempt(ctx, order, selected, payload)
		switch outcome {
		case attemptSucceeded:
			return result, nil
		case attemptLimitExceeded:
			excluded[selected.Account.Title] = struct{}{}
			previous = selected.Account.Title
			continue
		default:
			return nil, err
		}
	}

	metrics.PaymentNoAccountTotal.Inc()
	log.Errorw("payment_no_account_available", "excluded", len(excluded), "candidates", len(candidates))
	return nil, ErrNoAccountAvailable
}

// attempt 使用单个账户完成一次提交，返回前释放该账户的锁
func (s *PaymentService) attempt(ctx context.Context, order *models.Order, selected *SelectedAccount, payload dfinsell.PaymentPayload) (attemptOutcome, *ProcessPaymentResult, error) {
	defer s.selector.locker.Release(context.WithoutCancel(ctx), selected.LockKey)

	log := paymentLogger("order_id", order.ID, "account", selected.Account.Title)
	publicKey, secretKey := selected.Keys()

	limit, err := s.client.CheckDailyLimit(ctx, publicKey, secretKey, payload.Amount)
	if err != nil {
		metrics.PaymentAttemptsTotal.WithLabelValues("transport_error").Inc()
		log.Errorw("payment_limit_check_failed", "error", err)
		return attemptFailed, nil, fmt.Errorf("%w: %v", ErrPaymentGatewayRequestFailed, err)
	}
	if limit.Exceeded {
		metrics.PaymentAttemptsTotal.WithLabelValues("limit_exceeded").Inc()
		log.Warnw("payment_limit_exceeded", "message", limit.Message)
		return attemptLimitExceeded, nil, nil
	}

	payload.SecretKey = secretKey
	resp, err := s.client.RequestPayment(ctx, publicKey, payload)
	if err != nil {
		metrics.PaymentAttemptsTotal.WithLabelValues("transport_error").Inc()
		log.Errorw("payment_request_failed", "error", err)
		if errors.Is(err, dfinsell.ErrResponseInvalid) {
			return attemptFailed, nil, fmt.Errorf("%w: %v", ErrPaymentGatewayResponseInvalid, err)
		}
		return attemptFailed, nil, fmt.Errorf("%w: %v", ErrPaymentGatewayRequestFailed, err)
	}
	if !resp.Succeeded() || resp.PayID == "" {
		metrics.PaymentAttemptsTotal.WithLabelValues("rejected").Inc()
		log.Errorw("payment_request_rejected", "status", resp.Status, "message", resp.Message)
		return attemptFailed, nil, &PaymentRejectedError{Message: resp.Message}
	}

	result, err := s.markPending(ctx, order, selected, resp)
	if err != nil {
		log.Errorw("payment_mark_pending_failed", "error", err)
		return attemptFailed, nil, err
	}
	metrics.PaymentAttemptsTotal.WithLabelValues("success").Inc()
	log.Infow("payment_link_created", "pay_id", resp.PayID)
	return attemptSucceeded, result, nil
}

// markPending 绑定支付令牌并将订单置为待支付
func (s *PaymentService) markPending(ctx context.Context, order *models.Order, selected *SelectedAccount, resp *dfinsell.PaymentResult) (*ProcessPaymentResult, error) {
	mode := constants.PaymentModeLive
	if selected.Sandbox {
		mode = constants.PaymentModeSandbox
	}
	now := time.Now()
	bound, err := s.orderRepo.BindPaymentToken(order.ID, resp.PayID, map[string]interface{}{
		"origin":        constants.OrderOriginDfinsell,
		"account_title": selected.Account.Title,
		"payment_mode":  mode,
		"updated_at":    now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if !bound {
		return nil, fmt.Errorf("%w: payment token already set", ErrOrderStatusInvalid)
	}
	order.PayID = resp.PayID
	order.AccountTitle = selected.Account.Title

	pendingUpdates := map[string]interface{}{"pending_since": now}
	changed, err := transitionOrder(s.orderRepo, order, constants.OrderStatusPending, transitionSourceSubmit, pendingUpdates)
	if err != nil {
		return nil, err
	}
	if !changed {
		if err := s.orderRepo.Update(order.ID, map[string]interface{}{"pending_since": now}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
		}
	}
	order.PendingSince = &now

	s.holdStock(order)
	if err := s.orderRepo.AddNote(order.ID, fmt.Sprintf("DFin Sell payment link created using account %s.", selected.Account.Title)); err != nil {
		logger.Warnw("order_note_create_failed", "order_id", order.ID, "error", err)
	}
	if err := cache.SetOrderLookup(ctx, &cache.OrderLookup{OrderID: order.ID, PayID: order.PayID, Status: order.Status}); err != nil {
		logger.Debugw("order_lookup_cache_set_failed", "order_id", order.ID, "error", err)
	}
	if err := s.queueClient.EnqueueOrderUnpaidExpire(queue.OrderUnpaidExpirePayload{OrderID: order.ID}, s.cfg.Order.UnpaidThreshold()); err != nil {
		logger.Warnw("order_unpaid_expire_enqueue_failed", "order_id", order.ID, "error", err)
	}

	nonce, expiresAt, err := s.nonceSvc.Issue(constants.NonceActionPopup, orderSubject(order.ID), s.cfg.Order.UnpaidThreshold())
	if err != nil {
		return nil, err
	}
	return &ProcessPaymentResult{
		Result:      "success",
		OrderID:     order.ID,
		PaymentLink: resp.PaymentLink,
		PopupNonce:  nonce,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *PaymentService) buildPayload(order *models.Order, clientIP string, sandbox bool) (dfinsell.PaymentPayload, error) {
	amount := order.TotalAmount.Fixed()
	nonce, _, err := s.nonceSvc.Issue(constants.NonceActionRedirect, orderSubject(order.ID), redirectNonceTTL)
	if err != nil {
		return dfinsell.PaymentPayload{}, err
	}
	if strings.TrimSpace(clientIP) == "" {
		clientIP = order.ClientIP
	}
	billing := order.Billing
	return dfinsell.PaymentPayload{
		FirstName:   billing.FirstName,
		LastName:    billing.LastName,
		Email:       billing.Email,
		Phone:       billing.Phone,
		Address1:    billing.Address1,
		Address2:    billing.Address2,
		City:        billing.City,
		State:       billing.State,
		Postcode:    billing.Postcode,
		Country:     billing.Country,
		Amount:      amount,
		Currency:    order.Currency,
		IPAddress:   clientIP,
		IsSandbox:   sandbox,
		RedirectURL: s.redirectURL(order, nonce),
		OrderID:     order.ID,
		Metadata: dfinsell.PaymentMetadata{
			OrderID: order.ID,
			Amount:  amount,
			Source:  constants.PaymentSourceCheckout,
		},
	}, nil
}

func (s *PaymentService) redirectURL(order *models.Order, nonce string) string {
	query := url.Values{}
	query.Set("order_id", orderSubject(order.ID))
	query.Set("key", order.OrderKey)
	query.Set("nonce", nonce)
	return s.siteURL() + s.cfg.Provider.ReturnPath + "?" + query.Encode()
}

// orderReceivedURL 订单完成页地址
func (s *PaymentService) orderReceivedURL(order *models.Order) string {
	query := url.Values{}
	query.Set("key", order.OrderKey)
	return fmt.Sprintf("%s%s/%d?%s", s.siteURL(), strings.TrimRight(s.cfg.Provider.OrderPath, "/"), order.ID, query.Encode())
}

func (s *PaymentService) siteURL() string {
	return strings.TrimRight(strings.TrimSpace(s.cfg.Provider.SiteURL), "/")
}

// holdStock 占用订单商品库存（仅执行一次）
func (s *PaymentService) holdStock(order *models.Order) {
	if order.StockReduced || len(order.Items) == 0 {
		return
	}
	for _, item := range order.Items {
		if _, err := s.productRepo.ReduceStock(item.ProductID, item.Quantity); err != nil {
			logger.Warnw("order_stock_reduce_failed", "order_id", order.ID, "product_id", item.ProductID, "error", err)
		}
	}
	if err := s.orderRepo.Update(order.ID, map[string]interface{}{"stock_reduced": true}); err != nil {
		logger.Warnw("order_stock_flag_update_failed", "order_id", order.ID, "error", err)
		return
	}
	order.StockReduced = true
}

func isPayableStatus(status string) bool {
	switch status {
	case constants.OrderStatusPending, constants.OrderStatusFailed, constants.OrderStatusCheckoutDraft:
		return true
	}
	return false
}

// restoreStock 回补订单库存（与 holdStock 对应）
func restoreStock(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, order *models.Order) {
	if order == nil || !order.StockReduced {
		return
	}
	for _, item := range order.Items {
		if _, err := productRepo.RestoreStock(item.ProductID, item.Quantity); err != nil {
			logger.Warnw("order_stock_restore_failed", "order_id", order.ID, "product_id", item.ProductID, "error", err)
		}
	}
	if err := orderRepo.Update(order.ID, map[string]interface{}{"stock_reduced": false}); err != nil {
		logger.Warnw("order_stock_flag_update_failed", "order_id", order.ID, "error", err)
		return
	}
	order.StockReduced = false
}
