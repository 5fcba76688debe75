package dfinsell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrConfigInvalid   = errors.New("dfinsell config invalid")
	ErrRequestFailed   = errors.New("dfinsell request failed")
	ErrResponseInvalid = errors.New("dfinsell response invalid")
	ErrUnauthorized    = errors.New("dfinsell unauthorized")
)

// 网关接口路径
const (
	PathDailyLimit         = "/api/dailylimit"
	PathRequestPayment     = "/api/request-payment"
	PathUpdateTxnStatus    = "/api/update-txn-status"
	PathSwitchAccountEmail = "/api/switch-account-email"
	PathSyncAccountStatus  = "/api/sync-account-status"
	PathCancelOrderLink    = "/api/cancel-order-link"
)

// StatusSuccess 网关成功响应标记
const StatusSuccess = "success"

const defaultTimeout = 20 * time.Second

// maxResponseBytes 网关响应体上限
const maxResponseBytes = 1 << 20

// Client DFin Sell 网关客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建网关客户端，timeout 为单次请求超时
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL 返回网关地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PaymentMetadata 随支付请求提交的元数据
type PaymentMetadata struct {
	OrderID uint   `json:"order_id"`
	Amount  string `json:"amount"`
	Source  string `json:"source"`
}

// PaymentPayload 支付请求体
type PaymentPayload struct {
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address1    string          `json:"address_1"`
	Address2    string          `json:"address_2"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	Postcode    string          `json:"postcode"`
	Country     string          `json:"country"`
	Amount      string          `json:"amount"`
	Currency    string          `json:"currency"`
	IPAddress   string          `json:"ip_address"`
	IsSandbox   bool            `json:"is_sandbox"`
	RedirectURL string          `json:"redirect_url"`
	OrderID     uint            `json:"order_id"`
	SecretKey   string          `json:"api_secret_key"`
	Metadata    PaymentMetadata `json:"meta_data"`
}

// DailyLimitResult 日限额检查结果
type DailyLimitResult struct {
	Exceeded bool
	Message  string
}

// PaymentResult 支付请求结果
type PaymentResult struct {
	Status      string
	Message     string
	PaymentLink string
	PayID       string
}

// Succeeded 成功响应且携带支付链接
func (r *PaymentResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess && strings.TrimSpace(r.PaymentLink) != ""
}

// TxnStatusResult 交易状态查询结果
type TxnStatusResult struct {
	TransactionStatus string
	Message           string
}

// SwitchAccountInput 切换账户通知
type SwitchAccountInput struct {
	PreviousAccount string `json:"previous_account"`
	NewAccount      string `json:"new_account"`
	OrderID         uint   `json:"order_id"`
	SecretKey       string `json:"api_secret_key"`
}

// AccountEntry 同步请求中的账户密钥条目
type AccountEntry struct {
	AccountName string `json:"account_name"`
	PublicKey   string `json:"public_key"`
	SecretKey   string `json:"secret_key"`
	Mode        string `json:"mode"`
}

// AccountStatus 同步响应中的账户状态
type AccountStatus struct {
	Mode      string `json:"mode"`
	PublicKey string `json:"public_key"`
	Status    string `json:"status"`
}

// CheckDailyLimit 检查账户对该金额是否仍有额度；响应含 error 字段表示额度已用尽
func (c *Client) CheckDailyLimit(ctx context.Context, publicKey, secretKey, amount string) (*DailyLimitResult, error) {
	if strings.TrimSpace(publicKey) == "" || strings.TrimSpace(amount) == "" {
		return nil, fmt.Errorf("%w: public key and amount are required", ErrConfigInvalid)
	}
	params := map[string]interface{}{
		"amount":         amount,
		"api_secret_key": secretKey,
	}
	status, body, err := c.do(ctx, PathDailyLimit, publicKey, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: http status %d", ErrUnauthorized, status)
	}
	var resp struct {
		Error   interface{} `json:"error"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, status)
		}
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	message := strings.TrimSpace(resp.Message)
	switch v := resp.Error.(type) {
	case nil:
	case bool:
		if v {
			return &DailyLimitResult{Exceeded: true, Message: message}, nil
		}
	case string:
		if strings.TrimSpace(v) != "" {
			return &DailyLimitResult{Exceeded: true, Message: strings.TrimSpace(v)}, nil
		}
	default:
		return &DailyLimitResult{Exceeded: true, Message: message}, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: http status %d: %s", ErrRequestFailed, status, errorMessage(body))
	}
	return &DailyLimitResult{}, nil
}

// RequestPayment 创建支付链接
func (c *Client) RequestPayment(ctx context.Context, publicKey string, payload PaymentPayload) (*PaymentResult, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, fmt.Errorf("%w: public key is required", ErrConfigInvalid)
	}
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			PaymentLink string `json:"payment_link"`
			PayID       string `json:"pay_id"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, PathRequestPayment, publicKey, payload, &resp); err != nil {
		return nil, err
	}
	return &PaymentResult{
		Status:      strings.ToLower(strings.TrimSpace(resp.Status)),
		Message:     strings.TrimSpace(resp.Message),
		PaymentLink: strings.TrimSpace(resp.Data.PaymentLink),
		PayID:       strings.TrimSpace(resp.Data.PayID),
	}, nil
}

// UpdateTxnStatus 查询并刷新交易状态，bearer 为弹窗会话令牌
func (c *Client) UpdateTxnStatus(ctx context.Context, bearer string, orderID uint, paymentToken string) (*TxnStatusResult, error) {
	if strings.TrimSpace(bearer) == "" || strings.TrimSpace(paymentToken) == "" {
		return nil, fmt.Errorf("%w: bearer and payment token are required", ErrConfigInvalid)
	}
	params := map[string]interface{}{
		"order_id":      orderID,
		"payment_token": paymentToken,
	}
	var resp struct {
		TransactionStatus string `json:"transaction_status"`
		Message           string `json:"message"`
	}
	if err := c.postJSON(ctx, PathUpdateTxnStatus, bearer, params, &resp); err != nil {
		return nil, err
	}
	return &TxnStatusResult{
		TransactionStatus: strings.ToLower(strings.TrimSpace(resp.TransactionStatus)),
		Message:           strings.TrimSpace(resp.Message),
	}, nil
}

// SwitchAccountEmail 通知网关当前使用账户已切换
func (c *Client) SwitchAccountEmail(ctx context.Context, publicKey string, input SwitchAccountInput) error {
	if strings.TrimSpace(publicKey) == "" {
		return fmt.Errorf("%w: public key is required", ErrConfigInvalid)
	}
	return c.postJSON(ctx, PathSwitchAccountEmail, publicKey, input, nil)
}

// SyncAccountStatus 批量同步账户状态
func (c *Client) SyncAccountStatus(ctx context.Context, bearer string, accounts []AccountEntry) ([]AccountStatus, error) {
	if strings.TrimSpace(bearer) == "" {
		return nil, fmt.Errorf("%w: bearer is required", ErrConfigInvalid)
	}
	params := map[string]interface{}{"accounts": accounts}
	var resp struct {
		Statuses []AccountStatus `json:"statuses"`
	}
	if err := c.postJSON(ctx, PathSyncAccountStatus, bearer, params, &resp); err != nil {
		return nil, err
	}
	return resp.Statuses, nil
}

// CancelOrderLink 作废订单的支付链接
func (c *Client) CancelOrderLink(ctx context.Context, publicKey string, orderID uint, payID string) error {
	if strings.TrimSpace(publicKey) == "" || strings.TrimSpace(payID) == "" {
		return fmt.Errorf("%w: public key and pay id are required", ErrConfigInvalid)
	}
	params := map[string]interface{}{
		"order_id": orderID,
		"pay_id":   payID,
	}
	return c.postJSON(ctx, PathCancelOrderLink, publicKey, params, nil)
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, params interface{}, out interface{}) error {
	status, respBytes, err := c.do(ctx, path, bearer, params)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: http status %d", ErrUnauthorized, status)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: http status %d: %s", ErrRequestFailed, status, errorMessage(respBytes))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path, bearer string, params interface{}) (int, []byte, error) {
	if c == nil || c.baseURL == "" {
		return 0, nil, fmt.Errorf("%w: base url is empty", ErrConfigInvalid)
	}
	body, err := json.Marshal(params)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(bearer))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if len(respBytes) > maxResponseBytes {
		return 0, nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrResponseInvalid, maxResponseBytes)
	}
	return resp.StatusCode, respBytes, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return strings.TrimSpace(string(body))
}
