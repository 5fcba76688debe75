package public

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/payment/dfinsell"
	"github.com/dfinsell-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// stubGateway 记录调用路径的网关替身
type stubGateway struct {
	mu        sync.Mutex
	calls     map[string]int
	txnStatus string
}

func (g *stubGateway) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func (g *stubGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.calls[r.URL.Path]++
	txnStatus := g.txnStatus
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case dfinsell.PathDailyLimit:
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case dfinsell.PathRequestPayment:
		_, _ = w.Write([]byte(`{"status":"success","data":{"payment_link":"https://pay.example/link","pay_id":"PAY-1"}}`))
	case dfinsell.PathUpdateTxnStatus:
		_, _ = fmt.Fprintf(w, `{"transaction_status":%q}`, txnStatus)
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func setupPublicHandlerTest(t *testing.T) (*gin.Engine, *provider.Container, *stubGateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	previous := models.DB
	models.DB = db
	t.Cleanup(func() { models.DB = previous })
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	gateway := &stubGateway{calls: map[string]int{}, txnStatus: "success"}
	srv := httptest.NewServer(gateway)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		JWT: config.JWTConfig{SecretKey: "public-test-secret", ExpireHours: 1},
		Provider: config.ProviderConfig{
			BaseURL:        srv.URL,
			SiteURL:        "https://shop.example",
			TimeoutSeconds: 15,
			ReturnPath:     "/dfinsell/v1/return",
			OrderPath:      "/checkout/order-received",
		},
		Gateway: config.GatewayConfig{Enabled: true, OrderStatus: constants.OrderStatusProcessing, Title: "DFin Sell"},
		Lock:    config.LockConfig{Driver: constants.LockDriverDB, TTLSeconds: 60},
		Order:   config.OrderConfig{UnpaidExpireMinutes: 30},
	}
	c := provider.NewContainer(cfg)
	h := New(c)

	r := gin.New()
	v1 := r.Group("/dfinsell/v1")
	v1.POST("/checkout", h.Checkout)
	v1.POST("/data", h.ProviderCallback)
	v1.GET("/return", h.PaymentReturn)
	v1.POST("/ajax/check-payment-status", h.CheckPaymentStatus)
	v1.POST("/ajax/popup-closed", h.PopupClosed)
	v1.POST("/hooks/orders/:id/unpaid", h.OrderUnpaidHook)
	return r, c, gateway
}

func seedAccounts(t *testing.T, c *provider.Container) {
	t.Helper()
	_, err := c.AccountStore.Save(context.Background(), []models.Account{
		{Title: "A", Priority: 1, LivePublicKey: "pk_A", LiveSecretKey: "sk_A"},
	})
	if err != nil {
		t.Fatalf("save accounts failed: %v", err)
	}
}

func seedOrder(t *testing.T, c *provider.Container, status, payID string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderKey:    fmt.Sprintf("wc_order_%d", time.Now().UnixNano()),
		Status:      status,
		Currency:    "USD",
		TotalAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("12.5")),
		PayID:       payID,
		Billing:     models.BillingAddress{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
	}
	if err := c.OrderRepo.Create(order, nil); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestCheckoutReturnsPaymentLink(t *testing.T) {
	r, c, gateway := setupPublicHandlerTest(t)
	seedAccounts(t, c)
	order := seedOrder(t, c, constants.OrderStatusPending, "")

	w := doJSON(t, r, http.MethodPost, "/dfinsell/v1/checkout", gin.H{"order_id": order.ID, "order_key": order.OrderKey})
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("checkout failed: %+v", resp)
	}
	var data struct {
		Result      string `json:"result"`
		PaymentLink string `json:"payment_link"`
		Nonce       string `json:"nonce"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data failed: %v", err)
	}
	if data.PaymentLink != "https://pay.example/link" || data.Nonce == "" {
		t.Fatalf("unexpected checkout data: %+v", data)
	}
	if gateway.count(dfinsell.PathRequestPayment) != 1 {
		t.Fatalf("want one payment request got %d", gateway.count(dfinsell.PathRequestPayment))
	}
}

func TestCheckoutWithoutAccountsShowsGenericMessage(t *testing.T) {
	r, c, gateway := setupPublicHandlerTest(t)
	order := seedOrder(t, c, constants.OrderStatusPending, "")

	w := doJSON(t, r, http.MethodPost, "/dfinsell/v1/checkout", gin.H{"order_id": order.ID, "order_key": order.OrderKey})
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 400 {
		t.Fatalf("want status_code 400 got %+v", resp)
	}
	if !strings.Contains(resp.Msg, "technical issues") {
		t.Fatalf("unexpected message: %s", resp.Msg)
	}
	if gateway.count(dfinsell.PathDailyLimit)+gateway.count(dfinsell.PathRequestPayment) != 0 {
		t.Fatalf("no provider call expected without accounts")
	}
}

func TestCheckoutRequiresOrderKey(t *testing.T) {
	r, c, gateway := setupPublicHandlerTest(t)
	seedAccounts(t, c)
	order := seedOrder(t, c, constants.OrderStatusPending, "")

	w := doJSON(t, r, http.MethodPost, "/dfinsell/v1/checkout", gin.H{"order_id": order.ID})
	if resp := decodeEnvelope(t, w); resp.StatusCode != 400 {
		t.Fatalf("missing order_key want 400 got %+v", resp)
	}
	w = doJSON(t, r, http.MethodPost, "/dfinsell/v1/checkout", gin.H{"order_id": order.ID, "order_key": "wc_order_guess"})
	if resp := decodeEnvelope(t, w); resp.StatusCode != 404 {
		t.Fatalf("wrong order_key want 404 got %+v", resp)
	}
	if gateway.count(dfinsell.PathDailyLimit)+gateway.count(dfinsell.PathRequestPayment) != 0 {
		t.Fatalf("no provider call expected for a foreign order")
	}
	stored, err := c.OrderRepo.GetByID(order.ID)
	if err != nil || stored == nil || stored.PayID != "" {
		t.Fatalf("order must stay untouched: %+v err=%v", stored, err)
	}
}

func TestCheckoutRejectsMissingOrderID(t *testing.T) {
	r, _, _ := setupPublicHandlerTest(t)
	w := doJSON(t, r, http.MethodPost, "/dfinsell/v1/checkout", gin.H{"order_key": "x"})
	if resp := decodeEnvelope(t, w); resp.StatusCode != 400 {
		t.Fatalf("want 400 got %+v", resp)
	}
}

func TestProviderCallbackUsesHTTPStatus(t *testing.T) {
	r, c, _ := setupPublicHandlerTest(t)
	seedAccounts(t, c)
	order := seedOrder(t, c, constants.OrderStatusPending, "PAY-9")

	cases := []struct {
		name   string
		body   gin.H
		status int
		result string
	}{
		{name: "unauthorized", body: gin.H{"nonce": "pk_other", "order_id": order.ID, "pay_id": "PAY-9", "order_status": "completed"}, status: http.StatusUnauthorized, result: "error"},
		{name: "missing_fields", body: gin.H{"nonce": "pk_A", "order_id": order.ID}, status: http.StatusBadRequest, result: "error"},
		{name: "unknown_order", body: gin.H{"nonce": "pk_A", "order_id": 99999, "pay_id": "PAY-9", "order_status": "completed"}, status: http.StatusNotFound, result: "error"},
		{name: "pay_id_mismatch", body: gin.H{"nonce": "pk_A", "order_id": order.ID, "pay_id": "PAY-X", "order_status": "completed"}, status: http.StatusBadRequest, result: "error"},
		{name: "completed", body: gin.H{"nonce": "pk_A", "order_id": order.ID, "pay_id": "PAY-9", "order_status": "completed"}, status: http.StatusOK, result: "success"},
	}
	for _, tc := range cases {
		w := doJSON(t, r, http.MethodPost, "/dfinsell/v1/data", tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s: want http %d got %d body=%s", tc.name, tc.status, w.Code, w.Body.String())
		}
		var body CallbackResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode failed: %v", tc.name, err)
		}
		if body.Status != tc.result {
			t.Fatalf("%s: want %s got %+v", tc.name, tc.result, body)
		}
		if tc.result == "success" && !strings.HasPrefix(body.PaymentReturnURL, "https://shop.example/checkout/order-received/") {
			t.Fatalf("unexpected return url %s", body.PaymentReturnURL)
		}
	}

	got, err := c.OrderRepo.GetByID(order.ID)
	if err != nil || got == nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if got.Status != constants.OrderStatusProcessing {
		t.Fatalf("want processing got %s", got.Status)
	}
}

func TestProviderCallbackAcceptsStringOrderID(t *testing.T) {
	r, c, _ := setupPublicHandlerTest(t)
	seedAccounts(t, c)
	order := seedOrder(t, c, constants.OrderStatusPending, "PAY-7")

	w := doJSON(t, r, http.MethodPost, "/dfinsell/v1/data", gin.H{"nonce": "pk_A", "order_id": "abc", "pay_id": "PAY-7", "order_status": "completed"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non numeric order_id want 400 got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/dfinsell/v1/data", gin.H{
		"nonce":        "pk_A",
		"order_id":     fmt.Sprintf("%d", order.ID),
		"pay_id":       "PAY-7",
		"order_status": "completed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("string order_id want 200 got %d body=%s", w.Code, w.Body.String())
	}
	got, err := c.OrderRepo.GetByID(order.ID)
	if err != nil || got == nil || got.Status != constants.OrderStatusProcessing {
		t.Fatalf("order should be processing: %+v err=%v", got, err)
	}
}

func TestFlexibleOrderIDUnmarshal(t *testing.T) {
	cases := []struct {
		raw     string
		want    uint
		wantErr bool
	}{
		{raw: `42`, want: 42},
		{raw: `"42"`, want: 42},
		{raw: `" 7 "`, want: 7},
		{raw: `""`, want: 0},
		{raw: `null`, want: 0},
		{raw: `"4x"`, wantErr: true},
		{raw: `-1`, wantErr: true},
		{raw: `1.5`, wantErr: true},
	}
	for _, tc := range cases {
		var id flexibleOrderID
		err := json.Unmarshal([]byte(tc.raw), &id)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: want error got %d", tc.raw, id)
			}
			continue
		}
		if err != nil || uint(id) != tc.want {
			t.Fatalf("%s: want %d got %d err=%v", tc.raw, tc.want, id, err)
		}
	}
}

func TestProviderCallbackRejectsMalformedBody(t *testing.T) {
	r, _, _ := setupPublicHandlerTest(t)
	req := httptest.NewRequest(http.MethodPost, "/dfinsell/v1/data", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 got %d", w.Code)
	}
}

func TestPaymentReturnRedirectsOnce(t *testing.T) {
	r, c, _ := setupPublicHandlerTest(t)
	order := seedOrder(t, c, constants.OrderStatusProcessing, "PAY-1")
	nonce, _, err := c.NonceService.Issue(constants.NonceActionRedirect, fmt.Sprintf("%d", order.ID), time.Hour)
	if err != nil {
		t.Fatalf("issue nonce failed: %v", err)
	}
	path := fmt.Sprintf("/dfinsell/v1/return?order_id=%d&key=%s&nonce=%s", order.ID, order.OrderKey, nonce)

	first := doJSON(t, r, http.MethodGet, path, nil)
	if first.Code != http.StatusFound {
		t.Fatalf("want redirect got %d body=%s", first.Code, first.Body.String())
	}
	if loc := first.Header().Get("Location"); !strings.HasPrefix(loc, "https://shop.example/checkout/order-received/") {
		t.Fatalf("unexpected location %s", loc)
	}

	second := doJSON(t, r, http.MethodGet, path, nil)
	if resp := decodeEnvelope(t, second); resp.StatusCode != 401 {
		t.Fatalf("reused nonce want 401 got %+v", resp)
	}
}

func TestPopupClosedReconcilesPendingOrder(t *testing.T) {
	r, c, gateway := setupPublicHandlerTest(t)
	order := seedOrder(t, c, constants.OrderStatusPending, "PAY-1")
	nonce, _, err := c.NonceService.Issue(constants.NonceActionPopup, fmt.Sprintf("%d", order.ID), time.Hour)
	if err != nil {
		t.Fatalf("issue nonce failed: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/dfinsell/v1/ajax/popup-closed", gin.H{"order_id": order.ID, "nonce": nonce})
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("popup closed failed: %+v", resp)
	}
	var data struct {
		Status  string `json:"status"`
		Paid    bool   `json:"paid"`
		Changed bool   `json:"changed"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data failed: %v", err)
	}
	if data.Status != constants.OrderStatusProcessing || !data.Paid || !data.Changed {
		t.Fatalf("unexpected popup result: %+v", data)
	}
	if gateway.count(dfinsell.PathUpdateTxnStatus) != 1 {
		t.Fatalf("want one txn status query")
	}

	w = doJSON(t, r, http.MethodPost, "/dfinsell/v1/ajax/check-payment-status", gin.H{"order_id": order.ID, "nonce": nonce})
	if resp := decodeEnvelope(t, w); resp.StatusCode != 0 {
		t.Fatalf("status poll failed: %+v", resp)
	}

	w = doJSON(t, r, http.MethodPost, "/dfinsell/v1/ajax/popup-closed", gin.H{"order_id": order.ID, "nonce": "forged"})
	if resp := decodeEnvelope(t, w); resp.StatusCode != 401 {
		t.Fatalf("forged nonce want 401 got %+v", resp)
	}
}

func TestOrderUnpaidHookKeepsFreshOrder(t *testing.T) {
	r, c, gateway := setupPublicHandlerTest(t)
	order := seedOrder(t, c, constants.OrderStatusPending, "PAY-1")

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/dfinsell/v1/hooks/orders/%d/unpaid", order.ID), nil)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("hook failed: %+v", resp)
	}
	var data struct {
		Skipped   bool `json:"skipped"`
		Cancelled bool `json:"cancelled"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data failed: %v", err)
	}
	if !data.Skipped || data.Cancelled {
		t.Fatalf("fresh order must be kept: %+v", data)
	}
	if gateway.count(dfinsell.PathCancelOrderLink) != 0 {
		t.Fatalf("no link cancel expected for a fresh order")
	}

	w = doJSON(t, r, http.MethodPost, "/dfinsell/v1/hooks/orders/abc/unpaid", nil)
	if resp := decodeEnvelope(t, w); resp.StatusCode != 400 {
		t.Fatalf("want 400 for bad id got %+v", resp)
	}
}
