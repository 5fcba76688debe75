package dfinsell

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestCheckDailyLimit(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathDailyLimit {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.Header.Get("Authorization") == "Bearer pk_full" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"daily limit reached"}`))
			return
		}
		if body["amount"] != "25.00" {
			t.Errorf("amount want 25.00 got %v", body["amount"])
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	result, err := client.CheckDailyLimit(context.Background(), "pk_ok", "sk", "25.00")
	if err != nil || result.Exceeded {
		t.Fatalf("limit should pass, got %+v err=%v", result, err)
	}
	result, err = client.CheckDailyLimit(context.Background(), "pk_full", "sk", "25.00")
	if err != nil {
		t.Fatalf("limit response should not be an error: %v", err)
	}
	if !result.Exceeded || result.Message != "daily limit reached" {
		t.Fatalf("expected exceeded result, got %+v", result)
	}
}

func TestRequestPayment(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer pk_live" {
			t.Errorf("authorization want bearer public key got %q", got)
		}
		var payload PaymentPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload failed: %v", err)
		}
		if payload.Metadata.OrderID != 9 || payload.Metadata.Source != "woocommerce" {
			t.Errorf("unexpected metadata: %+v", payload.Metadata)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"payment_link":"https://pay.example/p/1","pay_id":"PAY-1"}}`))
	})

	result, err := client.RequestPayment(context.Background(), "pk_live", PaymentPayload{
		Amount:   "10.00",
		OrderID:  9,
		Metadata: PaymentMetadata{OrderID: 9, Amount: "10.00", Source: "woocommerce"},
	})
	if err != nil {
		t.Fatalf("request payment failed: %v", err)
	}
	if !result.Succeeded() || result.PayID != "PAY-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRequestPaymentWithoutLinkIsNotSuccess(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","message":"ok"}`))
	})
	result, err := client.RequestPayment(context.Background(), "pk", PaymentPayload{})
	if err != nil {
		t.Fatalf("request payment failed: %v", err)
	}
	if result.Succeeded() {
		t.Fatalf("missing payment link must not count as success")
	}
}

func TestErrorClassification(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathSwitchAccountEmail:
			w.WriteHeader(http.StatusUnauthorized)
		case PathCancelOrderLink:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"boom"}`))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	})
	ctx := context.Background()

	if err := client.SwitchAccountEmail(ctx, "pk", SwitchAccountInput{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want unauthorized got %v", err)
	}
	if err := client.CancelOrderLink(ctx, "pk", 1, "PAY-1"); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("want request failed got %v", err)
	}
	if _, err := client.UpdateTxnStatus(ctx, "nonce", 1, "PAY-1"); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("want response invalid got %v", err)
	}
	if err := client.CancelOrderLink(ctx, "pk", 1, ""); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing pay id want config invalid got %v", err)
	}
}

func TestSyncAccountStatus(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Accounts []AccountEntry `json:"accounts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode failed: %v", err)
		}
		if len(body.Accounts) != 2 || body.Accounts[1].Mode != "sandbox" {
			t.Errorf("unexpected accounts: %+v", body.Accounts)
		}
		_, _ = w.Write([]byte(`{"statuses":[{"mode":"live","public_key":"pk1","status":"active"}]}`))
	})
	statuses, err := client.SyncAccountStatus(context.Background(), "pk1", []AccountEntry{
		{AccountName: "X", PublicKey: "pk1", SecretKey: "sk1", Mode: "live"},
		{AccountName: "X", PublicKey: "spk1", SecretKey: "ssk1", Mode: "sandbox"},
	})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != "active" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}

func TestTimeoutIsRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, 50*time.Millisecond)
	if _, err := client.UpdateTxnStatus(context.Background(), "nonce", 1, "PAY"); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("timeout want request failed got %v", err)
	}
}

func TestOversizedResponseIsRejected(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transaction_status":"`))
		_, _ = w.Write([]byte(strings.Repeat("a", maxResponseBytes)))
		_, _ = w.Write([]byte(`"}`))
	})
	if _, err := client.UpdateTxnStatus(context.Background(), "nonce", 1, "PAY"); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("oversized body want response invalid got %v", err)
	}

	client = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transaction_status":"success"}`))
	})
	if _, err := client.UpdateTxnStatus(context.Background(), "nonce", 1, "PAY"); err != nil {
		t.Fatalf("small body should pass: %v", err)
	}
}
