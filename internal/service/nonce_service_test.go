package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/repository"
)

func TestNonceConsumeIsSingleUse(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewNonceService("secret", repository.NewNonceRepository(db))
	token, _, err := svc.Issue(constants.NonceActionRedirect, "order:1", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := svc.Consume(constants.NonceActionRedirect, "order:1", token); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if err := svc.Consume(constants.NonceActionRedirect, "order:1", token); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("second consume want nonce invalid got %v", err)
	}
}

func TestNonceVerifyBindsActionAndSubject(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewNonceService("secret", repository.NewNonceRepository(db))
	token, _, err := svc.Issue(constants.NonceActionPopup, "order:1", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Verify(constants.NonceActionPopup, "order:1", token); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := svc.Verify(constants.NonceActionRedirect, "order:1", token); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("wrong action want nonce invalid got %v", err)
	}
	if _, err := svc.Verify(constants.NonceActionPopup, "order:2", token); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("wrong subject want nonce invalid got %v", err)
	}
	other := NewNonceService("other-secret", repository.NewNonceRepository(db))
	if _, err := other.Verify(constants.NonceActionPopup, "order:1", token); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("wrong secret want nonce invalid got %v", err)
	}
}

func TestNonceExpiresAndPurges(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewNonceService("secret", repository.NewNonceRepository(db))
	token, _, err := svc.Issue(constants.NonceActionRedirect, "order:1", time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := svc.Consume(constants.NonceActionRedirect, "order:1", token); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := svc.Verify(constants.NonceActionRedirect, "order:1", token); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("expired token want nonce invalid got %v", err)
	}
	purged, err := svc.PurgeExpired()
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged want 1 got %d", purged)
	}
}
