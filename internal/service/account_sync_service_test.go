package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/payment/dfinsell"
)

func TestSyncUpdatesMatchingAccountStatus(t *testing.T) {
	env := newPaymentTestEnv(t)
	env.saveAccounts(t, models.Account{Title: "X", LivePublicKey: "pk1", LiveSecretKey: "sk1"})
	env.provider.syncStatuses = []dfinsell.AccountStatus{{Mode: "live", PublicKey: "pk1", Status: "active"}}

	result, err := env.syncSvc.Sync(context.Background(), constants.SyncTriggerCron)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("want 1 update got %+v", result)
	}
	accounts, err := env.store.Load(context.Background())
	if err != nil || len(accounts) != 1 {
		t.Fatalf("load accounts failed: %v", err)
	}
	if accounts[0].LiveStatus != "active" {
		t.Fatalf("live status want active got %q", accounts[0].LiveStatus)
	}
	if bearers := env.provider.bearers(dfinsell.PathSyncAccountStatus); len(bearers) != 1 || bearers[0] != "pk1" {
		t.Fatalf("sync must use first live public key, got %v", bearers)
	}
}

func TestSyncIncludesSandboxPairs(t *testing.T) {
	env := newPaymentTestEnv(t)
	env.saveAccounts(t,
		models.Account{Title: "X", LivePublicKey: "pk1", LiveSecretKey: "sk1", HasSandbox: true, SandboxPublicKey: "spk1", SandboxSecretKey: "ssk1", SandboxStatus: "active"},
		models.Account{Title: "Y", Priority: 1, LivePublicKey: "pk2", LiveSecretKey: "sk2"},
	)
	env.provider.syncStatuses = []dfinsell.AccountStatus{{Mode: "sandbox", PublicKey: "spk1", Status: "active"}}

	result, err := env.syncSvc.Sync(context.Background(), constants.SyncTriggerCron)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Entries != 3 || result.Updated != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(env.provider.lastSync) != 3 {
		t.Fatalf("provider should receive 3 key pairs, got %+v", env.provider.lastSync)
	}
}

func TestSyncWithoutLiveKeysSkipsProvider(t *testing.T) {
	env := newPaymentTestEnv(t)
	result, err := env.syncSvc.Sync(context.Background(), constants.SyncTriggerCron)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !result.Skipped || env.provider.totalCalls() != 0 {
		t.Fatalf("sync without accounts must skip, got %+v calls=%d", result, env.provider.totalCalls())
	}
}

func TestManualSyncTokenIsSingleUse(t *testing.T) {
	env := newPaymentTestEnv(t)
	env.saveAccounts(t, liveAccount("A", 1))
	token, _, err := env.syncSvc.IssueManualSyncToken(7)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if _, err := env.syncSvc.ManualSync(context.Background(), 8, token); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("token bound to another admin must fail, got %v", err)
	}
	result, err := env.syncSvc.ManualSync(context.Background(), 7, token)
	if err != nil || result.Trigger != constants.SyncTriggerManual {
		t.Fatalf("manual sync failed: %+v err=%v", result, err)
	}
	if _, err := env.syncSvc.ManualSync(context.Background(), 7, token); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("token reuse must fail, got %v", err)
	}
}
