package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/metrics"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/payment/dfinsell"
)

const syncTokenTTL = 10 * time.Minute

// AccountSyncService 账户状态同步
type AccountSyncService struct {
	store    *AccountStore
	client   *dfinsell.Client
	nonceSvc *NonceService
}

// NewAccountSyncService 创建账户同步服务
func NewAccountSyncService(store *AccountStore, client *dfinsell.Client, nonceSvc *NonceService) *AccountSyncService {
	return &AccountSyncService{store: store, client: client, nonceSvc: nonceSvc}
}

// SyncResult 同步结果
type SyncResult struct {
	Trigger  string `json:"trigger"`
	Skipped  bool   `json:"skipped"`
	Entries  int    `json:"entries"`
	Statuses int    `json:"statuses"`
	Updated  int    `json:"updated"`
}

// Sync 批量向网关同步所有账户密钥的状态，有变化时写回账户列表
func (s *AccountSyncService) Sync(ctx context.Context, trigger string) (*SyncResult, error) {
	result := &SyncResult{Trigger: trigger}
	log := logger.SW("trigger", trigger)

	accounts, err := s.store.Load(ctx)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(trigger, "failed").Inc()
		return nil, err
	}
	entries, bearer := buildSyncEntries(accounts)
	result.Entries = len(entries)
	if bearer == "" {
		metrics.SyncRunsTotal.WithLabelValues(trigger, "skipped").Inc()
		log.Warnw("account_sync_skipped_no_token", "accounts", len(accounts))
		result.Skipped = true
		return result, nil
	}

	statuses, err := s.client.SyncAccountStatus(ctx, bearer, entries)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(trigger, "failed").Inc()
		log.Errorw("account_sync_request_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayRequestFailed, err)
	}
	result.Statuses = len(statuses)
	result.Updated = applySyncStatuses(accounts, statuses)
	if result.Updated == 0 {
		metrics.SyncRunsTotal.WithLabelValues(trigger, "unchanged").Inc()
		log.Infow("account_sync_unchanged", "statuses", len(statuses))
		return result, nil
	}
	if err := s.store.persist(ctx, accounts); err != nil {
		metrics.SyncRunsTotal.WithLabelValues(trigger, "failed").Inc()
		log.Errorw("account_sync_persist_failed", "error", err)
		return nil, err
	}
	metrics.SyncRunsTotal.WithLabelValues(trigger, "updated").Inc()
	log.Infow("account_sync_updated", "updated", result.Updated)
	return result, nil
}

// IssueManualSyncToken 为管理员签发一次性手动同步令牌
func (s *AccountSyncService) IssueManualSyncToken(adminID uint) (string, time.Time, error) {
	return s.nonceSvc.Issue(constants.NonceActionManualSync, adminSubject(adminID), syncTokenTTL)
}

// ManualSync 消费一次性令牌后执行同步
func (s *AccountSyncService) ManualSync(ctx context.Context, adminID uint, token string) (*SyncResult, error) {
	if err := s.nonceSvc.Consume(constants.NonceActionManualSync, adminSubject(adminID), token); err != nil {
		return nil, err
	}
	return s.Sync(ctx, constants.SyncTriggerManual)
}

func adminSubject(adminID uint) string {
	return "admin:" + strconv.FormatUint(uint64(adminID), 10)
}

// buildSyncEntries 展开所有密钥对；bearer 取第一个非空的正式公钥
func buildSyncEntries(accounts []models.Account) ([]dfinsell.AccountEntry, string) {
	entries := make([]dfinsell.AccountEntry, 0, len(accounts)*2)
	bearer := ""
	for _, account := range accounts {
		if account.LivePublicKey != "" && account.LiveSecretKey != "" {
			entries = append(entries, dfinsell.AccountEntry{
				AccountName: account.Title,
				PublicKey:   account.LivePublicKey,
				SecretKey:   account.LiveSecretKey,
				Mode:        constants.PaymentModeLive,
			})
			if bearer == "" {
				bearer = account.LivePublicKey
			}
		}
		if account.HasSandbox && account.HasSandboxKeys() {
			entries = append(entries, dfinsell.AccountEntry{
				AccountName: account.Title,
				PublicKey:   account.SandboxPublicKey,
				SecretKey:   account.SandboxSecretKey,
				Mode:        constants.PaymentModeSandbox,
			})
		}
	}
	return entries, bearer
}

// applySyncStatuses 按 mode + public_key 匹配并覆盖状态，返回变化条数
func applySyncStatuses(accounts []models.Account, statuses []dfinsell.AccountStatus) int {
	updated := 0
	for _, st := range statuses {
		mode := normalizeStatus(st.Mode)
		for i := range accounts {
			account := &accounts[i]
			switch {
			case mode == constants.PaymentModeLive && account.LivePublicKey == st.PublicKey:
				if account.LiveStatus != st.Status {
					account.LiveStatus = st.Status
					updated++
				}
			case mode == constants.PaymentModeSandbox && account.SandboxPublicKey != "" && account.SandboxPublicKey == st.PublicKey:
				if account.SandboxStatus != st.Status {
					account.SandboxStatus = st.Status
					updated++
				}
			}
		}
	}
	return updated
}
