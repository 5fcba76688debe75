package service

import (
	"context"
	"sort"

	"github.com/dfinsell-next/internal/lock"
	"github.com/dfinsell-next/internal/metrics"
	"github.com/dfinsell-next/internal/models"
)

// SelectedAccount 已加锁的候选账户
type SelectedAccount struct {
	Account models.Account
	LockKey string
	Sandbox bool
}

// Keys 当前模式下的密钥对
func (a *SelectedAccount) Keys() (publicKey, secretKey string) {
	return a.Account.KeysFor(a.Sandbox)
}

// AccountSelector 按优先级挑选可用账户
type AccountSelector struct {
	store  *AccountStore
	locker lock.Locker
}

// NewAccountSelector 创建账户选择器
func NewAccountSelector(store *AccountStore, locker lock.Locker) *AccountSelector {
	return &AccountSelector{store: store, locker: locker}
}

// Candidates 返回按优先级升序（同优先级保持原顺序）的候选账户；沙箱模式只保留密钥完整的账户
func (s *AccountSelector) Candidates(ctx context.Context, sandbox bool) ([]models.Account, error) {
	accounts, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]models.Account, 0, len(accounts))
	for _, account := range accounts {
		if sandbox && !account.HasSandboxKeys() {
			continue
		}
		candidates = append(candidates, account)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})
	return candidates, nil
}

// SelectNext 选取下一个未排除且能加锁的账户；无可用账户时返回 nil
func (s *AccountSelector) SelectNext(ctx context.Context, excluded map[string]struct{}, sandbox bool) (*SelectedAccount, error) {
	candidates, err := s.Candidates(ctx, sandbox)
	if err != nil {
		return nil, err
	}
	return s.selectFrom(ctx, candidates, excluded, sandbox), nil
}

func (s *AccountSelector) selectFrom(ctx context.Context, candidates []models.Account, excluded map[string]struct{}, sandbox bool) *SelectedAccount {
	for _, account := range candidates {
		if _, skip := excluded[account.Title]; skip {
			continue
		}
		key := lock.AccountKey(account.Title)
		if !s.locker.Acquire(ctx, key) {
			metrics.LockAcquireTotal.WithLabelValues("busy").Inc()
			continue
		}
		metrics.LockAcquireTotal.WithLabelValues("acquired").Inc()
		return &SelectedAccount{Account: account, LockKey: key, Sandbox: sandbox}
	}
	return nil
}
