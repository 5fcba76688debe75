package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dfinsell-next/internal/cache"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/repository"
)

// AccountStore 商户账户存储（设置表中的单条 JSON 记录）
type AccountStore struct {
	repo repository.SettingRepository
}

// NewAccountStore 创建账户存储
func NewAccountStore(repo repository.SettingRepository) *AccountStore {
	return &AccountStore{repo: repo}
}

// Load 读取账户列表，保持保存时的顺序。无法通过校验的记录会被跳过。
func (s *AccountStore) Load(ctx context.Context) ([]models.Account, error) {
	if cached, hit, err := cache.GetAccounts(ctx); err == nil && hit {
		return cached, nil
	}
	setting, err := s.repo.GetByKey(constants.SettingKeyDfinsellAccounts)
	if err != nil {
		return nil, err
	}
	accounts := make([]models.Account, 0)
	if setting == nil {
		return accounts, nil
	}
	raw, ok := setting.ValueJSON[constants.SettingFieldAccounts]
	if !ok || raw == nil {
		return accounts, nil
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var stored []models.Account
	if err := json.Unmarshal(body, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountsInvalid, err)
	}
	for _, item := range stored {
		account, err := models.NewAccount(item)
		if err != nil {
			logger.Warnw("account_store_record_skipped", "title", item.Title, "error", err)
			continue
		}
		accounts = append(accounts, account)
	}
	if err := cache.SetAccounts(ctx, accounts); err != nil {
		logger.Debugw("account_store_cache_set_failed", "error", err)
	}
	return accounts, nil
}

// Save 整体替换账户列表（管理端保存）
func (s *AccountStore) Save(ctx context.Context, accounts []models.Account) ([]models.Account, error) {
	validated, err := models.ValidateAccounts(accounts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountsInvalid, err)
	}
	if len(validated) == 0 {
		return nil, ErrAccountsRequired
	}
	if err := s.persist(ctx, validated); err != nil {
		return nil, err
	}
	return validated, nil
}

// FindByTitle 按标题查找账户
func (s *AccountStore) FindByTitle(ctx context.Context, title string) (*models.Account, error) {
	accounts, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Title == title {
			return &accounts[i], nil
		}
	}
	return nil, nil
}

func (s *AccountStore) persist(ctx context.Context, accounts []models.Account) error {
	value := models.JSON{constants.SettingFieldAccounts: accounts}
	if _, err := s.repo.Upsert(constants.SettingKeyDfinsellAccounts, value); err != nil {
		return err
	}
	if err := cache.DelAccounts(ctx); err != nil {
		logger.Warnw("account_store_cache_invalidate_failed", "error", err)
	}
	return nil
}

const secretMask = "****"

// MaskSecrets 返回隐藏私钥的账户副本，仅保留末四位
func MaskSecrets(accounts []models.Account) []models.Account {
	masked := make([]models.Account, len(accounts))
	for i, account := range accounts {
		account.LiveSecretKey = maskSecret(account.LiveSecretKey)
		account.SandboxSecretKey = maskSecret(account.SandboxSecretKey)
		masked[i] = account
	}
	return masked
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return secretMask
	}
	return secretMask + secret[len(secret)-4:]
}

func isMaskedSecret(secret string) bool {
	return secret == "" || strings.HasPrefix(secret, secretMask)
}

// Replace 管理端保存：私钥留空或仍为掩码时沿用同一公钥下已保存的私钥
func (s *AccountStore) Replace(ctx context.Context, accounts []models.Account) ([]models.Account, error) {
	stored, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	secrets := make(map[string]string, len(stored)*2)
	for _, account := range stored {
		secrets[account.LivePublicKey] = account.LiveSecretKey
		if account.SandboxPublicKey != "" {
			secrets[account.SandboxPublicKey] = account.SandboxSecretKey
		}
	}
	merged := make([]models.Account, len(accounts))
	for i, account := range accounts {
		account.LivePublicKey = strings.TrimSpace(account.LivePublicKey)
		account.SandboxPublicKey = strings.TrimSpace(account.SandboxPublicKey)
		if isMaskedSecret(strings.TrimSpace(account.LiveSecretKey)) {
			account.LiveSecretKey = secrets[account.LivePublicKey]
		}
		if account.SandboxPublicKey != "" && isMaskedSecret(strings.TrimSpace(account.SandboxSecretKey)) {
			account.SandboxSecretKey = secrets[account.SandboxPublicKey]
		}
		merged[i] = account
	}
	return s.Save(ctx, merged)
}
