package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAccountTitleRequired      = errors.New("account title is required")
	ErrAccountLiveKeysRequired   = errors.New("account live key pair is required")
	ErrAccountSandboxKeysInvalid = errors.New("account sandbox key pair is incomplete")
	ErrAccountKeysReused         = errors.New("account live and sandbox keys must differ")
	ErrAccountTitleDuplicate     = errors.New("account title is duplicated")
)

// Account 商户账户（以 JSON 数组形式保存在设置表中）
type Account struct {
	Title            string `json:"title"`
	Priority         int    `json:"priority"` // 越小越优先
	LivePublicKey    string `json:"live_public_key"`
	LiveSecretKey    string `json:"live_secret_key"`
	SandboxPublicKey string `json:"sandbox_public_key"`
	SandboxSecretKey string `json:"sandbox_secret_key"`
	HasSandbox       bool   `json:"has_sandbox"`
	LiveStatus       string `json:"live_status"`
	SandboxStatus    string `json:"sandbox_status"`
}

// Normalize 去除首尾空白
func (a *Account) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	a.LivePublicKey = strings.TrimSpace(a.LivePublicKey)
	a.LiveSecretKey = strings.TrimSpace(a.LiveSecretKey)
	a.SandboxPublicKey = strings.TrimSpace(a.SandboxPublicKey)
	a.SandboxSecretKey = strings.TrimSpace(a.SandboxSecretKey)
	a.LiveStatus = strings.TrimSpace(a.LiveStatus)
	a.SandboxStatus = strings.TrimSpace(a.SandboxStatus)
}

// Validate 校验单个账户
func (a Account) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return ErrAccountTitleRequired
	}
	if a.LivePublicKey == "" || a.LiveSecretKey == "" {
		return fmt.Errorf("%w: %s", ErrAccountLiveKeysRequired, a.Title)
	}
	if !a.HasSandbox {
		return nil
	}
	if a.SandboxPublicKey == "" || a.SandboxSecretKey == "" {
		return fmt.Errorf("%w: %s", ErrAccountSandboxKeysInvalid, a.Title)
	}
	if a.SandboxPublicKey == a.LivePublicKey || a.SandboxSecretKey == a.LiveSecretKey {
		return fmt.Errorf("%w: %s", ErrAccountKeysReused, a.Title)
	}
	return nil
}

// HasSandboxKeys 是否具备完整的沙箱密钥对
func (a Account) HasSandboxKeys() bool {
	return a.SandboxPublicKey != "" && a.SandboxSecretKey != ""
}

// KeysFor 按模式返回密钥对
func (a Account) KeysFor(sandbox bool) (publicKey, secretKey string) {
	if sandbox {
		return a.SandboxPublicKey, a.SandboxSecretKey
	}
	return a.LivePublicKey, a.LiveSecretKey
}

// NewAccount 创建并校验账户
func NewAccount(a Account) (Account, error) {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// ValidateAccounts 校验账户列表（标题唯一）
func ValidateAccounts(accounts []Account) ([]Account, error) {
	result := make([]Account, 0, len(accounts))
	seen := make(map[string]struct{}, len(accounts))
	for _, item := range accounts {
		account, err := NewAccount(item)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(account.Title)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrAccountTitleDuplicate, account.Title)
		}
		seen[key] = struct{}{}
		result = append(result, account)
	}
	return result, nil
}
