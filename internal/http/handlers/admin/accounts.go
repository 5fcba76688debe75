package admin

import (
	"errors"

	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateAccountsRequest 保存账户列表请求
type UpdateAccountsRequest struct {
	Accounts []models.Account `json:"accounts" binding:"required"`
}

// GetAccounts 获取商户账户列表（私钥脱敏）
func (h *Handler) GetAccounts(c *gin.Context) {
	accounts, err := h.AccountStore.Load(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load accounts", err)
		return
	}
	response.Success(c, service.MaskSecrets(accounts))
}

// UpdateAccounts 整体替换商户账户列表
func (h *Handler) UpdateAccounts(c *gin.Context) {
	var req UpdateAccountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}

	saved, err := h.AccountStore.Replace(c.Request.Context(), req.Accounts)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountsRequired):
			respondError(c, response.CodeBadRequest, "at least one account is required", nil)
		case errors.Is(err, service.ErrAccountsInvalid):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to save accounts", err)
		}
		return
	}
	if adminID, ok := c.Get("admin_id"); ok {
		requestLog(c).Infow("admin_accounts_updated", "admin_id", adminID, "accounts", len(saved))
	}
	response.Success(c, service.MaskSecrets(saved))
}
