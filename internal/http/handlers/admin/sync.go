package admin

import (
	"time"

	"github.com/dfinsell-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ManualSyncRequest 手动同步请求
type ManualSyncRequest struct {
	Token string `json:"token" binding:"required"`
}

// GetSyncToken 签发一次性手动同步令牌
func (h *Handler) GetSyncToken(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	token, expiresAt, err := h.AccountSyncService.IssueManualSyncToken(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to issue sync token", err)
		return
	}
	response.Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// ManualSync 手动触发账户状态同步
func (h *Handler) ManualSync(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req ManualSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	result, err := h.AccountSyncService.ManualSync(c.Request.Context(), adminID, req.Token)
	if err != nil {
		respondWithMappedError(c, err, syncErrorRules, response.CodeInternal, "account sync failed")
		return
	}
	requestLog(c).Infow("admin_manual_sync_done", "admin_id", adminID, "updated", result.Updated, "skipped", result.Skipped)
	response.Success(c, result)
}
