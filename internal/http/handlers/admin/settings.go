package admin

import (
	"errors"

	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetGatewaySettings 获取网关设置
func (h *Handler) GetGatewaySettings(c *gin.Context) {
	setting, err := h.SettingService.GetGateway()
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load settings", err)
		return
	}
	response.Success(c, setting)
}

// UpdateGatewaySettings 保存网关设置
func (h *Handler) UpdateGatewaySettings(c *gin.Context) {
	var req service.GatewaySetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}
	setting, err := h.SettingService.UpdateGateway(req)
	if err != nil {
		if errors.Is(err, service.ErrTargetStatusInvalid) {
			respondError(c, response.CodeBadRequest, "order_status must be processing or completed", nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to save settings", err)
		return
	}
	response.Success(c, setting)
}
