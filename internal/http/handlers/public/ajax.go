package public

import (
	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
)

func bindPopupInput(c *gin.Context) (service.PopupInput, bool) {
	var input service.PopupInput
	if err := c.ShouldBindJSON(&input); err != nil || input.OrderID == 0 {
		respondError(c, response.CodeBadRequest, "Invalid request", err)
		return input, false
	}
	return input, true
}

// CheckPaymentStatus 弹窗轮询订单状态
func (h *Handler) CheckPaymentStatus(c *gin.Context) {
	input, ok := bindPopupInput(c)
	if !ok {
		return
	}
	result, err := h.PaymentService.CheckPaymentStatus(c.Request.Context(), input)
	if err != nil {
		respondWithMappedError(c, err, popupErrorRules, response.CodeInternal, "Could not load payment status")
		return
	}
	response.Success(c, result)
}

// PopupClosed 付款人关闭支付弹窗后对账
func (h *Handler) PopupClosed(c *gin.Context) {
	input, ok := bindPopupInput(c)
	if !ok {
		return
	}
	result, err := h.PaymentService.HandlePopupClosed(c.Request.Context(), input)
	if err != nil {
		respondWithMappedError(c, err, popupErrorRules, response.CodeInternal, "Could not update payment status")
		return
	}
	response.Success(c, result)
}
