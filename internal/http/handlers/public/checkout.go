package public

import (
	"errors"

	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutRequest 结账提交请求
type CheckoutRequest struct {
	OrderID  uint   `json:"order_id" binding:"required"`
	OrderKey string `json:"order_key" binding:"required"`
	Consent  bool   `json:"consent"`
}

// Checkout 选择商户账户并向网关申请支付链接
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "Invalid request", err)
		return
	}

	result, err := h.PaymentService.ProcessPayment(c.Request.Context(), service.ProcessPaymentInput{
		OrderID:  req.OrderID,
		OrderKey: req.OrderKey,
		ClientIP: c.ClientIP(),
		Consent:  req.Consent,
	})
	if err != nil {
		var rejected *service.PaymentRejectedError
		if errors.As(err, &rejected) && rejected.Message != "" {
			respondError(c, response.CodeBadRequest, rejected.Message, nil)
			return
		}
		respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "Payment could not be processed")
		return
	}
	response.Success(c, result)
}
