package public

import (
	"net/http"
	"strconv"

	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentReturn 网关回跳入口，消费一次性令牌后跳转订单完成页
func (h *Handler) PaymentReturn(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Query("order_id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "Invalid order", nil)
		return
	}

	target, err := h.PaymentService.HandleReturn(c.Request.Context(), service.ReturnInput{
		OrderID:  uint(orderID),
		OrderKey: c.Query("key"),
		Nonce:    c.Query("nonce"),
	})
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "Could not verify payment return")
		return
	}
	c.Redirect(http.StatusFound, target)
}
