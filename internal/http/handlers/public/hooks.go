package public

import (
	"strconv"

	"github.com/dfinsell-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// OrderUnpaidHook 电商系统的未支付/取消钩子，触发超时取消检查
func (h *Handler) OrderUnpaidHook(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "Invalid order", nil)
		return
	}
	result, err := h.OrderExpiryService.ExpireUnpaidOrder(c.Request.Context(), uint(orderID))
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "Could not expire order")
		return
	}
	response.Success(c, result)
}
