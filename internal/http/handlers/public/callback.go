package public

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CallbackResponse 网关回调响应体
type CallbackResponse struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	PaymentReturnURL string `json:"payment_return_url,omitempty"`
}

// flexibleOrderID 订单号，网关可能以数字或数字字符串发送
type flexibleOrderID uint

// UnmarshalJSON 解析订单号（字符串或数字），null 与空串视为未提供
func (id *flexibleOrderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	var raw string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*id = 0
			return nil
		}
	} else {
		var num json.Number
		if err := json.Unmarshal(b, &num); err != nil {
			return err
		}
		raw = num.String()
	}
	parsed, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil {
		return err
	}
	*id = flexibleOrderID(parsed)
	return nil
}

// CallbackRequest 网关回调请求体
type CallbackRequest struct {
	Nonce       string          `json:"nonce"`
	OrderID     flexibleOrderID `json:"order_id"`
	PayID       string          `json:"pay_id"`
	OrderStatus string          `json:"order_status"`
}

// ProviderCallback 网关服务端回调。
// 与其他接口不同，这里直接返回 HTTP 状态码，网关据此判断是否重试。
func (h *Handler) ProviderCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		requestLog(c).Warnw("payment_callback_body_invalid", "error", err)
		c.JSON(http.StatusBadRequest, CallbackResponse{Status: "error", Message: "Invalid request body"})
		return
	}

	result := h.PaymentService.HandleProviderCallback(c.Request.Context(), service.CallbackInput{
		Nonce:       req.Nonce,
		OrderID:     uint(req.OrderID),
		PayID:       req.PayID,
		OrderStatus: req.OrderStatus,
	})
	resp := CallbackResponse{Status: "error", Message: result.Message}
	if result.Success {
		resp.Status = "success"
		resp.PaymentReturnURL = result.ReturnURL
	}
	c.JSON(result.HTTPStatus, resp)
}
