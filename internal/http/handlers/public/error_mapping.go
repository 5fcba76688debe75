package public

import (
	"errors"

	handlershared "github.com/dfinsell-next/internal/http/handlers/shared"
	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			handlershared.RequestLog(c).Warnw("handler_business_error", "code", rule.code, "error", err)
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var orderLookupErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "Order not found"},
	{target: service.ErrNonceInvalid, code: response.CodeUnauthorized, msg: "Session expired, please refresh the page"},
}

// 付款人只看到通用提示，账户名与网关原文只进日志
var checkoutErrorRules = concatMappedHandlerErrors(orderLookupErrorRules, []mappedHandlerError{
	{target: service.ErrGatewayDisabled, code: response.CodeBadRequest, msg: "This payment method is currently unavailable"},
	{target: service.ErrConsentRequired, code: response.CodeBadRequest, msg: "Please accept the payment terms to continue"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, msg: "This order can no longer be paid"},
	{target: service.ErrNoAccountAvailable, code: response.CodeBadRequest, msg: "Sorry, due to technical issues we cannot process your payment at the moment. Please try again later"},
	{target: service.ErrPaymentGatewayRequestFailed, code: response.CodeInternal, msg: "Payment gateway is unreachable, please try again later"},
	{target: service.ErrPaymentGatewayResponseInvalid, code: response.CodeInternal, msg: "Payment gateway returned an unexpected response"},
})

var popupErrorRules = concatMappedHandlerErrors(orderLookupErrorRules, []mappedHandlerError{
	{target: service.ErrPaymentTokenMissing, code: response.CodeBadRequest, msg: "Payment has not been started for this order"},
	{target: service.ErrTargetStatusInvalid, code: response.CodeInternal, msg: "Payment gateway is misconfigured"},
	{target: service.ErrPaymentGatewayRequestFailed, code: response.CodeInternal, msg: "Payment gateway is unreachable, please try again later"},
	{target: service.ErrPaymentGatewayResponseInvalid, code: response.CodeInternal, msg: "Payment gateway returned an unexpected response"},
})
