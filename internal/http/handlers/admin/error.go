package admin

import (
	"errors"

	handlershared "github.com/dfinsell-next/internal/http/handlers/shared"
	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var syncErrorRules = []mappedHandlerError{
	{target: service.ErrNonceInvalid, code: response.CodeUnauthorized, msg: "sync token invalid or already used"},
	{target: service.ErrPaymentGatewayRequestFailed, code: response.CodeInternal, msg: "payment gateway request failed"},
	{target: service.ErrPaymentGatewayResponseInvalid, code: response.CodeInternal, msg: "payment gateway response invalid"},
}
