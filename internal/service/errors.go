package service

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCaptchaRequired    = errors.New("captcha required")
	ErrCaptchaInvalid     = errors.New("captcha invalid")

	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusInvalid  = errors.New("order status invalid")
	ErrOrderUpdateFailed   = errors.New("order update failed")
	ErrTargetStatusInvalid = errors.New("order target status invalid")
	ErrPaymentTokenMissing = errors.New("order payment token missing")
	ErrNonceInvalid        = errors.New("nonce invalid")
	ErrPayIDMismatch       = errors.New("payment token mismatch")

	ErrGatewayDisabled    = errors.New("payment gateway disabled")
	ErrConsentRequired    = errors.New("payment consent required")
	ErrNoAccountAvailable = errors.New("no payment account available")
	ErrAccountsRequired   = errors.New("at least one payment account is required")
	ErrAccountsInvalid    = errors.New("payment accounts invalid")

	ErrPaymentGatewayRequestFailed   = errors.New("payment gateway request failed")
	ErrPaymentGatewayResponseInvalid = errors.New("payment gateway response invalid")
	ErrPaymentRejected               = errors.New("payment rejected by gateway")
)

// PaymentRejectedError 网关拒绝支付，Message 可展示给付款人
type PaymentRejectedError struct {
	Message string
}

func (e *PaymentRejectedError) Error() string {
	if e == nil || e.Message == "" {
		return ErrPaymentRejected.Error()
	}
	return ErrPaymentRejected.Error() + ": " + e.Message
}

// Unwrap 支持 errors.Is(err, ErrPaymentRejected)
func (e *PaymentRejectedError) Unwrap() error {
	return ErrPaymentRejected
}
