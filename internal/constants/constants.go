package constants

// 订单状态常量（与商城系统订单状态保持一致）
const (
	OrderStatusCheckoutDraft = "checkout-draft"
	OrderStatusPending       = "pending"
	OrderStatusProcessing    = "processing"
	OrderStatusCompleted     = "completed"
	OrderStatusFailed        = "failed"
	OrderStatusCancelled     = "cancelled"
	OrderStatusRefunded      = "refunded"
)

// 支付模式常量
const (
	PaymentModeLive    = "live"
	PaymentModeSandbox = "sandbox"
)

// 订单来源与支付元数据
const (
	OrderOriginDfinsell   = "dfinsell"
	PaymentSourceCheckout = "woocommerce"
	PaymentMethodDfinsell = "dfinsell"
)

// 网关交易状态常量（update-txn-status 返回值）
const (
	TxnStatusSuccess    = "success"
	TxnStatusPaid       = "paid"
	TxnStatusProcessing = "processing"
	TxnStatusFailed     = "failed"
	TxnStatusCanceled   = "canceled"
	TxnStatusExpired    = "expired"
)

// 回调中的订单状态
const (
	CallbackOrderStatusCompleted = "completed"
)

// 账户同步状态
const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

// 设置键常量
const (
	SettingKeyDfinsellAccounts = "dfinsell_accounts"
	SettingKeyDfinsellGateway  = "dfinsell_gateway"
)

// 网关设置字段
const (
	SettingFieldEnabled      = "enabled"
	SettingFieldSandbox      = "sandbox"
	SettingFieldOrderStatus  = "order_status"
	SettingFieldConsent      = "show_consent_checkbox"
	SettingFieldTitle        = "title"
	SettingFieldDescription  = "description"
	SettingFieldAccounts     = "accounts"
	SettingFieldLoginCaptcha = "admin_login_captcha"
)

// 一次性令牌动作
const (
	NonceActionRedirect   = "dfinsell_redirect"
	NonceActionPopup      = "dfinsell_popup"
	NonceActionManualSync = "dfinsell_manual_sync"
)

// 同步触发方式
const (
	SyncTriggerCron   = "cron"
	SyncTriggerManual = "manual"
)

// 队列与任务常量
const (
	QueueDefault            = "default"
	QueueCritical           = "critical"
	TaskOrderUnpaidExpire   = "order:unpaid_expire"
	TaskAccountSwitchNotify = "account:switch_notify"
)

// 分布式锁常量
const (
	LockKeyPrefix   = "lock_"
	LockDriverRedis = "redis"
	LockDriverDB    = "database"
)
