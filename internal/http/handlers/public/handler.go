package public

import "github.com/dfinsell-next/internal/provider"

// Handler 前台/公开接口处理器入口
// 说明：该处理器服务于结账页、支付弹窗、网关回调与电商系统钩子。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
