package public

import "github.com/custom-pricing/internal/provider"

// Handler 店铺侧公开接口处理器入口
// 说明：渲染、报价与实时会话均不需要登录，由店铺主题脚本调用。
type Handler struct {
	*provider.Container
}

// New 创建店铺侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
