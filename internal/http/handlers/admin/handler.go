package admin

import "github.com/custom-pricing/internal/provider"

// Handler 后台接口处理器：登录、定价规则维护与角色分配
type Handler struct {
	*provider.Container
}

// New 创建后台处理器，依赖全部来自容器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
