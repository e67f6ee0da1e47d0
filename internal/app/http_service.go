package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/custom-pricing/internal/config"
)

// HTTPService HTTP 服务封装
type HTTPService struct {
	server *http.Server
}

// NewHTTPService 创建 HTTP 服务
func NewHTTPService(cfg config.ServerConfig, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              cfg.Host + ":" + cfg.Port,
			Handler:           handler,
			ReadHeaderTimeout: seconds(cfg.ReadHeaderTimeoutSeconds),
			IdleTimeout:       seconds(cfg.IdleTimeoutSeconds),
		},
	}
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// Name 服务名称
func (s *HTTPService) Name() string {
	return "http"
}

// Addr 监听地址
func (s *HTTPService) Addr() string {
	return s.server.Addr
}

// Start 启动服务，Shutdown 后返回 nil
func (s *HTTPService) Start(_ context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止服务；已升级的 websocket 会话不受 Shutdown 管理，按空闲超时自行结束
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
