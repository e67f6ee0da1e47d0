package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custom-pricing/internal/cache"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	defaultProductPath = "/products/%s.js"
	defaultCartPath    = "/cart.js"
	maxPayloadBytes    = 2 << 20
)

// ClientConfig 店铺接口配置
type ClientConfig struct {
	BaseURL         string
	ProductPath     string
	CartPath        string
	Timeout         time.Duration
	RetryMax        int
	ProductCacheTTL time.Duration
}

// Client 店铺接口客户端（商品 JSON 与购物车 JSON）
type Client struct {
	cfg  ClientConfig
	http *retryablehttp.Client
	log  *zap.SugaredLogger
}

// NewClient 创建客户端
func NewClient(cfg ClientConfig, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if strings.TrimSpace(cfg.ProductPath) == "" {
		cfg.ProductPath = defaultProductPath
	}
	if strings.TrimSpace(cfg.CartPath) == "" {
		cfg.CartPath = defaultCartPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	httpClient.RetryWaitMin = 100 * time.Millisecond
	httpClient.RetryWaitMax = time.Second
	httpClient.HTTPClient.Timeout = cfg.Timeout
	httpClient.Logger = retryLogger{log: log}

	return &Client{cfg: cfg, http: httpClient, log: log}
}

// Enabled 是否配置了店铺地址
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.BaseURL != ""
}

// FetchProduct 读取商品 JSON，Redis 启用时按 handle 缓存
func (c *Client) FetchProduct(ctx context.Context, handle string) (*ProductData, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrMissingContext
	}
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: storefront base url not configured", ErrFetchFailed)
	}
	key := productCacheKey(handle)
	var cached ProductData
	if hit, err := cache.GetJSON(ctx, key, &cached); err != nil {
		c.log.Warnw("storefront_product_cache_get_failed", "handle", handle, "error", err)
	} else if hit {
		return &cached, nil
	}

	body, err := c.get(ctx, c.cfg.BaseURL+fmt.Sprintf(c.cfg.ProductPath, url.PathEscape(handle)), "")
	if err != nil {
		return nil, err
	}
	product, err := ParseProductJSON(body)
	if err != nil {
		return nil, err
	}
	if product.Handle == "" {
		product.Handle = handle
	}
	if c.cfg.ProductCacheTTL > 0 {
		if err := cache.SetJSON(ctx, key, product, c.cfg.ProductCacheTTL); err != nil {
			c.log.Warnw("storefront_product_cache_set_failed", "handle", handle, "error", err)
		}
	}
	return product, nil
}

// FetchCart 读取购物车 JSON，cookie 为访客的店铺 Cookie 头
func (c *Client) FetchCart(ctx context.Context, cookie string) (*Cart, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: storefront base url not configured", ErrFetchFailed)
	}
	body, err := c.get(ctx, c.cfg.BaseURL+c.cfg.CartPath, cookie)
	if err != nil {
		return nil, err
	}
	return ParseCartJSON(body)
}

// CartFor 绑定访客 Cookie 的购物车读取器
func (c *Client) CartFor(cookie string) CartFetcher {
	return sessionCart{client: c, cookie: cookie}
}

// InvalidateProduct 清除商品缓存
func (c *Client) InvalidateProduct(ctx context.Context, handle string) error {
	return cache.Del(ctx, productCacheKey(handle))
}

func (c *Client) get(ctx context.Context, target, cookie string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if cookie = strings.TrimSpace(cookie); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetchFailed, target, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	return body, nil
}

func productCacheKey(handle string) string {
	return "storefront:product:" + strings.ToLower(strings.TrimSpace(handle))
}

type sessionCart struct {
	client *Client
	cookie string
}

func (s sessionCart) FetchCart(ctx context.Context) (*Cart, error) {
	return s.client.FetchCart(ctx, s.cookie)
}

// retryLogger 将 retryablehttp 日志接入 zap
type retryLogger struct {
	log *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) {
	l.log.Errorw("storefront_http_"+eventName(msg), kv...)
}

func (l retryLogger) Info(msg string, kv ...interface{}) {
	l.log.Debugw("storefront_http_"+eventName(msg), kv...)
}

func (l retryLogger) Debug(msg string, kv ...interface{}) {
	l.log.Debugw("storefront_http_"+eventName(msg), kv...)
}

func (l retryLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warnw("storefront_http_"+eventName(msg), kv...)
}

func eventName(msg string) string {
	fields := strings.Fields(strings.ToLower(msg))
	return strings.Trim(strings.Join(fields, "_"), "_:.")
}
