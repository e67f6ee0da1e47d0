package public

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/custom-pricing/internal/constants"
	handlershared "github.com/custom-pricing/internal/http/handlers/shared"
	"github.com/custom-pricing/internal/i18n"
	"github.com/custom-pricing/internal/metrics"
	"github.com/custom-pricing/internal/reactivity"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const sessionWriteTimeout = 10 * time.Second

// sessionMessage 客户端消息：首条必须是 init，之后是页面事件
type sessionMessage struct {
	Type string `json:"type"`

	HTML       string          `json:"html,omitempty"`
	URL        string          `json:"url,omitempty"`
	Customer   CustomerPayload `json:"customer"`
	CartCookie string          `json:"cart_cookie,omitempty"`
	Cart       json.RawMessage `json:"cart,omitempty"`

	VariantID         string         `json:"variant_id,omitempty"`
	Options           map[int]string `json:"options,omitempty"`
	LineKey           string         `json:"line_key,omitempty"`
	Quantity          int            `json:"quantity,omitempty"`
	RegionID          string         `json:"region_id,omitempty"`
	ContainerSelector string         `json:"container_selector,omitempty"`
}

// sessionReply 服务端消息
type sessionReply struct {
	Type       string             `json:"type"`
	SessionID  string             `json:"session_id,omitempty"`
	RuleSource string             `json:"rule_source,omitempty"`
	Patches    []reactivity.Patch `json:"patches,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// sessionWriter 控制器事件循环与处理器共用一个连接，写操作串行化
type sessionWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *sessionWriter) write(reply sessionReply) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(reply)
}

func (w *sessionWriter) writeLocked(reply sessionReply) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(reply)
}

// StorefrontSession 实时定价会话（websocket）
// 页面事件逐条交给控制器处理，计算结果以 patch 消息推回。
func (h *Handler) StorefrontSession(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.sessionOriginAllowed,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写入 HTTP 错误响应
		handlershared.RequestLog(c).Warnw("storefront_session_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()
	defer metrics.SessionOpened()()

	log := handlershared.RequestLog(c)
	locale := i18n.ResolveLocale(c)
	writer := &sessionWriter{conn: conn}
	idle := h.StorefrontService.SessionIdle()

	var first sessionMessage
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	if err := conn.ReadJSON(&first); err != nil {
		log.Debugw("storefront_session_init_read_failed", "error", err)
		return
	}
	if first.Type != constants.SessionMessageInit {
		_ = writer.write(sessionReply{Type: constants.SessionMessageError, Message: i18n.T(locale, "error.bad_request")})
		return
	}
	cookie := strings.TrimSpace(first.CartCookie)
	if cookie == "" {
		if value, cookieErr := c.Cookie(cartCookieName); cookieErr == nil {
			cookie = value
		}
	}

	sink := func(patches []reactivity.Patch) {
		if err := writer.write(sessionReply{Type: constants.SessionMessagePatch, Patches: patches}); err != nil {
			log.Debugw("storefront_session_patch_write_failed", "error", err)
		}
	}

	// 持锁直到 ready 写出，保证首批 patch 排在 ready 之后
	writer.mu.Lock()
	session, err := h.StorefrontService.OpenSession(c.Request.Context(), service.RenderInput{
		HTML:         first.HTML,
		URL:          first.URL,
		CustomerID:   first.Customer.ID,
		CustomerTags: first.Customer.Tags,
		CartCookie:   cookie,
		CartJSON:     first.Cart,
	}, sink)
	if err != nil {
		key := "error.session_upgrade_failed"
		switch {
		case errors.Is(err, service.ErrRenderInputInvalid):
			key = "error.render_html_invalid"
		case errors.Is(err, service.ErrRuleSourceUnavailable):
			key = "error.pricing_rules_unavailable"
		}
		_ = writer.writeLocked(sessionReply{Type: constants.SessionMessageError, Message: i18n.T(locale, key)})
		writer.mu.Unlock()
		log.Warnw("storefront_session_open_failed", "error", err)
		return
	}
	defer session.Close()
	readyErr := writer.writeLocked(sessionReply{
		Type:       constants.SessionMessageReady,
		SessionID:  session.ID,
		RuleSource: session.RuleSource,
	})
	writer.mu.Unlock()
	if readyErr != nil {
		log.Debugw("storefront_session_ready_write_failed", "session_id", session.ID, "error", readyErr)
		return
	}
	log.Infow("storefront_session_started", "session_id", session.ID, "rule_source", session.RuleSource)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		var msg sessionMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugw("storefront_session_read_failed", "session_id", session.ID, "error", err)
			}
			break
		}
		ev, ok := sessionEvent(msg)
		if !ok {
			_ = writer.write(sessionReply{Type: constants.SessionMessageError, Message: i18n.T(locale, "error.bad_request")})
			continue
		}
		if err := session.Dispatch(ev); err != nil {
			_ = writer.write(sessionReply{Type: constants.SessionMessageError, Message: i18n.T(locale, "error.session_closed")})
			break
		}
	}
	log.Infow("storefront_session_closed", "session_id", session.ID)
}

// sessionEvent 客户端消息转换为控制器事件
func sessionEvent(msg sessionMessage) (reactivity.Event, bool) {
	switch msg.Type {
	case constants.SessionMessageVariantChanged:
		if strings.TrimSpace(msg.VariantID) == "" && len(msg.Options) == 0 {
			return nil, false
		}
		return reactivity.VariantChanged{VariantID: msg.VariantID, Options: msg.Options}, true
	case constants.SessionMessageQuantityChanged:
		if strings.TrimSpace(msg.LineKey) == "" || msg.Quantity < 0 {
			return nil, false
		}
		return reactivity.QuantityChanged{LineKey: msg.LineKey, Quantity: msg.Quantity}, true
	case constants.SessionMessageCartMutated:
		return reactivity.CartMutated{}, true
	case constants.SessionMessageRegionMutated:
		if strings.TrimSpace(msg.RegionID) == "" {
			return nil, false
		}
		return reactivity.RegionMutated{RegionID: msg.RegionID, HTML: msg.HTML}, true
	case constants.SessionMessageCardsInserted:
		if strings.TrimSpace(msg.HTML) == "" {
			return nil, false
		}
		return reactivity.CardsInserted{ContainerSelector: msg.ContainerSelector, HTML: msg.HTML}, true
	default:
		return nil, false
	}
}

// sessionOriginAllowed 按 CORS 白名单校验来源；未携带 Origin 的非浏览器客户端放行
func (h *Handler) sessionOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if h.Config == nil {
		return false
	}
	for _, allowed := range h.Config.CORS.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	parsed, err := url.Parse(origin)
	return err == nil && strings.EqualFold(parsed.Host, r.Host)
}
