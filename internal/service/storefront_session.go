package service

import (
	"context"
	"errors"
	"sync"

	"github.com/custom-pricing/internal/reactivity"

	"github.com/google/uuid"
)

// PricingSession 一个页面的实时会话：独占一个控制器与事件循环
type PricingSession struct {
	ID         string
	RuleSource string

	controller *reactivity.Controller
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.Mutex
	err        error
}

// OpenSession 创建会话并启动事件循环，首次计算结果经 sink 推送
func (s *StorefrontService) OpenSession(ctx context.Context, input RenderInput, sink reactivity.PatchSink) (*PricingSession, error) {
	page, rules, source, err := s.preparePage(ctx, input)
	if err != nil {
		return nil, err
	}
	pipeline, err := s.buildPipeline(page, rules, input)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session := &PricingSession{
		ID:         uuid.NewString(),
		RuleSource: source,
		controller: reactivity.NewController(page, pipeline, s.reactivity, reactivity.TimerScheduler{}, sink, s.log),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go session.run(runCtx)
	if err := session.controller.Dispatch(reactivity.PageLoaded{}); err != nil {
		session.Close()
		return nil, err
	}
	s.log.Debugw("storefront_session_opened", "session_id", session.ID, "url", input.URL, "rules", len(rules))
	return session, nil
}

func (p *PricingSession) run(ctx context.Context) {
	defer close(p.done)
	err := p.controller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Dispatch 投递页面事件
func (p *PricingSession) Dispatch(ev reactivity.Event) error {
	if err := p.controller.Dispatch(ev); err != nil {
		if errors.Is(err, reactivity.ErrControllerClosed) {
			return ErrSessionClosed
		}
		return err
	}
	return nil
}

// State 控制器状态
func (p *PricingSession) State() reactivity.State {
	return p.controller.State()
}

// Done 事件循环结束
func (p *PricingSession) Done() <-chan struct{} {
	return p.done
}

// Err 事件循环退出原因
func (p *PricingSession) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// HTML 会话结束后的页面；事件循环仍在运行时返回错误
func (p *PricingSession) HTML() (string, error) {
	select {
	case <-p.done:
		return p.controller.Page().HTML()
	default:
		return "", errors.New("pricing session still running")
	}
}

// Close 停止事件循环并等待退出
func (p *PricingSession) Close() {
	p.closeOnce.Do(func() {
		if err := p.controller.Dispatch(reactivity.Shutdown{}); err != nil {
			p.cancel()
		}
		<-p.done
		p.cancel()
	})
}
