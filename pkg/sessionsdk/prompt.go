package sessionsdk

import (
	"context"
	"sync"
	"time"
)

// DefaultPromptTimeout is how long the user has to respond to a liveness
// prompt before the session is ended for them.
const DefaultPromptTimeout = 10 * time.Minute

// Prompt implements the "are you still there?" flow. Opening it starts a
// countdown; the user either confirms (the session refreshes and continues)
// or lets it lapse or dismisses it (the session ends). Reopening an already
// open prompt restarts the countdown from scratch.
type Prompt struct {
	session *Session
	timeout time.Duration

	// OnShow fires when the prompt opens so the UI can render it.
	OnShow func()
	// OnClose fires whenever the prompt closes, for any reason.
	OnClose func()

	// test seam
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu    sync.Mutex
	timer *time.Timer
	open  bool
}

// NewPrompt creates a prompt bound to the session. A non-positive timeout
// uses DefaultPromptTimeout.
func NewPrompt(session *Session, timeout time.Duration) *Prompt {
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	return &Prompt{
		session:   session,
		timeout:   timeout,
		afterFunc: time.AfterFunc,
	}
}

// Open shows the prompt and starts (or restarts) the countdown.
func (p *Prompt) Open() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	var timer *time.Timer
	timer = p.afterFunc(p.timeout, func() {
		p.lapse(timer)
	})
	p.timer = timer
	wasOpen := p.open
	p.open = true
	onShow := p.OnShow
	p.mu.Unlock()

	if !wasOpen && onShow != nil {
		onShow()
	}
}

// IsOpen reports whether the prompt is currently showing.
func (p *Prompt) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Confirm is the "I'm still here" action. It refreshes the session so the
// server re-arms its expiry warning; refresh failures are swallowed because
// a failed refresh already triggers the session's forced-logout path.
func (p *Prompt) Confirm(ctx context.Context) {
	if !p.close() {
		return
	}
	_ = p.session.Refresh(ctx)
}

// Dismiss is the user explicitly declining to continue; the session ends.
func (p *Prompt) Dismiss(ctx context.Context) {
	if !p.close() {
		return
	}
	_ = p.session.Logout(ctx)
	if cb := p.session.OnForcedLogout; cb != nil {
		cb()
	}
}

// lapse runs when the countdown expires with no response.
func (p *Prompt) lapse(self *time.Timer) {
	p.mu.Lock()
	// A reset countdown owns the prompt now
	if p.timer != self {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if !p.close() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.session.Logout(ctx)
	if cb := p.session.OnForcedLogout; cb != nil {
		cb()
	}
}

// close stops the countdown and hides the prompt. Returns false when the
// prompt was not open, so lapse/confirm/dismiss act at most once each cycle.
func (p *Prompt) close() bool {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return false
	}
	p.open = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	onClose := p.OnClose
	p.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return true
}
