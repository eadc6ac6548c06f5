package sessionsdk

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Listener consumes the service's event socket and surfaces token expiry
// warnings through the liveness prompt. It reconnects with a fixed backoff
// until the context ends or the session logs out.
type Listener struct {
	session *Session
	prompt  *Prompt

	// Backoff between reconnect attempts; defaults to 5s.
	Backoff time.Duration

	// OnEvent, when set, observes every event. Useful for tests and UIs.
	OnEvent func(Event)
}

// NewListener wires the event socket to the prompt.
func NewListener(session *Session, prompt *Prompt) *Listener {
	return &Listener{
		session: session,
		prompt:  prompt,
		Backoff: 5 * time.Second,
	}
}

// Run blocks, maintaining the socket until ctx is cancelled or the session
// ends. Call it in its own goroutine.
func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil || l.session.LoggedOut() {
			return
		}

		l.consume(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.Backoff):
		}
	}
}

// consume dials the socket and processes events until the connection drops.
func (l *Listener) consume(ctx context.Context) {
	conn, err := l.dial(ctx)
	if err != nil {
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}

		if l.OnEvent != nil {
			l.OnEvent(event)
		}

		if event.Type == EventTokenExpiring {
			l.prompt.Open()
		}
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(l.session.client.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/ws"

	q := u.Query()
	q.Set("access_token", l.session.AccessToken())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}
