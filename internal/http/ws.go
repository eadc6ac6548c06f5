package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/pocketlist/pocketlist/internal/ws"
	"github.com/pocketlist/pocketlist/pkg/httpx"
	"github.com/pocketlist/pocketlist/pkg/idx"
	"github.com/pocketlist/pocketlist/pkg/jwtx"
)

// WSHandler upgrades authenticated requests to a WebSocket and binds the
// connection to the user's room in the hub.
type WSHandler struct {
	Hub      *ws.Hub
	Verifier jwtx.Verifier
	Logger   *slog.Logger

	// AllowedOrigins gates the upgrade; empty allows same-origin only.
	AllowedOrigins []string
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	userID, err := idx.Parse(claims.Subject)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.Logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	ctx := httpx.ContextWithClaims(r.Context(), claims)
	client := ws.NewClient(ctx, h.Hub, conn, userID)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// authenticate accepts the access token from the Authorization header or,
// for browser WebSocket clients that cannot set headers, an access_token
// query parameter.
func (h *WSHandler) authenticate(r *http.Request) (jwtx.Claims, bool) {
	raw := ""
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	} else {
		raw = r.URL.Query().Get("access_token")
	}
	if raw == "" {
		return jwtx.Claims{}, false
	}

	claims, err := h.Verifier.Verify(raw)
	if err != nil {
		return jwtx.Claims{}, false
	}
	return claims, true
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
