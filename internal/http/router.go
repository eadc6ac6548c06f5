package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/pocketlist/pocketlist/internal/service"
	"github.com/pocketlist/pocketlist/internal/store"
	"github.com/pocketlist/pocketlist/internal/ws"
	"github.com/pocketlist/pocketlist/pkg/httpx"
	"github.com/pocketlist/pocketlist/pkg/jwtx"
	"github.com/pocketlist/pocketlist/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	hub      *ws.Hub
	registry *prometheus.Registry

	SessionService *service.SessionService
	TodoService    *service.TodoService
	UserService    *service.UserService

	// CookieSecure marks the refresh cookie Secure; off only in local dev.
	CookieSecure bool

	// AllowedOrigins feeds both CORS and the WebSocket origin check.
	AllowedOrigins []string
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	hub *ws.Hub,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		hub:          hub,
		registry:     registry,
		logger:       logger,
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
	})

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		corsHandler.Handler,
	}

	return r
}

// WithCORSOrigins restricts cross-origin access to the given origins.
// Credentials (the refresh cookie) only flow when origins are explicit.
func (r *Router) WithCORSOrigins(origins []string) {
	if len(origins) == 0 {
		return
	}
	r.AllowedOrigins = origins
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		corsHandler.Handler,
	}
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTodos()
	r.registerAdmin()
	r.registerWS()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Sessions:     r.SessionService,
		Users:        r.UserService,
		CookieSecure: r.CookieSecure,
	}

	// Credential endpoints get the strict limit to slow brute force
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Refresh and logout authenticate via the refresh cookie, not the JWT
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerTodos() {
	h := &TodosHandler{Todos: r.TodoService}

	list := httpx.Chain(http.HandlerFunc(h.HandleList),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	create := httpx.Chain(http.HandlerFunc(h.HandleCreate),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	get := httpx.Chain(http.HandlerFunc(h.HandleGet),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	update := httpx.Chain(http.HandlerFunc(h.HandleUpdate),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	del := httpx.Chain(http.HandlerFunc(h.HandleDelete),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /v1/todos", list)
	r.Mux.Handle("POST /v1/todos", create)
	r.Mux.Handle("GET /v1/todos/{id}", get)
	r.Mux.Handle("PUT /v1/todos/{id}", update)
	r.Mux.Handle("DELETE /v1/todos/{id}", del)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Users: r.UserService}

	r.Mux.Handle("GET /v1/admin/users",
		httpx.Chain(http.HandlerFunc(h.HandleListUsers),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole("admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerWS() {
	h := &WSHandler{
		Hub:            r.hub,
		Verifier:       r.verifier,
		Logger:         r.logger,
		AllowedOrigins: r.AllowedOrigins,
	}

	r.Mux.Handle("GET /v1/ws",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	if r.registry != nil {
		r.Mux.Handle("GET /metrics",
			promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}),
		)
	}
}
