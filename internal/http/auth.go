package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/internal/service"
	"github.com/pocketlist/pocketlist/pkg/httpx"
	"github.com/pocketlist/pocketlist/pkg/idx"
	"github.com/pocketlist/pocketlist/pkg/slogx"
)

// refreshCookieName holds the opaque refresh token. HttpOnly keeps it away
// from page scripts; the path scopes it to the auth endpoints.
const (
	refreshCookieName = "pocketlist_refresh"
	refreshCookiePath = "/v1/auth"
)

// AuthHandler serves registration, login, refresh, logout and profile.
type AuthHandler struct {
	Sessions *service.SessionService
	Users    *service.UserService

	CookieSecure bool
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func mapUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

func (h *AuthHandler) sessionResponse(u domain.User, pair domain.TokenPair) sessionResponse {
	return sessionResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(pair.AccessExpiresAt).Seconds()),
		ExpiresAt:   pair.AccessExpiresAt,
		User:        mapUserResponse(u),
	}
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, pair domain.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// presentedRefreshToken pulls the refresh token from the cookie, falling
// back to a JSON body for non-browser clients.
func presentedRefreshToken(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httpx.DecodeJSON(r, &body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "malformed JSON body"})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "name and a valid email are required"})
		return
	}
	if len(req.Password) < 8 {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "password must be at least 8 characters"})
		return
	}

	user, pair, err := h.Sessions.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			httpx.WriteJSON(w, http.StatusConflict, errorResponse{Error: "email_taken", Description: "an account with this email already exists"})
			return
		}
		writeInternalError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair)
	httpx.WriteJSON(w, http.StatusCreated, h.sessionResponse(user, pair))
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "malformed JSON body"})
		return
	}

	user, pair, err := h.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeUnauthorized(w)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair)
	httpx.WriteJSON(w, http.StatusOK, h.sessionResponse(user, pair))
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	presented := presentedRefreshToken(r)
	if presented == "" {
		writeUnauthorized(w)
		return
	}

	user, pair, err := h.Sessions.Refresh(r.Context(), presented)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			h.clearRefreshCookie(w)
			writeUnauthorized(w)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair)
	httpx.WriteJSON(w, http.StatusOK, h.sessionResponse(user, pair))
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	presented := presentedRefreshToken(r)

	if err := h.Sessions.Logout(r.Context(), presented); err != nil {
		writeInternalError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := idx.Parse(httpx.UserIDFromCtx(r.Context()))
	if err != nil {
		writeUnauthorized(w)
		return
	}

	user, err := h.Users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeUnauthorized(w)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mapUserResponse(user))
}

// writeUnauthorized is the single 401 shape for all authentication
// failures, so responses never reveal which part of a credential was wrong.
func writeUnauthorized(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusUnauthorized, errorResponse{
		Error:       "invalid_credentials",
		Description: "authentication failed",
	})
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
}
