package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	cookieName   = "jwt"
	headerAPIKey = "api_key"
)

// authenticate attaches the caller's principal when valid credentials are
// presented. It never rejects: public routes stay reachable with a stale
// cookie, and protected routes reject via requireUser.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.principal(r)
		if err != nil {
			zctx.From(r.Context()).Debug("Ignoring credentials", zap.Error(err))
		}
		if p != nil {
			r = r.WithContext(auth.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) principal(r *http.Request) (*auth.Principal, error) {
	if key := r.Header.Get(headerAPIKey); key != "" && h.Keys != nil {
		info, err := h.Keys.Authenticate(r.Context(), key)
		if err != nil {
			return nil, err
		}
		return &auth.Principal{
			UserID: "apikey:" + info.ID,
			Name:   info.Name,
			Admin:  info.HasScope(auth.ScopeAdmin),
			KeyID:  info.ID,
		}, nil
	}

	token := bearer(r)
	if token == "" {
		if c, err := r.Cookie(cookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" || h.Tokens == nil {
		return nil, nil
	}
	return h.Tokens.Parse(token)
}

func bearer(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			respondError(w, r, auth.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		switch {
		case !ok:
			respondError(w, r, auth.ErrUnauthorized)
		case !p.Admin:
			respondError(w, r, auth.ErrForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// caller returns the principal set by authenticate. Routes reaching it are
// behind requireUser.
func caller(r *http.Request) *auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
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
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Register creates an account and starts a session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Users.Register(r.Context(), user.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.startSession(w, r, u, http.StatusCreated)
}

// Login checks credentials and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.startSession(w, r, u, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	token, exp, err := h.Tokens.Issue(auth.Principal{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Admin:  u.IsAdmin,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{User: toUser(u), Token: token, ExpiresAt: exp})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if p.KeyID != "" {
		writeJSON(w, http.StatusOK, userResponse{ID: p.UserID, Name: p.Name, IsAdmin: p.Admin})
		return
	}
	u, err := h.Users.Get(r.Context(), p.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}
