package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/csrf"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/permission"
)

const maxBodyBytes = 64 << 10

type server struct {
	engine        *goGate.Engine
	media         *mediaStore
	metrics       http.Handler
	ping          func(context.Context) error
	secureCookies bool
}

func newRouter(s *server, origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.engine.Logger()))
	r.Use(chimw.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", csrf.HeaderName, middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.Public(s.engine, goGate.RouteAuth)).Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Protect(s.engine, goGate.RouteAPI))
			r.Post("/logout", s.handleLogout)
			r.Post("/logout-all", s.handleLogoutAll)
			r.Get("/sessions", s.handleSessions)
		})
	})

	r.With(middleware.ProtectResource(s.engine, goGate.RouteAPI, mediaResource, permission.MediaRead)).
		Get("/media/{id}", s.handleGetMedia)
	r.With(middleware.ProtectResource(s.engine, goGate.RouteAPI, mediaResource, permission.MediaDelete)).
		Delete("/media/{id}", s.handleDeleteMedia)

	r.With(middleware.Protect(s.engine, goGate.RouteAdmin)).Post("/admin/override", s.handleOverride)
	return r
}

func mediaResource(r *http.Request) *permission.Resource {
	return &permission.Resource{Kind: mediaKind, ID: chi.URLParam(r, "id")}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, s.engine.Logger(), err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goGate.ErrValidation
	}
	return nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	CSRFToken string    `json:"csrf_token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	issued, err := s.engine.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	expires := issued.Session.AbsoluteExpiresAt
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    issued.Token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrf.CookieName,
		Value:    issued.CSRFToken,
		Path:     "/",
		Expires:  expires,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     issued.Token,
		CSRFToken: issued.CSRFToken,
		SessionID: issued.Session.SessionID,
		ExpiresAt: expires,
	})
}

func (s *server) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, csrf.CookieName} {
		http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1, Secure: s.secureCookies})
	}
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), middleware.TokenFromRequest(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.clearCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.LogoutAll(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.clearCookies(w)
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

type sessionView struct {
	SessionID    string    `json:"session_id"`
	IssuedAt     time.Time `json:"issued_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Current      bool      `json:"current"`
}

func (s *server) handleSessions(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	current, _ := middleware.SessionFromContext(r.Context())

	sessions, err := s.engine.ListSessions(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionView{
			SessionID:    sess.SessionID,
			IssuedAt:     sess.IssuedAt,
			LastActiveAt: sess.LastActiveAt,
			ExpiresAt:    sess.ExpiresAt,
			Current:      current != nil && sess.SessionID == current.SessionID,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	item, ok := s.media.Get(chi.URLParam(r, "id"))
	if !ok {
		s.fail(w, r, goGate.ErrAccessDenied)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, item)
}

func (s *server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	if !s.media.Delete(chi.URLParam(r, "id")) {
		s.fail(w, r, goGate.ErrAccessDenied)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overrideRequest struct {
	Permission string `json:"permission"`
	Resource   *struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	} `json:"resource,omitempty"`
	Reason string `json:"reason"`
}

func (s *server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	perm, err := permission.ParsePermission(req.Permission)
	if err != nil {
		s.fail(w, r, goGate.ErrValidation)
		return
	}
	var res *permission.Resource
	if req.Resource != nil {
		res = &permission.Resource{Kind: req.Resource.Kind, ID: req.Resource.ID}
	}

	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := s.engine.AuthorizeOverride(r.Context(), p.UserID, perm, res, req.Reason); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"granted": true})
}
