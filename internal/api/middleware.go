package api

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/foxzi/alumnet/internal/config"
	"github.com/foxzi/alumnet/internal/models"
)

type contextKey int

const adminContextKey contextKey = iota

// AdminFromContext returns the administrator authenticated for the request
func AdminFromContext(ctx context.Context) (models.Admin, bool) {
	a, ok := ctx.Value(adminContextKey).(models.Admin)
	return a, ok
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authMiddleware resolves the API key to a configured administrator
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Authorization")
		if key == "" {
			key = r.Header.Get("X-API-Key")
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "Bearer "))

		admin, ok := s.auth.authenticate(key)
		if !ok {
			s.logger.Warn("unauthorized API request",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			sendError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminContextKey, admin)))
	})
}

// authenticator checks API keys against bcrypt hashes. Keys that matched
// once are remembered by their SHA-256 so bcrypt runs once per key.
type authenticator struct {
	admins []config.AdminConfig

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]models.Admin
}

func newAuthenticator(admins []config.AdminConfig) *authenticator {
	return &authenticator{
		admins:   admins,
		verified: make(map[[sha256.Size]byte]models.Admin),
	}
}

func (a *authenticator) authenticate(key string) (models.Admin, bool) {
	if key == "" {
		return models.Admin{}, false
	}
	sum := sha256.Sum256([]byte(key))

	a.mu.RLock()
	admin, ok := a.verified[sum]
	a.mu.RUnlock()
	if ok {
		return admin, true
	}

	for _, cfg := range a.admins {
		if bcrypt.CompareHashAndPassword([]byte(cfg.KeyHash), []byte(key)) != nil {
			continue
		}
		admin = models.Admin{Name: cfg.Name, Email: cfg.Email}
		a.mu.Lock()
		a.verified[sum] = admin
		a.mu.Unlock()
		return admin, true
	}
	return models.Admin{}, false
}
