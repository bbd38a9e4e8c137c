package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"agency/pkg/config"
	"agency/pkg/logger"
	"agency/pkg/supabase"
)

// SessionAuth validates Supabase access tokens.
//
// Expected header:
// - Authorization: Bearer <JWT>
//
// Outside prod, a missing or unverifiable token can fall back to X-User-Id
// (plus X-User-Email, X-User-Name, X-User-Role) while login is stubbed.
func SessionAuth(cfg config.Config) func(http.Handler) http.Handler {
	return authenticate(cfg, true)
}

// OptionalAuth attaches an identity when the caller sent one and otherwise
// lets the request through anonymously. Guest carts and checkout use it.
func OptionalAuth(cfg config.Config) func(http.Handler) http.Handler {
	return authenticate(cfg, false)
}

func authenticate(cfg config.Config, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token := strings.TrimSpace(authz[7:])
				id, err := supabase.VerifyAccessToken(token, cfg.Auth.JWTSecret, cfg.Auth.Audience, time.Now())
				if err == nil {
					serveAs(next, w, r, id)
					return
				}
				if cfg.IsProd() {
					WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token")
					return
				}
				logger.Debug(r.Context(), "session token rejected, trying dev headers", "error", err)
			}

			if !cfg.IsProd() {
				if id := devIdentity(r); id != nil {
					serveAs(next, w, r, id)
					return
				}
			}

			if !required {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token")
		})
	}
}

func serveAs(next http.Handler, w http.ResponseWriter, r *http.Request, id *supabase.Identity) {
	ctx := WithIdentity(r.Context(), id)
	ctx = logger.WithUserID(ctx, id.UserID)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func devIdentity(r *http.Request) *supabase.Identity {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		return nil
	}
	return &supabase.Identity{
		UserID:          userID,
		Email:           strings.TrimSpace(r.Header.Get("X-User-Email")),
		DisplayNameHint: strings.TrimSpace(r.Header.Get("X-User-Name")),
		Role:            strings.TrimSpace(r.Header.Get("X-User-Role")),
	}
}

// RequireRole must run after SessionAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token")
				return
			}
			if id.Role != role {
				WriteError(w, http.StatusForbidden, "FORBIDDEN", "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event handlers working behind the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLogger tags the request with an id and logs one line when it ends.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := logger.WithRequestID(r.Context(), id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
