package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/model"
	"chips-casino/internal/pkg/metrics"
	"chips-casino/internal/pkg/ratelimit"
	"chips-casino/internal/pkg/session"
)

// AccountEnsurer resolves the ledger account of a verified identity.
type AccountEnsurer interface {
	EnsureUser(ctx context.Context, id *session.Identity) (*model.User, error)
}

// Limiter decides whether a key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

type userKey struct{}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// userFrom returns the account stored by Authenticate.
func userFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey{}).(*model.User)
	return u
}

// routePattern returns the matched chi pattern, or the raw path before routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// Timing logs one api_timing line per request and records its latency.
func Timing(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			d := time.Since(start)
			route := routePattern(r)
			m.ObserveRequest(r.Method, route, status, d)

			log.Info().
				Str("type", "api_timing").
				Str("path", r.URL.Path).
				Str("route", route).
				Str("method", r.Method).
				Int("status", status).
				Float64("durationMs", float64(d.Microseconds())/1000).
				Str("requestId", middleware.GetReqID(r.Context())).
				Msg("")
		})
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("Recovered from panic in handler")
				writeStatus(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Authenticate verifies the session token and loads the caller's account,
// creating it on first sight.
func Authenticate(sessions *session.Manager, accounts AccountEnsurer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessions.FromRequest(r)
			if err != nil {
				if !errors.Is(err, session.ErrMissingToken) {
					log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected session token")
				}
				writeStatus(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			user, err := accounts.EnsureUser(r.Context(), id)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := session.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(withUser(ctx, user)))
		})
	}
}

// RequireAdmin rejects callers whose account is not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		if user == nil || !user.IsAdmin {
			ev := log.Warn().Str("path", r.URL.Path)
			if user != nil {
				ev = ev.Str("user_id", user.ID.String())
			}
			ev.Msg("Non-admin attempted admin request")
			writeStatus(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit allows each user limit requests per window for group. Limiter
// errors let the request through.
func RateLimit(l Limiter, group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFrom(r.Context())
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			d, err := l.Allow(r.Context(), group+":"+user.ID.String())
			if err != nil {
				log.Warn().Err(err).Str("group", group).Msg("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			if !d.Allowed {
				secs := int64((d.RetryAfter + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.FormatInt(max(secs, 1), 10))
				writeStatus(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
