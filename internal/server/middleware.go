package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

// UserHeader carries the id of the already authenticated caller. Session
// handling lives in the gateway in front of this service.
const UserHeader = "X-User-ID"

type actorKey struct{}

func actorFrom(ctx context.Context) service.Actor {
	a, _ := ctx.Value(actorKey{}).(service.Actor)
	return a
}

// authenticate resolves the caller's role from the user directory. Browsers
// cannot set headers on a WebSocket handshake, so user_id is also read from
// the query string.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserHeader)
		if raw == "" {
			raw = r.URL.Query().Get("user_id")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid " + UserHeader, Status: "unauthenticated"})
			return
		}

		u, err := s.svc.Accounts.GetUser(r.Context(), service.Actor{ID: id}, id)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unknown user", Status: "unauthenticated"})
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, service.Actor{ID: u.ID, Role: u.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("HTTP request")
	})
}
