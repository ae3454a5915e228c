package httpserver

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/http/handlers"
	"chargeslot/backend/services/reservations-service/internal/http/middleware"
)

// Routes groups handlers.
type Routes struct {
	Owner    *handlers.OwnerHandlers
	Operator *handlers.OperatorHandlers
	Health   http.HandlerFunc
	// Auth authenticates every /api route.
	Auth func(http.Handler) http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := routes.Auth
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}
	owner := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.RequireRole(middleware.RoleOwner, h))
	}
	operator := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.RequireRole(middleware.RoleOperator, h))
	}

	if o := routes.Owner; o != nil {
		mux.Handle("POST /api/reservations", owner(o.Create))
		mux.Handle("GET /api/reservations/upcoming", owner(o.Upcoming))
		mux.Handle("GET /api/reservations/history", owner(o.History))
		mux.Handle("GET /api/reservations/{id}", owner(o.Get))
		mux.Handle("PUT /api/reservations/{id}", owner(o.Update))
		mux.Handle("POST /api/reservations/{id}/cancel", owner(o.Cancel))
		mux.Handle("GET /api/reservations/{id}/claim", owner(o.Claim))
	}
	if op := routes.Operator; op != nil {
		mux.Handle("POST /api/operator/reservations/verify", operator(op.Verify))
		mux.Handle("POST /api/operator/reservations/{id}/activate", operator(op.Activate))
		mux.Handle("POST /api/operator/reservations/{id}/complete", operator(op.Complete))
		mux.Handle("POST /api/operator/reservations/{id}/cancel", operator(op.Cancel))
		mux.Handle("GET /api/operator/stations/{stationID}/reservations", operator(op.StationReservations))
	}
	if routes.Health != nil {
		mux.Handle("GET /health", routes.Health)
	}
	return accessLog(logger, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
