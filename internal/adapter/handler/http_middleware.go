package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rl1809/retail-pos/internal/logger"
)

// requestLogger logs every request once it completes and makes a request
// scoped logger available through logger.FromContext.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx, reqLog := logger.WithRequestID(r.Context(), log, middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case status >= 500:
				reqLog.Error("request failed", fields...)
			case status >= 400:
				reqLog.Warn("request rejected", fields...)
			default:
				reqLog.Info("request handled", fields...)
			}
		})
	}
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{
					Code:      "RATE_LIMITED",
					Message:   "too many checkout requests",
					RequestID: logger.RequestID(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
