// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/cylinderd/internal/log"
)

// AccessLog writes one line per request. Server errors log at Warn.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrap(w)
		next.ServeHTTP(sw, r)

		logger := log.WithComponentFromContext(r.Context(), "http")
		ev := logger.Debug()
		if sw.status >= 500 {
			ev = logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("route", routePattern(r)).
			Int("status", sw.status).
			Int("bytes", sw.written).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("http request")
	})
}
