// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

Each route is wrapped by the router:

	mux.HandleFunc(pattern, middleware.WithMetrics(m, pattern, middleware.WithLogging(h)))

WithLogging logs method, path, status, remote address and duration.
WithMetrics labels Prometheus series with the route pattern so that
poll IDs do not explode label cardinality. A nil *metrics.Metrics turns
it into a no-op.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows X-User-ID, X-Admin-Key and Authorization so browser clients can
send caller identity.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.ReasonResponse(w, http.StatusConflict, models.ErrAlreadyVoted)

ParseJSONBody decodes at most 1 MiB and accepts an empty body.
*/
package middleware
