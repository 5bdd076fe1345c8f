// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP routes.

	svc := handlers.NewServices(db, cfg, handlers.Options{Metrics: m})
	mux := router.NewRouter(svc, registry)

Every route except /health and /metrics is wrapped with request logging
and Prometheus instrumentation labelled by its pattern.

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Polls (create, update, delete, duplicate, publish, close need X-Admin-Key):

	POST   /polls
	GET    /polls
	GET    /polls/{id}
	PUT    /polls/{id}
	DELETE /polls/{id}
	POST   /polls/{id}/duplicate
	POST   /polls/{id}/publish
	POST   /polls/{id}/close
	POST   /polls/{id}/votes
	GET    /polls/{id}/results

Surveys:

	POST   /surveys
	GET    /surveys
	GET    /surveys/{id}
	PUT    /surveys/{id}
	DELETE /surveys/{id}
	POST   /surveys/{id}/publish
	POST   /surveys/{id}/close
	PUT    /surveys/{id}/response
	GET    /surveys/{id}/response
	GET    /surveys/{id}/submissions
	GET    /surveys/{id}/stats
	PUT    /surveys/{id}/responses/{rid}/spam

Batch jobs (admin):

	POST   /jobs
	GET    /jobs/{id}
	POST   /jobs/{id}/next
	DELETE /jobs/{id}

Groups (admin):

	GET  /groups
	POST /groups
	POST /groups/{id}/members
*/
package router
