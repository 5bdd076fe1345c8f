// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/orgvote/handlers"
	"github.com/danielhkuo/orgvote/middleware"
)

// NewRouter registers every route. gatherer backs /metrics; a nil
// gatherer leaves the endpoint out.
func NewRouter(svc *handlers.Services, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.WithMetrics(svc.Metrics, pattern, middleware.WithLogging(h)))
	}

	pollHandler := handlers.NewPollHandler(svc)
	votingHandler := handlers.NewVotingHandler(svc)
	surveyHandler := handlers.NewSurveyHandler(svc)
	jobHandler := handlers.NewJobHandler(svc)
	groupHandler := handlers.NewGroupHandler(svc)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if gatherer != nil {
		mux.Handle("GET /metrics", svc.Metrics.Handler(gatherer, svc.DB))
	}

	// Polls
	handle("POST /polls", pollHandler.CreatePoll)
	handle("GET /polls", pollHandler.ListPolls)
	handle("GET /polls/{id}", pollHandler.GetPoll)
	handle("PUT /polls/{id}", pollHandler.UpdatePoll)
	handle("DELETE /polls/{id}", pollHandler.DeletePoll)
	handle("POST /polls/{id}/duplicate", pollHandler.DuplicatePoll)
	handle("POST /polls/{id}/publish", pollHandler.PublishPoll)
	handle("POST /polls/{id}/close", pollHandler.ClosePoll)

	// Voting and results
	handle("POST /polls/{id}/votes", votingHandler.CastVote)
	handle("GET /polls/{id}/results", votingHandler.GetResults)

	// Surveys
	handle("POST /surveys", surveyHandler.CreateSurvey)
	handle("GET /surveys", surveyHandler.ListSurveys)
	handle("GET /surveys/{id}", surveyHandler.GetSurvey)
	handle("PUT /surveys/{id}", surveyHandler.UpdateSurvey)
	handle("DELETE /surveys/{id}", surveyHandler.DeleteSurvey)
	handle("POST /surveys/{id}/publish", surveyHandler.PublishSurvey)
	handle("POST /surveys/{id}/close", surveyHandler.CloseSurvey)
	handle("PUT /surveys/{id}/response", surveyHandler.SubmitResponse)
	handle("GET /surveys/{id}/response", surveyHandler.GetMyResponse)
	handle("GET /surveys/{id}/submissions", surveyHandler.GetSubmissions)
	handle("GET /surveys/{id}/stats", surveyHandler.GetStats)
	handle("PUT /surveys/{id}/responses/{rid}/spam", surveyHandler.SetSpamStatus)

	// Batch jobs
	handle("POST /jobs", jobHandler.StartJob)
	handle("GET /jobs/{id}", jobHandler.GetProgress)
	handle("POST /jobs/{id}/next", jobHandler.AdvanceJob)
	handle("DELETE /jobs/{id}", jobHandler.CancelJob)

	// Groups
	handle("GET /groups", groupHandler.ListGroups)
	handle("POST /groups", groupHandler.CreateGroup)
	handle("POST /groups/{id}/members", groupHandler.AddMember)

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("orgvote API v1"))
	})

	return mux
}
