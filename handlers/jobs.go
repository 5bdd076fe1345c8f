// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"

	"github.com/danielhkuo/orgvote/jobs"
	"github.com/danielhkuo/orgvote/middleware"
	"github.com/danielhkuo/orgvote/models"
)

// JobHandler exposes the batch job contract: start, poll progress,
// advance one batch. All job routes need the admin key.
type JobHandler struct {
	svc *Services
}

func NewJobHandler(svc *Services) *JobHandler {
	return &JobHandler{svc: svc}
}

// startJob starts a job and hands it to the worker pool when one runs.
func (s *Services) startJob(ctx context.Context, kind string, params map[string]any) (*jobs.Job, error) {
	job, err := s.Jobs.Start(ctx, kind, params)
	if err != nil {
		return nil, err
	}
	if s.Runner != nil && !job.Done() {
		s.Runner.Submit(job.ID)
	}
	return job, nil
}

// StartJob handles POST /jobs
func (h *JobHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.StartJobRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	job, err := h.svc.startJob(r.Context(), req.Type, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusAccepted, job.Progress())
}

// GetProgress handles GET /jobs/{id}
func (h *JobHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	job, err := h.svc.Jobs.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, job.Progress())
}

// AdvanceJob handles POST /jobs/{id}/next
func (h *JobHandler) AdvanceJob(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	job, err := h.svc.Jobs.Advance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, job.Progress())
}

// CancelJob handles DELETE /jobs/{id}
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	if err := h.svc.Jobs.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
