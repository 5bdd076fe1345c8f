// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/jobs"
	"github.com/danielhkuo/orgvote/middleware"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/repository"
)

type PollHandler struct {
	svc *Services
}

func NewPollHandler(svc *Services) *PollHandler {
	return &PollHandler{svc: svc}
}

// createdBy names the admin in audit columns.
func (s *Services) createdBy(r *http.Request) string {
	if userID, err := s.Identity.UserID(r); err == nil && userID != "" {
		return userID
	}
	return "admin"
}

func listOptions(r *http.Request, admin bool) repository.ListOptions {
	return repository.ListOptions{
		Status:     r.URL.Query().Get("status"),
		Page:       queryInt(r, "page"),
		PerPage:    queryInt(r, "per_page"),
		HideDrafts: !admin,
	}
}

// visiblePoll loads a poll, hiding drafts from non-admins.
func (s *Services) visiblePoll(ctx context.Context, r *http.Request, id string) (*models.Poll, error) {
	poll, err := s.Polls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if poll.Status == models.StatusDraft && !s.isAdmin(r) {
		return nil, models.ErrNotFound
	}
	return poll, nil
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.PollInput
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	poll, err := h.svc.Polls.Create(r.Context(), req, h.svc.createdBy(r))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// ListPolls handles GET /polls
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Polls.List(r.Context(), listOptions(r, h.svc.isAdmin(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetPoll handles GET /polls/{id}
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.svc.caller(w, r)
	if !ok {
		return
	}

	poll, err := h.svc.visiblePoll(ctx, r, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	subject := eligibility.PollSubject(poll)
	detail := models.PollDetail{
		Poll:     poll,
		IsActive: h.svc.Checker.IsOpen(subject),
		IsEnded:  h.svc.Checker.IsEnded(subject),
	}

	if userID != "" {
		if detail.HasVoted, err = h.svc.Voting.HasVoted(ctx, poll.ID, userID); err != nil {
			writeError(w, err)
			return
		}
	}

	res, err := h.svc.Checker.CanParticipate(ctx, userID, subject)
	if err != nil {
		writeError(w, err)
		return
	}
	detail.EligibleError = res.Reason
	detail.MissingFields = res.MissingFields

	middleware.JSONResponse(w, http.StatusOK, detail)
}

// UpdatePoll handles PUT /polls/{id}
func (h *PollHandler) UpdatePoll(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.PollPatch
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	poll, err := h.svc.Polls.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, poll)
}

// DeletePoll handles DELETE /polls/{id}
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	if err := h.svc.Polls.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicatePoll handles POST /polls/{id}/duplicate
func (h *PollHandler) DuplicatePoll(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	poll, err := h.svc.Polls.Duplicate(r.Context(), r.PathValue("id"), h.svc.createdBy(r))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// PublishPoll handles POST /polls/{id}/publish. Polls with notify set
// also get an invitation job; a failure to start it does not undo the
// publish.
func (h *PollHandler) PublishPoll(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	ctx := r.Context()

	poll, err := h.svc.Polls.Publish(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.PublishPollResponse{Poll: poll}
	if poll.Notify {
		job, err := h.svc.startJob(ctx, jobs.KindInvitation, map[string]any{"poll_id": poll.ID})
		if err != nil {
			slog.Error("failed to start invitation job", "poll_id", poll.ID, "error", err)
		} else {
			resp.JobID = job.ID
		}
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// ClosePoll handles POST /polls/{id}/close
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	poll, err := h.svc.Polls.Close(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, poll)
}
