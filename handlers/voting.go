// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/orgvote/anonymize"
	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/middleware"
	"github.com/danielhkuo/orgvote/models"
)

type VotingHandler struct {
	svc *Services
}

func NewVotingHandler(svc *Services) *VotingHandler {
	return &VotingHandler{svc: svc}
}

// CastVote handles POST /polls/{id}/votes
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.svc.caller(w, r)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	pollID := r.PathValue("id")
	if err := h.svc.Voting.Cast(r.Context(), pollID, userID, req.Answers, req.Anonymous); err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		PollID:  pollID,
		Message: "Vote recorded",
	})
}

// GetResults handles GET /polls/{id}/results. The public view is only
// available once the poll has ended; admins get the admin view at any
// time. page and per_page apply to both voter lists.
func (h *VotingHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin := h.svc.isAdmin(r)

	poll, err := h.svc.visiblePoll(ctx, r, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	view := anonymize.Public
	if admin {
		view = anonymize.Admin
	} else if !h.svc.Checker.IsEnded(eligibility.PollSubject(poll)) {
		writeError(w, models.ErrPollNotEnded)
		return
	}

	tally, err := h.svc.Voting.Tally(ctx, poll.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	page, perPage := queryInt(r, "page"), queryInt(r, "per_page")
	voters, err := h.svc.Voting.Voters(ctx, poll.ID, view, page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	nonVoters, err := h.svc.Voting.NonVoters(ctx, poll.ID, view, page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Tally:     tally,
		Voters:    voters,
		NonVoters: nonVoters,
	})
}
