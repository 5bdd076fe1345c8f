// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"

	"github.com/danielhkuo/orgvote/anonymize"
	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/middleware"
	"github.com/danielhkuo/orgvote/models"
)

type SurveyHandler struct {
	svc *Services
}

func NewSurveyHandler(svc *Services) *SurveyHandler {
	return &SurveyHandler{svc: svc}
}

func (s *Services) visibleSurvey(ctx context.Context, r *http.Request, id string) (*models.Survey, error) {
	survey, err := s.Surveys.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if survey.Status == models.StatusDraft && !s.isAdmin(r) {
		return nil, models.ErrSurveyNotFound
	}
	return survey, nil
}

// CreateSurvey handles POST /surveys
func (h *SurveyHandler) CreateSurvey(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.SurveyInput
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	survey, err := h.svc.Surveys.Create(r.Context(), req, h.svc.createdBy(r))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, survey)
}

// ListSurveys handles GET /surveys
func (h *SurveyHandler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Surveys.List(r.Context(), listOptions(r, h.svc.isAdmin(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetSurvey handles GET /surveys/{id}
func (h *SurveyHandler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.svc.caller(w, r)
	if !ok {
		return
	}

	survey, err := h.svc.visibleSurvey(ctx, r, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	subject := eligibility.SurveySubject(survey)
	res, err := h.svc.Checker.CanParticipate(ctx, userID, subject)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SurveyDetail{
		Survey:        survey,
		IsActive:      h.svc.Checker.IsOpen(subject),
		IsEnded:       h.svc.Checker.IsEnded(subject),
		EligibleError: res.Reason,
		MissingFields: res.MissingFields,
	})
}

// UpdateSurvey handles PUT /surveys/{id}
func (h *SurveyHandler) UpdateSurvey(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.SurveyPatch
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	survey, err := h.svc.Surveys.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, survey)
}

// DeleteSurvey handles DELETE /surveys/{id}
func (h *SurveyHandler) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	if err := h.svc.Surveys.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishSurvey handles POST /surveys/{id}/publish
func (h *SurveyHandler) PublishSurvey(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	survey, err := h.svc.Surveys.Publish(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, survey)
}

// CloseSurvey handles POST /surveys/{id}/close
func (h *SurveyHandler) CloseSurvey(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	survey, err := h.svc.Surveys.Close(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, survey)
}

// SubmitResponse handles PUT /surveys/{id}/response
func (h *SurveyHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.svc.caller(w, r)
	if !ok {
		return
	}

	var req models.SubmitResponseRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	resp, err := h.svc.Responses.Submit(r.Context(), r.PathValue("id"), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// GetMyResponse handles GET /surveys/{id}/response
func (h *SurveyHandler) GetMyResponse(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.svc.caller(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Responses.Mine(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// GetSubmissions handles GET /surveys/{id}/submissions. Admins see the
// moderation view.
func (h *SurveyHandler) GetSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	survey, err := h.svc.visibleSurvey(ctx, r, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	view := anonymize.Public
	if h.svc.isAdmin(r) {
		view = anonymize.Admin
	}

	page, err := h.svc.Responses.Submissions(ctx, survey.ID, view, queryInt(r, "page"), queryInt(r, "per_page"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, page)
}

// GetStats handles GET /surveys/{id}/stats
func (h *SurveyHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	stats, err := h.svc.Responses.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, stats)
}

// SetSpamStatus handles PUT /surveys/{id}/responses/{rid}/spam
func (h *SurveyHandler) SetSpamStatus(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.SpamStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}

	if err := h.svc.Responses.SetSpamStatus(r.Context(), r.PathValue("id"), r.PathValue("rid"), req.SpamStatus); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
