// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/orgvote/auth"
	"github.com/danielhkuo/orgvote/jobs"
	"github.com/danielhkuo/orgvote/middleware"
	"github.com/danielhkuo/orgvote/models"
)

var reasonStatus = map[models.Reason]int{
	models.ReasonValidation:        http.StatusBadRequest,
	models.ReasonMissingAnswer:     http.StatusBadRequest,
	models.ReasonInvalidQuestion:   http.StatusBadRequest,
	models.ReasonInvalidAnswer:     http.StatusBadRequest,
	models.ReasonUnknownJobType:    http.StatusBadRequest,
	models.ReasonNotLoggedIn:       http.StatusUnauthorized,
	models.ReasonIncompleteProfile: http.StatusForbidden,
	models.ReasonWrongGroup:        http.StatusForbidden,
	models.ReasonNotFound:          http.StatusNotFound,
	models.ReasonSurveyNotFound:    http.StatusNotFound,
	models.ReasonPollNotActive:     http.StatusConflict,
	models.ReasonSurveyClosed:      http.StatusConflict,
	models.ReasonAlreadyVoted:      http.StatusConflict,
	models.ReasonNotEditable:       http.StatusConflict,
	models.ReasonPollNotEnded:      http.StatusConflict,
	models.ReasonNoQuestions:       http.StatusConflict,
	models.ReasonJobExpired:        http.StatusGone,
}

// StatusFor maps a rejection reason to its HTTP status.
func StatusFor(reason models.Reason) int {
	if code, ok := reasonStatus[reason]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// writeError renders user-facing rejections with their reason and hides
// everything else behind a generic retry message.
func writeError(w http.ResponseWriter, err error) {
	if jobs.IsNotFound(err) {
		err = models.ErrJobExpired
	}
	if re, ok := models.ReasonOf(err); ok {
		middleware.ReasonResponse(w, StatusFor(re.Reason), re)
		return
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	slog.Error("request failed", "error", err)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "Please try again")
}

func badJSON(w http.ResponseWriter) {
	middleware.ReasonResponse(w, http.StatusBadRequest, &models.ReasonError{
		Reason:  models.ReasonValidation,
		Message: "Invalid JSON",
	})
}

// isAdmin reports whether the request carries the configured admin key.
func (s *Services) isAdmin(r *http.Request) bool {
	return auth.ValidateAdminKey(r.Header.Get(auth.HeaderAdminKey), s.Config.AdminKey) == nil
}

// requireAdmin writes 401 and returns false for non-admin callers.
func (s *Services) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.isAdmin(r) {
		return true
	}
	middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
	return false
}

// caller resolves the calling user; "" means anonymous. A malformed
// token is answered with 401.
func (s *Services) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.Identity.UserID(r)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return userID, true
}

// queryInt reads a positive integer query parameter, or 0.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
