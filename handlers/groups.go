// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"

	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/groups"
	"github.com/danielhkuo/orgvote/middleware"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/profile"
)

// GroupHandler manages manual groups. City groups are kept in sync by
// the group_sync job.
type GroupHandler struct {
	svc *Services
}

func NewGroupHandler(svc *Services) *GroupHandler {
	return &GroupHandler{svc: svc}
}

// ListGroups handles GET /groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}
	list, err := h.svc.Groups.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// CreateGroup handles POST /groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.CreateGroupRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}
	if err := h.svc.Validator.Struct(req); err != nil {
		writeError(w, err)
		return
	}
	if req.Type == "" {
		req.Type = models.GroupTypeManual
	}

	group, err := h.svc.Groups.Create(r.Context(), req.Name, req.Type)
	if db.IsUniqueViolation(err) {
		err = models.ValidationError(map[string]string{"name": "already exists"})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, group)
}

// AddMember handles POST /groups/{id}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	if !h.svc.requireAdmin(w, r) {
		return
	}

	var req models.AddMemberRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badJSON(w)
		return
	}
	if err := h.svc.Validator.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if _, err := h.svc.Profiles.Load(ctx, req.UserID); err != nil {
		if errors.Is(err, profile.ErrUserNotFound) {
			err = models.ValidationError(map[string]string{"user_id": "unknown user"})
		}
		writeError(w, err)
		return
	}

	err := h.svc.Groups.AddMember(ctx, r.PathValue("id"), req.UserID)
	if errors.Is(err, groups.ErrGroupNotFound) {
		err = models.ErrNotFound
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
