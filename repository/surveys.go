// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/orgvote/auth"
	"github.com/danielhkuo/orgvote/clock"
	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/models"
)

// FieldChecker reports whether a logical profile field is mapped.
type FieldChecker interface {
	Has(logical string) bool
}

var errSurveyNotEditable = &models.ReasonError{
	Reason:  models.ReasonNotEditable,
	Message: "Closed surveys cannot be edited",
}

// Surveys stores surveys with their questions and target groups.
type Surveys struct {
	db       *sql.DB
	groups   GroupChecker
	fields   FieldChecker
	clock    clock.Clock
	validate *Validator
}

func NewSurveys(conn *sql.DB, groups GroupChecker, fields FieldChecker, clk clock.Clock, v *Validator) *Surveys {
	return &Surveys{db: conn, groups: groups, fields: fields, clock: clk, validate: v}
}

func (r *Surveys) prepare(ctx context.Context, in models.SurveyInput) error {
	errs := []error{r.validate.Struct(in)}

	for i, q := range in.Questions {
		if q.ProfileField != "" && !r.fields.Has(q.ProfileField) {
			errs = append(errs, models.ValidationError(map[string]string{
				fmt.Sprintf("questions[%d].profile_field", i): "unknown profile field",
			}))
		}
	}

	errs = append(errs, checkGroups(ctx, r.groups, in.TargetGroups))
	return mergeFields(errs...)
}

// Create validates in and stores it as a new draft survey.
func (r *Surveys) Create(ctx context.Context, in models.SurveyInput, createdBy string) (*models.Survey, error) {
	if err := r.prepare(ctx, in); err != nil {
		return nil, err
	}

	id, err := auth.GenerateID(16)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO survey (id, title, description, status, starts_at, ends_at, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, id, in.Title, in.Description, models.StatusDraft, in.StartsAt.UTC(), in.EndsAt.UTC(), createdBy, now)
		if err != nil {
			return fmt.Errorf("failed to insert survey: %w", err)
		}

		if err := insertTargets(ctx, tx, "survey_target", "survey_id", id, in.TargetGroups); err != nil {
			return err
		}
		return insertSurveyQuestions(ctx, tx, id, in.Questions)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("survey created", "survey_id", id, "questions", len(in.Questions), "created_by", createdBy)
	return r.Get(ctx, id)
}

func insertSurveyQuestions(ctx context.Context, tx *sql.Tx, surveyID string, questions []models.SurveyQuestionInput) error {
	for i, q := range questions {
		questionID, err := auth.GenerateID(12)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO survey_question (id, survey_id, text, field_type, max_length, profile_field, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, questionID, surveyID, q.Text, q.FieldType, q.MaxLength, q.ProfileField, i); err != nil {
			return fmt.Errorf("failed to insert survey question: %w", err)
		}
	}
	return nil
}

// deleteResponses removes every response of a survey, answers first.
func deleteResponses(ctx context.Context, tx *sql.Tx, surveyID string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM survey_answer WHERE response_id IN (SELECT id FROM survey_response WHERE survey_id = $1)
	`, surveyID); err != nil {
		return 0, fmt.Errorf("failed to delete response answers: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM survey_response WHERE survey_id = $1`, surveyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete responses: %w", err)
	}
	return res.RowsAffected()
}

const surveyColumns = `id, title, description, status, starts_at, ends_at, created_by, created_at, updated_at`

func scanSurvey(s scanner) (*models.Survey, error) {
	var sv models.Survey
	err := s.Scan(&sv.ID, &sv.Title, &sv.Description, &sv.Status, &sv.StartsAt, &sv.EndsAt,
		&sv.CreatedBy, &sv.CreatedAt, &sv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sv.StartsAt, sv.EndsAt = sv.StartsAt.UTC(), sv.EndsAt.UTC()
	sv.CreatedAt, sv.UpdatedAt = sv.CreatedAt.UTC(), sv.UpdatedAt.UTC()
	return &sv, nil
}

// Get returns a survey with its questions in sort order.
func (r *Surveys) Get(ctx context.Context, id string) (*models.Survey, error) {
	sv, err := scanSurvey(r.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM survey WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrSurveyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query survey: %w", err)
	}

	targets, err := loadTargets(ctx, r.db, "survey_target", "survey_id", []string{id})
	if err != nil {
		return nil, err
	}
	sv.TargetGroups = orEmpty(targets[id])

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, survey_id, text, field_type, max_length, profile_field, sort_order
		FROM survey_question WHERE survey_id = $1 ORDER BY sort_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query survey questions: %w", err)
	}
	defer rows.Close()

	sv.Questions = []models.SurveyQuestion{}
	for rows.Next() {
		var q models.SurveyQuestion
		if err := rows.Scan(&q.ID, &q.SurveyID, &q.Text, &q.FieldType, &q.MaxLength, &q.ProfileField, &q.SortOrder); err != nil {
			return nil, err
		}
		sv.Questions = append(sv.Questions, q)
	}
	return sv, rows.Err()
}

// List returns surveys without questions, newest first.
func (r *Surveys) List(ctx context.Context, opts ListOptions) (*models.SurveyList, error) {
	opts = opts.normalize()
	list := &models.SurveyList{Page: opts.Page, PerPage: opts.PerPage, Surveys: []models.Survey{}}

	where, args, limit := opts.filter()
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM survey WHERE `+where, args...).Scan(&list.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count surveys: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+surveyColumns+` FROM survey
		WHERE `+where+`
		ORDER BY created_at DESC, id
		`+limit, append(args, opts.PerPage, opts.offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}

	var ids []string
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list.Surveys = append(list.Surveys, *sv)
		ids = append(ids, sv.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	targets, err := loadTargets(ctx, r.db, "survey_target", "survey_id", ids)
	if err != nil {
		return nil, err
	}
	for i := range list.Surveys {
		list.Surveys[i].TargetGroups = orEmpty(targets[list.Surveys[i].ID])
	}
	return list, nil
}

// Update applies patch to a draft or open survey. Replacing the question
// set deletes every existing response in the same transaction.
func (r *Surveys) Update(ctx context.Context, id string, patch models.SurveyPatch) (*models.Survey, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == models.StatusClosed {
		return nil, errSurveyNotEditable
	}

	in := models.SurveyInput{
		Title:        cur.Title,
		Description:  cur.Description,
		StartsAt:     cur.StartsAt,
		EndsAt:       cur.EndsAt,
		TargetGroups: cur.TargetGroups,
		Questions:    make([]models.SurveyQuestionInput, len(cur.Questions)),
	}
	for i, q := range cur.Questions {
		in.Questions[i] = models.SurveyQuestionInput{Text: q.Text, FieldType: q.FieldType, MaxLength: q.MaxLength, ProfileField: q.ProfileField}
	}
	if patch.Title != nil {
		in.Title = *patch.Title
	}
	if patch.Description != nil {
		in.Description = *patch.Description
	}
	if patch.StartsAt != nil {
		in.StartsAt = *patch.StartsAt
	}
	if patch.EndsAt != nil {
		in.EndsAt = *patch.EndsAt
	}
	if patch.TargetGroups != nil {
		in.TargetGroups = *patch.TargetGroups
	}
	if patch.Questions != nil {
		in.Questions = patch.Questions
	}

	if err := r.prepare(ctx, in); err != nil {
		return nil, err
	}

	var dropped int64
	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE survey SET title = $1, description = $2, starts_at = $3, ends_at = $4, updated_at = $5
			WHERE id = $6 AND status <> $7
		`, in.Title, in.Description, in.StartsAt.UTC(), in.EndsAt.UTC(), r.clock.Now(), id, models.StatusClosed)
		if err != nil {
			return fmt.Errorf("failed to update survey: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errSurveyNotEditable
		}

		if patch.TargetGroups != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM survey_target WHERE survey_id = $1`, id); err != nil {
				return fmt.Errorf("failed to clear targets: %w", err)
			}
			if err := insertTargets(ctx, tx, "survey_target", "survey_id", id, in.TargetGroups); err != nil {
				return err
			}
		}

		if patch.Questions != nil {
			if dropped, err = deleteResponses(ctx, tx, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM survey_question WHERE survey_id = $1`, id); err != nil {
				return fmt.Errorf("failed to delete survey questions: %w", err)
			}
			if err := insertSurveyQuestions(ctx, tx, id, in.Questions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("survey updated", "survey_id", id, "questions_replaced", patch.Questions != nil, "responses_dropped", dropped)
	return r.Get(ctx, id)
}

// Delete removes a survey and everything it owns in one transaction.
func (r *Surveys) Delete(ctx context.Context, id string) error {
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var found string
		err := tx.QueryRowContext(ctx, `SELECT id FROM survey WHERE id = $1`, id).Scan(&found)
		if err == sql.ErrNoRows {
			return models.ErrSurveyNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query survey: %w", err)
		}

		if _, err := deleteResponses(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM survey_question WHERE survey_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete survey questions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM survey_target WHERE survey_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete targets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM survey WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete survey: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("survey deleted", "survey_id", id)
	return nil
}

// Publish opens a draft survey for responses.
func (r *Surveys) Publish(ctx context.Context, id string) (*models.Survey, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != models.StatusDraft {
		return nil, models.ErrNotEditable
	}
	if len(cur.Questions) == 0 {
		return nil, models.ErrNoQuestions
	}

	if err := r.transition(ctx, id, models.StatusDraft, models.StatusOpen, models.ErrNotEditable); err != nil {
		return nil, err
	}

	slog.Info("survey published", "survey_id", id)
	return r.Get(ctx, id)
}

// Close stops accepting responses.
func (r *Surveys) Close(ctx context.Context, id string) (*models.Survey, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != models.StatusOpen {
		return nil, models.ErrSurveyClosed
	}

	if err := r.transition(ctx, id, models.StatusOpen, models.StatusClosed, models.ErrSurveyClosed); err != nil {
		return nil, err
	}

	slog.Info("survey closed", "survey_id", id)
	return r.Get(ctx, id)
}

func (r *Surveys) transition(ctx context.Context, id, from, to string, conflict error) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4
	`, to, r.clock.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update survey status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return conflict
	}
	return nil
}
