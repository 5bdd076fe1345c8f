// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package surveys

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/danielhkuo/orgvote/auth"
	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/metrics"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/profile"
	"github.com/danielhkuo/orgvote/repository"
)

// SurveySource loads surveys with their questions.
type SurveySource interface {
	Get(ctx context.Context, id string) (*models.Survey, error)
}

// ProfileReader is the part of the profile store the service needs.
type ProfileReader interface {
	Load(ctx context.Context, userID string) (*profile.Profile, error)
	IsSensitive(logical string) bool
}

// Service stores and presents survey responses.
type Service struct {
	db       *sql.DB
	surveys  SurveySource
	checker  *eligibility.Checker
	profiles ProfileReader
	validate *repository.Validator
	metrics  *metrics.Metrics
}

func NewService(conn *sql.DB, surveys SurveySource, checker *eligibility.Checker, profiles ProfileReader, v *repository.Validator, m *metrics.Metrics) *Service {
	return &Service{db: conn, surveys: surveys, checker: checker, profiles: profiles, validate: v, metrics: m}
}

// Submit creates or replaces the caller's response. Each save replaces
// the whole answer set and refreshes the profile snapshot.
func (s *Service) Submit(ctx context.Context, surveyID, userID string, req models.SubmitResponseRequest) (*models.SubmitResponseResponse, error) {
	resp, err := s.submit(ctx, surveyID, userID, req)

	result := "ok"
	if re, ok := models.ReasonOf(err); ok {
		result = string(re.Reason)
	} else if err != nil {
		result = "error"
	}
	s.metrics.ResponseSaved(result)

	return resp, err
}

func (s *Service) submit(ctx context.Context, surveyID, userID string, req models.SubmitResponseRequest) (*models.SubmitResponseResponse, error) {
	if req.Status != models.ResponseDraft && req.Status != models.ResponseReady {
		return nil, models.ValidationError(map[string]string{"status": "must be one of: draft ready"})
	}

	survey, err := s.surveys.Get(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	subject := eligibility.SurveySubject(survey)
	if !s.checker.IsOpen(subject) {
		return nil, models.ErrSurveyClosed
	}

	res, err := s.checker.CanParticipate(ctx, userID, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to check eligibility: %w", err)
	}
	if !res.Eligible {
		return nil, res.Err()
	}

	p, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	values, err := s.checkAnswers(survey, p, req)
	if err != nil {
		return nil, err
	}

	responseID, err := s.upsert(ctx, survey.ID, p, req.Status, values)
	if err != nil {
		return nil, err
	}

	slog.Info("survey response saved", "survey_id", surveyID, "response_id", responseID, "status", req.Status)
	return &models.SubmitResponseResponse{ResponseID: responseID, Status: req.Status}, nil
}

// checkAnswers validates the submitted answers and returns the values to
// store keyed by question ID. Empty answers to profile-bound questions
// are filled from the profile.
func (s *Service) checkAnswers(survey *models.Survey, p *profile.Profile, req models.SubmitResponseRequest) (map[string]string, error) {
	known := make(map[string]bool, len(survey.Questions))
	for _, q := range survey.Questions {
		known[q.ID] = true
	}
	for questionID := range req.Answers {
		if !known[questionID] {
			return nil, models.ErrInvalidQuestion
		}
	}

	values := make(map[string]string, len(survey.Questions))
	fields := map[string]string{}
	for _, q := range survey.Questions {
		field := "answers." + q.ID
		v := strings.TrimSpace(req.Answers[q.ID])
		if v == "" && q.ProfileField != "" {
			v = p.Value(q.ProfileField)
		}

		switch {
		case v == "" && req.Status == models.ResponseReady:
			fields[field] = "is required"
		case utf8.RuneCountInString(v) > q.MaxLength:
			fields[field] = "must be at most " + strconv.Itoa(q.MaxLength) + " characters"
		case v != "" && q.FieldType == models.FieldURL:
			if err := s.validate.Var(field, v, "url"); err != nil {
				fields[field] = "must be a valid URL"
			}
		}

		if v != "" {
			values[q.ID] = v
		}
	}

	if len(fields) > 0 {
		return nil, models.ValidationError(fields)
	}
	return values, nil
}

func (s *Service) upsert(ctx context.Context, surveyID string, p *profile.Profile, status string, values map[string]string) (string, error) {
	newID, err := auth.GenerateID(16)
	if err != nil {
		return "", err
	}
	now := s.checker.Now()

	var responseID string
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO survey_response (id, survey_id, user_id, status, spam_status, first_name, last_name, nickname, phone, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			ON CONFLICT (survey_id, user_id) DO UPDATE SET
				status = excluded.status,
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				nickname = excluded.nickname,
				phone = excluded.phone,
				email = excluded.email,
				updated_at = excluded.updated_at
		`, newID, surveyID, p.UserID, status, models.SpamPending,
			p.Value(profile.FirstName), p.Value(profile.LastName), p.Value(profile.Nickname),
			p.Value(profile.Phone), p.Value(profile.Email), now)
		if err != nil {
			return fmt.Errorf("failed to upsert response: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			SELECT id FROM survey_response WHERE survey_id = $1 AND user_id = $2
		`, surveyID, p.UserID).Scan(&responseID)
		if err != nil {
			return fmt.Errorf("failed to read response id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM survey_answer WHERE response_id = $1`, responseID); err != nil {
			return fmt.Errorf("failed to clear answers: %w", err)
		}
		for questionID, value := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO survey_answer (response_id, question_id, value) VALUES ($1, $2, $3)
			`, responseID, questionID, value); err != nil {
				return fmt.Errorf("failed to insert answer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return responseID, nil
}

// Mine returns the caller's own response with its answers.
func (s *Service) Mine(ctx context.Context, surveyID, userID string) (*models.SurveyResponse, error) {
	if userID == "" {
		return nil, models.ErrNotLoggedIn
	}
	if _, err := s.surveys.Get(ctx, surveyID); err != nil {
		return nil, err
	}

	var r models.SurveyResponse
	err := s.db.QueryRowContext(ctx, `
		SELECT id, survey_id, user_id, status, spam_status, first_name, last_name, nickname, phone, email, created_at, updated_at
		FROM survey_response WHERE survey_id = $1 AND user_id = $2
	`, surveyID, userID).Scan(&r.ID, &r.SurveyID, &r.UserID, &r.Status, &r.SpamStatus,
		&r.FirstName, &r.LastName, &r.Nickname, &r.Phone, &r.Email, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query response: %w", err)
	}

	answers, err := s.loadAnswers(ctx, []string{r.ID})
	if err != nil {
		return nil, err
	}
	r.Answers = answers[r.ID]
	if r.Answers == nil {
		r.Answers = map[string]string{}
	}
	return &r, nil
}

// SetSpamStatus records a moderation decision. Responses are never deleted.
func (s *Service) SetSpamStatus(ctx context.Context, surveyID, responseID, status string) error {
	switch status {
	case models.SpamPending, models.SpamNotSpam, models.SpamSpam:
	default:
		return models.ValidationError(map[string]string{"spam_status": "must be one of: pending not_spam spam"})
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE survey_response SET spam_status = $1 WHERE id = $2 AND survey_id = $3
	`, status, responseID, surveyID)
	if err != nil {
		return fmt.Errorf("failed to update spam status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}

	slog.Info("response moderated", "survey_id", surveyID, "response_id", responseID, "spam_status", status)
	return nil
}

func (s *Service) loadAnswers(ctx context.Context, responseIDs []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(responseIDs))
	if len(responseIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT response_id, question_id, value FROM survey_answer
		WHERE response_id IN (`+db.Placeholders(1, len(responseIDs))+`)
	`, db.Args(responseIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var responseID, questionID, value string
		if err := rows.Scan(&responseID, &questionID, &value); err != nil {
			return nil, err
		}
		if out[responseID] == nil {
			out[responseID] = make(map[string]string)
		}
		out[responseID][questionID] = value
	}
	return out, rows.Err()
}
