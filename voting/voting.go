// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/metrics"
	"github.com/danielhkuo/orgvote/models"
)

// Store answers has-voted lookups.
type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// HasVoted reports whether the user has any vote recorded on the poll.
func (s *Store) HasVoted(ctx context.Context, pollID, userID string) (bool, error) {
	return hasVoted(ctx, s.db, pollID, userID)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasVoted(ctx context.Context, q rowQuerier, pollID, userID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vote WHERE poll_id = $1 AND user_id = $2
	`, pollID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return count > 0, nil
}

// PollSource loads polls with their questions and answers.
type PollSource interface {
	Get(ctx context.Context, id string) (*models.Poll, error)
}

// Engine casts votes and computes results.
type Engine struct {
	db       *sql.DB
	polls    PollSource
	votes    *Store
	checker  *eligibility.Checker
	profiles ProfileLoader
	metrics  *metrics.Metrics
}

func NewEngine(conn *sql.DB, polls PollSource, votes *Store, checker *eligibility.Checker, profiles ProfileLoader, m *metrics.Metrics) *Engine {
	return &Engine{db: conn, polls: polls, votes: votes, checker: checker, profiles: profiles, metrics: m}
}

func (e *Engine) HasVoted(ctx context.Context, pollID, userID string) (bool, error) {
	return e.votes.HasVoted(ctx, pollID, userID)
}

// Cast records one vote per question of the poll for userID. answers
// maps question IDs to answer IDs and must cover every question.
func (e *Engine) Cast(ctx context.Context, pollID, userID string, answers map[string]string, anonymous bool) error {
	err := e.cast(ctx, pollID, userID, answers, anonymous)

	result := "ok"
	if re, ok := models.ReasonOf(err); ok {
		result = string(re.Reason)
	} else if err != nil {
		result = "error"
	}
	e.metrics.VoteCast(result)

	return err
}

func (e *Engine) cast(ctx context.Context, pollID, userID string, answers map[string]string, anonymous bool) error {
	poll, err := e.polls.Get(ctx, pollID)
	if err != nil {
		return err
	}

	subject := eligibility.PollSubject(poll)
	if !e.checker.IsOpen(subject) {
		return models.ErrPollNotActive
	}

	res, err := e.checker.CanParticipate(ctx, userID, subject)
	if err != nil {
		return fmt.Errorf("failed to check eligibility: %w", err)
	}
	if !res.Eligible {
		return res.Err()
	}

	if err := checkBallot(poll, answers); err != nil {
		return err
	}

	now := e.checker.Now()
	err = db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		voted, err := hasVoted(ctx, tx, pollID, userID)
		if err != nil {
			return err
		}
		if voted {
			return models.ErrAlreadyVoted
		}

		for _, q := range poll.Questions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO vote (poll_id, question_id, answer_id, user_id, is_anonymous, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, pollID, q.ID, answers[q.ID], userID, anonymous, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, models.ErrAlreadyVoted) || db.IsUniqueViolation(err) {
		return models.ErrAlreadyVoted
	}
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}

	slog.Info("vote cast", "poll_id", pollID, "questions", len(poll.Questions), "anonymous", anonymous)
	return nil
}

// checkBallot verifies that answers covers exactly the poll's questions
// and that every answer belongs to its question.
func checkBallot(poll *models.Poll, answers map[string]string) error {
	questions := make(map[string]*models.Question, len(poll.Questions))
	for i := range poll.Questions {
		q := &poll.Questions[i]
		questions[q.ID] = q
		if _, ok := answers[q.ID]; !ok {
			return models.ErrMissingAnswer
		}
	}

	for questionID := range answers {
		if _, ok := questions[questionID]; !ok {
			return models.ErrInvalidQuestion
		}
	}

	for questionID, answerID := range answers {
		found := false
		for _, a := range questions[questionID].Answers {
			if a.ID == answerID {
				found = true
				break
			}
		}
		if !found {
			return models.ErrInvalidAnswer
		}
	}
	return nil
}
