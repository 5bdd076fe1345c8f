// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/orgvote/auth"
	"github.com/danielhkuo/orgvote/clock"
	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/models"
)

const (
	minAnswers = 2
	maxAnswers = 11

	duplicateWindow = 7 * 24 * time.Hour
)

// Polls stores polls with their questions, answers and target groups.
type Polls struct {
	db           *sql.DB
	groups       GroupChecker
	clock        clock.Clock
	validate     *Validator
	abstainLabel string
}

func NewPolls(conn *sql.DB, groups GroupChecker, clk clock.Clock, v *Validator, abstainLabel string) *Polls {
	return &Polls{db: conn, groups: groups, clock: clk, validate: v, abstainLabel: abstainLabel}
}

// Create validates in and stores it as a new draft poll.
func (r *Polls) Create(ctx context.Context, in models.PollInput, createdBy string) (*models.Poll, error) {
	in, err := r.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	id, err := r.insert(ctx, in, createdBy)
	if err != nil {
		return nil, err
	}

	slog.Info("poll created", "poll_id", id, "questions", len(in.Questions), "created_by", createdBy)
	return r.Get(ctx, id)
}

// prepare validates in and fills in missing abstain answers.
func (r *Polls) prepare(ctx context.Context, in models.PollInput) (models.PollInput, error) {
	errs := []error{r.validate.Struct(in)}

	questions := make([]models.QuestionInput, len(in.Questions))
	for i, q := range in.Questions {
		answers, err := normalizeAnswers(q.Answers, r.abstainLabel, fmt.Sprintf("questions[%d].answers", i))
		errs = append(errs, err)
		questions[i] = models.QuestionInput{Text: q.Text, Answers: answers}
	}
	in.Questions = questions

	errs = append(errs, checkGroups(ctx, r.groups, in.TargetGroups))
	return in, mergeFields(errs...)
}

// normalizeAnswers enforces 2-11 regular answers followed by exactly one
// abstain answer, appending one labelled label when none was given.
func normalizeAnswers(answers []models.AnswerInput, label, field string) ([]models.AnswerInput, error) {
	abstains, abstainAt := 0, -1
	for i, a := range answers {
		if a.IsAbstain {
			abstains++
			abstainAt = i
		}
	}

	switch {
	case abstains > 1:
		return nil, models.ValidationError(map[string]string{field: "only one abstain answer is allowed"})
	case abstains == 1 && abstainAt != len(answers)-1:
		return nil, models.ValidationError(map[string]string{field: "the abstain answer must be last"})
	}

	if regular := len(answers) - abstains; regular < minAnswers || regular > maxAnswers {
		return nil, models.ValidationError(map[string]string{
			field: fmt.Sprintf("must have between %d and %d answers besides abstain", minAnswers, maxAnswers),
		})
	}

	out := make([]models.AnswerInput, 0, len(answers)+1)
	out = append(out, answers...)
	if abstains == 0 {
		out = append(out, models.AnswerInput{Text: label, IsAbstain: true})
	}
	return out, nil
}

func (r *Polls) insert(ctx context.Context, in models.PollInput, createdBy string) (string, error) {
	id, err := auth.GenerateID(16)
	if err != nil {
		return "", err
	}
	now := r.clock.Now()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO poll (id, title, description, status, starts_at, ends_at, notify, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		`, id, in.Title, in.Description, models.StatusDraft, in.StartsAt.UTC(), in.EndsAt.UTC(), in.Notify, createdBy, now)
		if err != nil {
			return fmt.Errorf("failed to insert poll: %w", err)
		}

		if err := insertTargets(ctx, tx, "poll_target", "poll_id", id, in.TargetGroups); err != nil {
			return err
		}
		return insertQuestions(ctx, tx, id, in.Questions)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func insertQuestions(ctx context.Context, tx *sql.Tx, pollID string, questions []models.QuestionInput) error {
	for qi, q := range questions {
		questionID, err := auth.GenerateID(12)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO poll_question (id, poll_id, text, sort_order) VALUES ($1, $2, $3, $4)
		`, questionID, pollID, q.Text, qi); err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}

		for ai, a := range q.Answers {
			answerID, err := auth.GenerateID(12)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO poll_answer (id, question_id, text, sort_order, is_abstain) VALUES ($1, $2, $3, $4, $5)
			`, answerID, questionID, a.Text, ai, a.IsAbstain); err != nil {
				return fmt.Errorf("failed to insert answer: %w", err)
			}
		}
	}
	return nil
}

// deleteQuestions removes votes, answers and questions of a poll, children first.
func deleteQuestions(ctx context.Context, tx *sql.Tx, pollID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM vote WHERE poll_id = $1`, pollID); err != nil {
		return fmt.Errorf("failed to delete votes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM poll_answer WHERE question_id IN (SELECT id FROM poll_question WHERE poll_id = $1)
	`, pollID); err != nil {
		return fmt.Errorf("failed to delete answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM poll_question WHERE poll_id = $1`, pollID); err != nil {
		return fmt.Errorf("failed to delete questions: %w", err)
	}
	return nil
}

const pollColumns = `id, title, description, status, starts_at, ends_at, notify, created_by, created_at, updated_at`

func scanPoll(s scanner) (*models.Poll, error) {
	var p models.Poll
	err := s.Scan(&p.ID, &p.Title, &p.Description, &p.Status, &p.StartsAt, &p.EndsAt,
		&p.Notify, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.StartsAt, p.EndsAt = p.StartsAt.UTC(), p.EndsAt.UTC()
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return &p, nil
}

// Get returns a poll with its questions and answers in sort order.
func (r *Polls) Get(ctx context.Context, id string) (*models.Poll, error) {
	p, err := scanPoll(r.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM poll WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query poll: %w", err)
	}

	targets, err := loadTargets(ctx, r.db, "poll_target", "poll_id", []string{id})
	if err != nil {
		return nil, err
	}
	p.TargetGroups = orEmpty(targets[id])

	if p.Questions, err = r.loadQuestions(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Polls) loadQuestions(ctx context.Context, pollID string) ([]models.Question, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, poll_id, text, sort_order FROM poll_question
		WHERE poll_id = $1 ORDER BY sort_order
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}

	questions := []models.Question{}
	index := make(map[string]int)
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.PollID, &q.Text, &q.SortOrder); err != nil {
			rows.Close()
			return nil, err
		}
		q.Answers = []models.Answer{}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT a.id, a.question_id, a.text, a.sort_order, a.is_abstain
		FROM poll_answer a
		JOIN poll_question q ON q.id = a.question_id
		WHERE q.poll_id = $1
		ORDER BY a.sort_order
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.SortOrder, &a.IsAbstain); err != nil {
			return nil, err
		}
		if i, ok := index[a.QuestionID]; ok {
			questions[i].Answers = append(questions[i].Answers, a)
		}
	}
	return questions, rows.Err()
}

// List returns polls without questions, newest first.
func (r *Polls) List(ctx context.Context, opts ListOptions) (*models.PollList, error) {
	opts = opts.normalize()
	list := &models.PollList{Page: opts.Page, PerPage: opts.PerPage, Polls: []models.Poll{}}

	where, args, limit := opts.filter()
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM poll WHERE `+where, args...).Scan(&list.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count polls: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+pollColumns+` FROM poll
		WHERE `+where+`
		ORDER BY created_at DESC, id
		`+limit, append(args, opts.PerPage, opts.offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}

	var ids []string
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list.Polls = append(list.Polls, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	targets, err := loadTargets(ctx, r.db, "poll_target", "poll_id", ids)
	if err != nil {
		return nil, err
	}
	for i := range list.Polls {
		list.Polls[i].TargetGroups = orEmpty(targets[list.Polls[i].ID])
	}
	return list, nil
}

func questionInputs(questions []models.Question) []models.QuestionInput {
	out := make([]models.QuestionInput, len(questions))
	for i, q := range questions {
		answers := make([]models.AnswerInput, len(q.Answers))
		for j, a := range q.Answers {
			answers[j] = models.AnswerInput{Text: a.Text, IsAbstain: a.IsAbstain}
		}
		out[i] = models.QuestionInput{Text: q.Text, Answers: answers}
	}
	return out
}

// Update applies patch to a draft poll. A non-nil patch.Questions
// replaces the whole question and answer subtree.
func (r *Polls) Update(ctx context.Context, id string, patch models.PollPatch) (*models.Poll, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != models.StatusDraft {
		return nil, models.ErrNotEditable
	}

	in := models.PollInput{
		Title:        cur.Title,
		Description:  cur.Description,
		StartsAt:     cur.StartsAt,
		EndsAt:       cur.EndsAt,
		TargetGroups: cur.TargetGroups,
		Notify:       cur.Notify,
		Questions:    questionInputs(cur.Questions),
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
	if patch.Notify != nil {
		in.Notify = *patch.Notify
	}
	if patch.Questions != nil {
		in.Questions = patch.Questions
	}

	if in, err = r.prepare(ctx, in); err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE poll SET title = $1, description = $2, starts_at = $3, ends_at = $4, notify = $5, updated_at = $6
			WHERE id = $7 AND status = $8
		`, in.Title, in.Description, in.StartsAt.UTC(), in.EndsAt.UTC(), in.Notify, r.clock.Now(), id, models.StatusDraft)
		if err != nil {
			return fmt.Errorf("failed to update poll: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return models.ErrNotEditable
		}

		if patch.TargetGroups != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM poll_target WHERE poll_id = $1`, id); err != nil {
				return fmt.Errorf("failed to clear targets: %w", err)
			}
			if err := insertTargets(ctx, tx, "poll_target", "poll_id", id, in.TargetGroups); err != nil {
				return err
			}
		}

		if patch.Questions != nil {
			if err := deleteQuestions(ctx, tx, id); err != nil {
				return err
			}
			if err := insertQuestions(ctx, tx, id, in.Questions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("poll updated", "poll_id", id, "questions_replaced", patch.Questions != nil)
	return r.Get(ctx, id)
}

// Delete removes a poll and everything it owns in one transaction.
func (r *Polls) Delete(ctx context.Context, id string) error {
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var found string
		err := tx.QueryRowContext(ctx, `SELECT id FROM poll WHERE id = $1`, id).Scan(&found)
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query poll: %w", err)
		}

		if err := deleteQuestions(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM poll_target WHERE poll_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete targets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM poll WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete poll: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("poll deleted", "poll_id", id)
	return nil
}

// Duplicate copies a poll into a new draft that starts now and runs for
// a week. Votes are not copied.
func (r *Polls) Duplicate(ctx context.Context, id, createdBy string) (*models.Poll, error) {
	src, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(src.Questions) == 0 {
		return nil, models.ErrNoQuestions
	}

	now := r.clock.Now()
	newID, err := r.insert(ctx, models.PollInput{
		Title:        src.Title,
		Description:  src.Description,
		StartsAt:     now,
		EndsAt:       now.Add(duplicateWindow),
		TargetGroups: src.TargetGroups,
		Notify:       src.Notify,
		Questions:    questionInputs(src.Questions),
	}, createdBy)
	if err != nil {
		return nil, err
	}

	slog.Info("poll duplicated", "source_id", id, "poll_id", newID)
	return r.Get(ctx, newID)
}

// Publish opens a draft poll for voting.
func (r *Polls) Publish(ctx context.Context, id string) (*models.Poll, error) {
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

	slog.Info("poll published", "poll_id", id)
	return r.Get(ctx, id)
}

// Close stops voting on an open poll.
func (r *Polls) Close(ctx context.Context, id string) (*models.Poll, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != models.StatusOpen {
		return nil, models.ErrPollNotActive
	}

	if err := r.transition(ctx, id, models.StatusOpen, models.StatusClosed, models.ErrPollNotActive); err != nil {
		return nil, err
	}

	slog.Info("poll closed", "poll_id", id)
	return r.Get(ctx, id)
}

func (r *Polls) transition(ctx context.Context, id, from, to string, conflict error) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE poll SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4
	`, to, r.clock.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update poll status: %w", err)
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
