// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/models"
)

// Tally counts the votes of a poll. Eligible users who did not vote are
// added to each question's abstain answer.
func (e *Engine) Tally(ctx context.Context, pollID string) (*models.Tally, error) {
	poll, err := e.polls.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}

	population, err := e.checker.Population(ctx, eligibility.PollSubject(poll))
	if err != nil {
		return nil, fmt.Errorf("failed to compute eligible population: %w", err)
	}

	var voters int
	err = e.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM vote WHERE poll_id = $1
	`, pollID).Scan(&voters)
	if err != nil {
		return nil, fmt.Errorf("failed to count voters: %w", err)
	}

	counts, err := e.answerCounts(ctx, pollID)
	if err != nil {
		return nil, err
	}

	return buildTally(poll, len(population), voters, counts), nil
}

func (e *Engine) answerCounts(ctx context.Context, pollID string) (map[string]int, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT answer_id, COUNT(*) FROM vote WHERE poll_id = $1 GROUP BY answer_id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var answerID string
		var n int
		if err := rows.Scan(&answerID, &n); err != nil {
			return nil, err
		}
		counts[answerID] = n
	}
	return counts, rows.Err()
}

// buildTally folds non-voters into the abstain answers and computes
// percentages rounded to one decimal place.
func buildTally(poll *models.Poll, eligible, voters int, counts map[string]int) *models.Tally {
	nonVoters := max(0, eligible-voters)

	t := &models.Tally{
		PollID:        poll.ID,
		TotalEligible: eligible,
		TotalVoters:   voters,
		NonVoters:     nonVoters,
		Questions:     make([]models.QuestionTally, 0, len(poll.Questions)),
	}

	for _, q := range poll.Questions {
		qt := models.QuestionTally{
			QuestionID: q.ID,
			Text:       q.Text,
			Answers:    make([]models.AnswerCount, 0, len(q.Answers)),
		}
		for _, a := range q.Answers {
			n := counts[a.ID]
			if a.IsAbstain {
				n += nonVoters
			}
			qt.Total += n
			qt.Answers = append(qt.Answers, models.AnswerCount{
				AnswerID:  a.ID,
				Text:      a.Text,
				IsAbstain: a.IsAbstain,
				Count:     n,
			})
		}
		for i := range qt.Answers {
			qt.Answers[i].Percentage = percentage(qt.Answers[i].Count, qt.Total)
		}
		t.Questions = append(t.Questions, qt)
	}
	return t
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(count)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		InexactFloat64()
}
