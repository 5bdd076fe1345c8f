// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package surveys

import (
	"context"
	"fmt"
	"math"

	"github.com/danielhkuo/orgvote/anonymize"
	"github.com/danielhkuo/orgvote/models"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Submissions pages through ready responses. The public view shows only
// responses moderated as not spam, with redacted nicknames and
// sensitive profile-bound answers masked. The admin view shows every
// ready response with its moderation state, full name and redacted email.
func (s *Service) Submissions(ctx context.Context, surveyID string, view anonymize.View, page, perPage int) (*models.SubmissionPage, error) {
	survey, err := s.surveys.Get(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	if perPage < 1 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)
	page = min(max(page, 1), math.MaxInt/perPage)

	where := `survey_id = $1 AND status = $2`
	args := []any{surveyID, models.ResponseReady}
	if view == anonymize.Public {
		where += ` AND spam_status = $3`
		args = append(args, models.SpamNotSpam)
	}

	out := &models.SubmissionPage{Page: page, PerPage: perPage, Entries: []models.Submission{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM survey_response WHERE `+where, args...).Scan(&out.Total); err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	n := len(args)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, spam_status, first_name, last_name, nickname, email, updated_at
		FROM survey_response WHERE %s
		ORDER BY updated_at DESC, id
		LIMIT $%d OFFSET $%d
	`, where, n+1, n+2), append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}

	var ids []string
	for rows.Next() {
		var sub models.Submission
		var id anonymize.Identity
		if err := rows.Scan(&sub.ResponseID, &sub.SpamStatus, &id.FirstName, &id.LastName, &id.Nickname, &id.Email, &sub.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		sub.Respondent = anonymize.Entry(view, id)
		ids = append(ids, sub.ResponseID)
		out.Entries = append(out.Entries, sub)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	answers, err := s.loadAnswers(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range out.Entries {
		sub := &out.Entries[i]
		values := answers[sub.ResponseID]
		sub.Answers = make([]models.SubmissionAnswer, 0, len(survey.Questions))
		for _, q := range survey.Questions {
			v := values[q.ID]
			if view == anonymize.Public && q.ProfileField != "" {
				v = anonymize.Field(v, s.profiles.IsSensitive(q.ProfileField))
			}
			sub.Answers = append(sub.Answers, models.SubmissionAnswer{QuestionID: q.ID, Question: q.Text, Value: v})
		}
		if view == anonymize.Public {
			sub.ResponseID = ""
			sub.SpamStatus = ""
		}
	}
	return out, nil
}

// Stats counts responses by status and moderation state. Counted is the
// number of ready responses not marked as spam.
func (s *Service) Stats(ctx context.Context, surveyID string) (*models.SurveyStats, error) {
	if _, err := s.surveys.Get(ctx, surveyID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, spam_status, COUNT(*) FROM survey_response
		WHERE survey_id = $1 GROUP BY status, spam_status
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := &models.SurveyStats{SurveyID: surveyID}
	for rows.Next() {
		var status, spam string
		var n int
		if err := rows.Scan(&status, &spam, &n); err != nil {
			return nil, err
		}
		if status == models.ResponseDraft {
			stats.Draft += n
			continue
		}
		stats.Ready += n
		switch spam {
		case models.SpamSpam:
			stats.Spam += n
		case models.SpamNotSpam:
			stats.NotSpam += n
		default:
			stats.Pending += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.Counted = stats.Ready - stats.Spam
	return stats, nil
}
