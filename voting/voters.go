// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"fmt"
	"math"

	"github.com/danielhkuo/orgvote/anonymize"
	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/profile"
)

// DefaultPerPage is the listing page size when none is requested.
const DefaultPerPage = 100

const maxPerPage = 500

// ProfileLoader loads profiles in bulk for listings.
type ProfileLoader interface {
	LoadMany(ctx context.Context, userIDs []string) (map[string]*profile.Profile, error)
}

type voter struct {
	userID    string
	anonymous bool
}

// Voters lists the users who voted on a poll in the order they voted,
// rendered under view.
func (e *Engine) Voters(ctx context.Context, pollID string, view anonymize.View, page, perPage int) (models.VoterPage, error) {
	if _, err := e.polls.Get(ctx, pollID); err != nil {
		return models.VoterPage{}, err
	}

	voters, err := e.listVoters(ctx, pollID)
	if err != nil {
		return models.VoterPage{}, err
	}
	return e.render(ctx, voters, view, page, perPage)
}

// NonVoters lists eligible users who have not voted, ordered by user ID.
func (e *Engine) NonVoters(ctx context.Context, pollID string, view anonymize.View, page, perPage int) (models.VoterPage, error) {
	poll, err := e.polls.Get(ctx, pollID)
	if err != nil {
		return models.VoterPage{}, err
	}

	population, err := e.checker.Population(ctx, eligibility.PollSubject(poll))
	if err != nil {
		return models.VoterPage{}, fmt.Errorf("failed to compute eligible population: %w", err)
	}

	voted, err := e.listVoters(ctx, pollID)
	if err != nil {
		return models.VoterPage{}, err
	}
	seen := make(map[string]bool, len(voted))
	for _, v := range voted {
		seen[v.userID] = true
	}

	var missing []voter
	for _, id := range population {
		if !seen[id] {
			missing = append(missing, voter{userID: id})
		}
	}
	return e.render(ctx, missing, view, page, perPage)
}

func (e *Engine) listVoters(ctx context.Context, pollID string) ([]voter, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT user_id, MAX(CASE WHEN is_anonymous THEN 1 ELSE 0 END), MIN(created_at)
		FROM vote WHERE poll_id = $1
		GROUP BY user_id
		ORDER BY MIN(created_at), user_id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voters: %w", err)
	}
	defer rows.Close()

	var voters []voter
	for rows.Next() {
		var v voter
		var anon int
		var first any
		if err := rows.Scan(&v.userID, &anon, &first); err != nil {
			return nil, err
		}
		v.anonymous = anon == 1
		voters = append(voters, v)
	}
	return voters, rows.Err()
}

// Page normalizes listing page parameters. page is capped so that the
// offset (page-1)*perPage cannot overflow.
func Page(page, perPage int) (int, int) {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	page = min(max(page, 1), math.MaxInt/perPage)
	return page, perPage
}

func (e *Engine) render(ctx context.Context, all []voter, view anonymize.View, page, perPage int) (models.VoterPage, error) {
	page, perPage = Page(page, perPage)
	out := models.VoterPage{Page: page, PerPage: perPage, Total: len(all), Entries: []models.VoterEntry{}}

	start := (page - 1) * perPage
	if start >= len(all) {
		return out, nil
	}
	slice := all[start:min(start+perPage, len(all))]

	ids := make([]string, len(slice))
	for i, v := range slice {
		ids[i] = v.userID
	}
	profiles, err := e.profiles.LoadMany(ctx, ids)
	if err != nil {
		return models.VoterPage{}, err
	}

	for _, v := range slice {
		id := anonymize.Identity{Anonymous: v.anonymous}
		if p, ok := profiles[v.userID]; ok {
			id.Nickname = p.Value(profile.Nickname)
			id.FirstName = p.Value(profile.FirstName)
			id.LastName = p.Value(profile.LastName)
			id.Email = p.Value(profile.Email)
		}
		out.Entries = append(out.Entries, anonymize.Entry(view, id))
	}
	return out, nil
}
