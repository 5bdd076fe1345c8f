// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"

	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/mail"
	"github.com/danielhkuo/orgvote/metrics"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/profile"
)

// Batch sizes per kind
const (
	GroupSyncBatch  = 20
	InvitationBatch = 50
)

// CityProfiles lists city values and the users that carry them.
type CityProfiles interface {
	DistinctValues(ctx context.Context, logical string) ([]string, error)
	UsersWithValue(ctx context.Context, logical, value string) ([]string, error)
}

// CitySyncer replaces the membership of a city group.
type CitySyncer interface {
	SyncCity(ctx context.Context, name string, userIDs []string) (string, error)
}

// GroupSync keeps one city group per distinct profile city.
type GroupSync struct {
	profiles CityProfiles
	groups   CitySyncer
}

func NewGroupSync(profiles CityProfiles, groups CitySyncer) *GroupSync {
	return &GroupSync{profiles: profiles, groups: groups}
}

func (g *GroupSync) BatchSize() int { return GroupSyncBatch }

func (g *GroupSync) Count(ctx context.Context, params map[string]any) (int, error) {
	cities, err := g.profiles.DistinctValues(ctx, profile.City)
	if err != nil {
		return 0, err
	}
	return len(cities), nil
}

func (g *GroupSync) Run(ctx context.Context, params map[string]any, offset, limit int) ([]Result, error) {
	cities, err := g.profiles.DistinctValues(ctx, profile.City)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, city := range window(cities, offset, limit) {
		users, err := g.profiles.UsersWithValue(ctx, profile.City, city)
		if err != nil {
			return nil, err
		}
		if _, err := g.groups.SyncCity(ctx, city, users); err != nil {
			return nil, fmt.Errorf("failed to sync %q: %w", city, err)
		}
		results = append(results, Result{Key: city, OK: true})
	}
	return results, nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	return items[offset:min(offset+limit, len(items))]
}

// PollGetter loads a poll.
type PollGetter interface {
	Get(ctx context.Context, id string) (*models.Poll, error)
}

// SurveyGetter loads a survey.
type SurveyGetter interface {
	Get(ctx context.Context, id string) (*models.Survey, error)
}

// ProfileLoader loads profiles in bulk.
type ProfileLoader interface {
	LoadMany(ctx context.Context, userIDs []string) (map[string]*profile.Profile, error)
}

type invitationParams struct {
	PollID   string `mapstructure:"poll_id"`
	SurveyID string `mapstructure:"survey_id"`
}

type invitation struct {
	kind    string
	id      string
	title   string
	endsAt  time.Time
	subject eligibility.Subject
}

type recipient struct {
	userID string
	email  string
}

// Invitations mails every eligible user of a poll or survey.
type Invitations struct {
	polls    PollGetter
	surveys  SurveyGetter
	checker  *eligibility.Checker
	profiles ProfileLoader
	sender   mail.Sender
	siteURL  string
	metrics  *metrics.Metrics

	// sendTimeout bounds each delivery so a batch fits in its lease.
	sendTimeout time.Duration
}

func NewInvitations(polls PollGetter, surveys SurveyGetter, checker *eligibility.Checker, profiles ProfileLoader, sender mail.Sender, siteURL string, m *metrics.Metrics) *Invitations {
	return &Invitations{
		polls:    polls,
		surveys:  surveys,
		checker:  checker,
		profiles: profiles,
		sender:   sender,
		siteURL:  strings.TrimRight(siteURL, "/"),
		metrics:  m,

		sendTimeout: UnitTimeout,
	}
}

func (inv *Invitations) BatchSize() int { return InvitationBatch }

func (inv *Invitations) target(ctx context.Context, params map[string]any) (*invitation, error) {
	var p invitationParams
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(params); err != nil {
		return nil, models.ValidationError(map[string]string{"params": err.Error()})
	}

	switch {
	case p.PollID != "" && p.SurveyID != "":
		return nil, models.ValidationError(map[string]string{"params": "set only one of poll_id, survey_id"})
	case p.PollID != "":
		poll, err := inv.polls.Get(ctx, p.PollID)
		if err != nil {
			return nil, err
		}
		return &invitation{models.KindPoll, poll.ID, poll.Title, poll.EndsAt, eligibility.PollSubject(poll)}, nil
	case p.SurveyID != "":
		survey, err := inv.surveys.Get(ctx, p.SurveyID)
		if err != nil {
			return nil, err
		}
		return &invitation{models.KindSurvey, survey.ID, survey.Title, survey.EndsAt, eligibility.SurveySubject(survey)}, nil
	default:
		return nil, models.ValidationError(map[string]string{"params": "poll_id or survey_id is required"})
	}
}

// recipients returns eligible users with an email, ordered by user ID.
func (inv *Invitations) recipients(ctx context.Context, t *invitation) ([]recipient, error) {
	ids, err := inv.checker.Population(ctx, t.subject)
	if err != nil {
		return nil, err
	}
	profiles, err := inv.profiles.LoadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]recipient, 0, len(ids))
	for _, id := range ids {
		p, ok := profiles[id]
		if !ok {
			continue
		}
		if email := p.Value(profile.Email); email != "" {
			out = append(out, recipient{userID: id, email: email})
		}
	}
	return out, nil
}

func (inv *Invitations) Count(ctx context.Context, params map[string]any) (int, error) {
	t, err := inv.target(ctx, params)
	if err != nil {
		return 0, err
	}
	all, err := inv.recipients(ctx, t)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (inv *Invitations) Run(ctx context.Context, params map[string]any, offset, limit int) ([]Result, error) {
	t, err := inv.target(ctx, params)
	if err != nil {
		return nil, err
	}
	all, err := inv.recipients(ctx, t)
	if err != nil {
		return nil, err
	}

	msg := inv.message(t)
	var results []Result
	for _, r := range window(all, offset, limit) {
		msg.To = r.email
		res := Result{Key: r.userID, OK: true}
		if err := inv.send(ctx, msg); err != nil {
			slog.Warn("invitation not sent", "user_id", r.userID, "error", err)
			res.OK = false
			res.Error = err.Error()
			inv.metrics.MailSent("error")
		} else {
			inv.metrics.MailSent("ok")
		}
		results = append(results, res)
	}
	return results, nil
}

func (inv *Invitations) send(ctx context.Context, msg mail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, inv.sendTimeout)
	defer cancel()
	return inv.sender.Send(ctx, msg)
}

func (inv *Invitations) message(t *invitation) mail.Message {
	now := inv.checker.Now()
	noun := "Voting"
	if t.kind == models.KindSurvey {
		noun = "The survey"
	}
	body := fmt.Sprintf("%s is open: %s\n\nIt closes %s (%s).\n\n%s/%ss/%s\n",
		noun, t.title,
		t.endsAt.UTC().Format("2 Jan 2006 15:04 MST"),
		humanize.RelTime(t.endsAt, now, "ago", "from now"),
		inv.siteURL, t.kind, t.id)
	return mail.Message{Subject: "Invitation: " + t.title, Body: body}
}
