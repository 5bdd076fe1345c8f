// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package eligibility

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/danielhkuo/orgvote/clock"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/profile"
)

// Subject is the poll or survey a user wants to take part in.
type Subject struct {
	Kind         string
	ID           string
	Status       string
	StartsAt     time.Time
	EndsAt       time.Time
	TargetGroups []string
}

func PollSubject(p *models.Poll) Subject {
	return Subject{
		Kind:         models.KindPoll,
		ID:           p.ID,
		Status:       p.Status,
		StartsAt:     p.StartsAt,
		EndsAt:       p.EndsAt,
		TargetGroups: p.TargetGroups,
	}
}

func SurveySubject(s *models.Survey) Subject {
	return Subject{
		Kind:         models.KindSurvey,
		ID:           s.ID,
		Status:       s.Status,
		StartsAt:     s.StartsAt,
		EndsAt:       s.EndsAt,
		TargetGroups: s.TargetGroups,
	}
}

// Result is the outcome of a participation check. Ineligibility is a
// normal result, not an error.
type Result struct {
	Eligible      bool
	Reason        models.Reason
	MissingFields []string
}

// Err converts an ineligible result into a ReasonError.
func (r Result) Err() error {
	if r.Eligible {
		return nil
	}
	err := models.NewReasonError(r.Reason)
	err.MissingFields = r.MissingFields
	return err
}

type ProfileSource interface {
	Load(ctx context.Context, userID string) (*profile.Profile, error)
	CompleteUsers(ctx context.Context, registeredBy time.Time) ([]string, error)
}

type GroupSource interface {
	IsMemberOfAny(ctx context.Context, userID string, groupIDs []string) (bool, error)
	Members(ctx context.Context, groupIDs []string) ([]string, error)
}

type VoteLookup interface {
	HasVoted(ctx context.Context, pollID, userID string) (bool, error)
}

type Checker struct {
	profiles ProfileSource
	groups   GroupSource
	votes    VoteLookup
	clock    clock.Clock
}

func NewChecker(profiles ProfileSource, groups GroupSource, votes VoteLookup, clk clock.Clock) *Checker {
	return &Checker{profiles: profiles, groups: groups, votes: votes, clock: clk}
}

func deny(reason models.Reason) Result {
	return Result{Reason: reason}
}

// CanParticipate runs the participation checks in order and reports the
// first failure.
func (c *Checker) CanParticipate(ctx context.Context, userID string, subject Subject) (Result, error) {
	if userID == "" {
		return deny(models.ReasonNotLoggedIn), nil
	}

	p, err := c.profiles.Load(ctx, userID)
	if errors.Is(err, profile.ErrUserNotFound) {
		return deny(models.ReasonNotLoggedIn), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to load profile: %w", err)
	}

	if missing := p.Missing(profile.RequiredFields); len(missing) > 0 {
		return Result{Reason: models.ReasonIncompleteProfile, MissingFields: missing}, nil
	}

	if len(subject.TargetGroups) > 0 {
		ok, err := c.groups.IsMemberOfAny(ctx, userID, subject.TargetGroups)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return deny(models.ReasonWrongGroup), nil
		}
	}

	if !c.IsOpen(subject) {
		if subject.Kind == models.KindSurvey {
			return deny(models.ReasonSurveyClosed), nil
		}
		return deny(models.ReasonPollNotActive), nil
	}

	if subject.Kind == models.KindPoll && c.votes != nil {
		voted, err := c.votes.HasVoted(ctx, subject.ID, userID)
		if err != nil {
			return Result{}, err
		}
		if voted {
			return deny(models.ReasonAlreadyVoted), nil
		}
	}

	return Result{Eligible: true}, nil
}

// Now returns the organizational time used for window checks.
func (c *Checker) Now() time.Time {
	return c.clock.Now()
}

// IsOpen reports whether the subject is open and now lies in its window.
func (c *Checker) IsOpen(subject Subject) bool {
	return subject.Status == models.StatusOpen &&
		clock.InWindow(c.clock.Now(), subject.StartsAt, subject.EndsAt)
}

// IsEnded reports whether the subject is closed or past its end.
func (c *Checker) IsEnded(subject Subject) bool {
	return subject.Status == models.StatusClosed || c.clock.Now().After(subject.EndsAt)
}

// Population returns the sorted IDs of users eligible for subject:
// profile complete, registered no later than its end, and a member of
// one of its target groups when it has any.
func (c *Checker) Population(ctx context.Context, subject Subject) ([]string, error) {
	complete, err := c.profiles.CompleteUsers(ctx, subject.EndsAt)
	if err != nil {
		return nil, err
	}
	if len(subject.TargetGroups) == 0 {
		return complete, nil
	}

	members, err := c.groups.Members(ctx, subject.TargetGroups)
	if err != nil {
		return nil, err
	}

	var eligible []string
	for _, id := range complete {
		if _, ok := slices.BinarySearch(members, id); ok {
			eligible = append(eligible, id)
		}
	}
	return eligible, nil
}
