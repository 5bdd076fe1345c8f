// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"

	"github.com/danielhkuo/orgvote/auth"
	"github.com/danielhkuo/orgvote/cliparse"
	"github.com/danielhkuo/orgvote/clock"
	"github.com/danielhkuo/orgvote/eligibility"
	"github.com/danielhkuo/orgvote/groups"
	"github.com/danielhkuo/orgvote/jobs"
	"github.com/danielhkuo/orgvote/mail"
	"github.com/danielhkuo/orgvote/metrics"
	"github.com/danielhkuo/orgvote/profile"
	"github.com/danielhkuo/orgvote/repository"
	"github.com/danielhkuo/orgvote/surveys"
	"github.com/danielhkuo/orgvote/voting"
)

// Options carries the collaborators main picks at startup. Zero values
// fall back to the offset clock from config, an in-memory job store and
// the mail sender chosen by config.
type Options struct {
	Clock    clock.Clock
	JobStore jobs.Store
	Mailer   mail.Sender
	Metrics  *metrics.Metrics
}

// Services wires every domain component once, shared by all handlers.
// Runner is nil unless JOB_WORKERS is set; the caller starts it.
type Services struct {
	DB        *sql.DB
	Config    cliparse.Config
	Clock     clock.Clock
	Identity  *auth.Identity
	Metrics   *metrics.Metrics
	Validator *repository.Validator

	Profiles  *profile.Store
	Groups    *groups.Store
	Checker   *eligibility.Checker
	Polls     *repository.Polls
	Surveys   *repository.Surveys
	Voting    *voting.Engine
	Responses *surveys.Service
	Jobs      *jobs.Processor
	Runner    *jobs.Runner
}

func NewServices(conn *sql.DB, cfg cliparse.Config, opts Options) *Services {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New(cfg.ClockOffset)
	}
	store := opts.JobStore
	if store == nil {
		store = jobs.NewMemoryStore()
	}
	sender := opts.Mailer
	if sender == nil {
		sender = mail.NewSender(cfg)
	}

	fields := profile.NewFieldMap(cfg.ProfileFields, cfg.SensitiveFields)
	profiles := profile.NewStore(conn, fields)
	groupStore := groups.NewStore(conn)
	votes := voting.NewStore(conn)
	checker := eligibility.NewChecker(profiles, groupStore, votes, clk)
	v := repository.NewValidator()

	polls := repository.NewPolls(conn, groupStore, clk, v, cfg.AbstainLabel)
	surveyRepo := repository.NewSurveys(conn, groupStore, fields, clk, v)

	proc := jobs.NewProcessor(store, cfg.JobTTL, clk, opts.Metrics)
	proc.Register(jobs.KindGroupSync, jobs.NewGroupSync(profiles, groupStore))
	proc.Register(jobs.KindInvitation, jobs.NewInvitations(polls, surveyRepo, checker, profiles, sender, cfg.SiteURL, opts.Metrics))

	var runner *jobs.Runner
	if cfg.JobWorkers > 0 {
		runner = jobs.NewRunner(proc, cfg.JobWorkers, cfg.MailDelay)
	}

	return &Services{
		DB:        conn,
		Config:    cfg,
		Clock:     clk,
		Identity:  auth.NewIdentity(cfg.IdentitySecret),
		Metrics:   opts.Metrics,
		Validator: v,
		Profiles:  profiles,
		Groups:    groupStore,
		Checker:   checker,
		Polls:     polls,
		Surveys:   surveyRepo,
		Voting:    voting.NewEngine(conn, polls, votes, checker, profiles, opts.Metrics),
		Responses: surveys.NewService(conn, surveyRepo, checker, profiles, v, opts.Metrics),
		Jobs:      proc,
		Runner:    runner,
	}
}
