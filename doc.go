// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the orgvote API server.

orgvote runs an organization's polls and surveys: eligibility checks
against member profiles and groups, one ballot per member, tallies that
count non-voters as abstentions, redacted public listings, and batch jobs
for invitation mail and city group sync.

# Starting the Server

The server reads environment variables (optionally from a .env file) or
CLI flags:

	DATABASE_URL=postgres://... ADMIN_KEY=... go run .

Or with flags:

	go run . -p 3318 -t sqlite -d "file:orgvote.db"

# Configuration

Required settings:

  - DATABASE_URL (-d): database connection string
  - ADMIN_KEY (--admin-key): key expected in X-Admin-Key

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): postgres or sqlite
  - REDIS_URL: job store; jobs are kept in memory when unset
  - JOB_WORKERS, MAIL_DELAY: background job workers and pacing
  - SMTP_HOST and friends: invitation mail; mail is only logged when unset
  - CLOCK_OFFSET: organizational time zone offset

See package cliparse for the full list.

# Architecture

  - handlers: HTTP request handlers and service wiring
  - router: route table, request logging and metrics
  - eligibility, voting, surveys, anonymize: participation rules
  - repository: poll and survey persistence
  - profile, groups: member data
  - jobs, mail: resumable batch jobs and invitation delivery
  - metrics: Prometheus collectors
  - db, cliparse, clock, auth, middleware, models: support packages

See package documentation for each component.
*/
package main
