// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP request handlers.

# Handler Types

Every handler holds the shared *Services, built once at startup:

	svc := handlers.NewServices(db, cfg, handlers.Options{Metrics: m})
	pollHandler := handlers.NewPollHandler(svc)

  - PollHandler: poll lifecycle (create, update, duplicate, publish, close)
  - VotingHandler: vote casting and results
  - SurveyHandler: survey lifecycle, responses, submissions, moderation
  - JobHandler: batch job start, progress, next batch, cancel
  - GroupHandler: manual groups and members

# Caller Identity

The host application owns login. The caller is read from X-User-ID, or
from the subject of an HS256 bearer token when IDENTITY_SECRET is set.
A request without either is anonymous and gets not_logged_in where a
member is required.

Admin routes require X-Admin-Key to match ADMIN_KEY.

# Errors

Rejections carry a reason code:

	{"error": "Conflict", "message": "...", "reason": "already_voted"}

Validation failures add "fields", incomplete profiles add
"missing_fields". Storage failures return 500 with "Please try again"
so clients can tell retryable errors from input problems.

# Results

Public results are served once a poll has ended and show redacted
nicknames. With the admin key they are available at any time and list
full names with redacted emails.
*/
package handlers
