// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema creation, and transaction helpers.

# Connections

Open selects the driver from the configured database type:

	conn, err := db.Open(db.TypePostgres, cfg.DatabaseURL)  // lib/pq
	conn, err := db.Open(db.TypeSQLite, "file:orgvote.db")  // modernc.org/sqlite

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

Read from the host application:

  - app_user, user_profile: members and their key/value profile data
  - user_group, group_member: target groups and rosters

Owned by this service:

  - poll, poll_target, poll_question, poll_answer, vote
  - survey, survey_target, survey_question, survey_response, survey_answer

# Relationships

	poll 1──* poll_question 1──* poll_answer
	poll 1──* vote (PRIMARY KEY poll_id, question_id, user_id)
	survey 1──* survey_question
	survey 1──* survey_response 1──* survey_answer

Foreign keys use ON DELETE CASCADE, but repositories delete children
explicitly inside one transaction so cascades never depend on driver
settings.

# Transactions

	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		// all-or-nothing writes
	})

IsUniqueViolation recognizes constraint failures from both drivers.
*/
package db
