// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The statements stay within the SQL shared by PostgreSQL and SQLite.
const schema = `
-- Members (owned by the host application, read here)
CREATE TABLE IF NOT EXISTS app_user (
    id TEXT PRIMARY KEY,
    login TEXT NOT NULL UNIQUE,
    registered_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS user_profile (
    user_id TEXT NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
    meta_key TEXT NOT NULL,
    meta_value TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (user_id, meta_key)
);

CREATE INDEX IF NOT EXISTS idx_user_profile_key ON user_profile(meta_key, meta_value);

-- Groups
CREATE TABLE IF NOT EXISTS user_group (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'manual' CHECK (type IN ('city', 'manual')),
    created_at TIMESTAMP NOT NULL,
    UNIQUE (type, name)
);

CREATE TABLE IF NOT EXISTS group_member (
    group_id TEXT NOT NULL REFERENCES user_group(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
    PRIMARY KEY (group_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_group_member_user ON group_member(user_id);

-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'open', 'closed')),
    starts_at TIMESTAMP NOT NULL,
    ends_at TIMESTAMP NOT NULL,
    notify BOOLEAN NOT NULL DEFAULT FALSE,
    created_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_status ON poll(status);

CREATE TABLE IF NOT EXISTS poll_target (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    group_id TEXT NOT NULL REFERENCES user_group(id) ON DELETE CASCADE,
    PRIMARY KEY (poll_id, group_id)
);

CREATE TABLE IF NOT EXISTS poll_question (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    sort_order INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_question_poll ON poll_question(poll_id);

CREATE TABLE IF NOT EXISTS poll_answer (
    id TEXT PRIMARY KEY,
    question_id TEXT NOT NULL REFERENCES poll_question(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    sort_order INTEGER NOT NULL,
    is_abstain BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_poll_answer_question ON poll_answer(question_id);

-- Votes: the primary key is the double-vote guard
CREATE TABLE IF NOT EXISTS vote (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL REFERENCES poll_question(id) ON DELETE CASCADE,
    answer_id TEXT NOT NULL REFERENCES poll_answer(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (poll_id, question_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_poll_user ON vote(poll_id, user_id);

-- Surveys
CREATE TABLE IF NOT EXISTS survey (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'open', 'closed')),
    starts_at TIMESTAMP NOT NULL,
    ends_at TIMESTAMP NOT NULL,
    created_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS survey_target (
    survey_id TEXT NOT NULL REFERENCES survey(id) ON DELETE CASCADE,
    group_id TEXT NOT NULL REFERENCES user_group(id) ON DELETE CASCADE,
    PRIMARY KEY (survey_id, group_id)
);

CREATE TABLE IF NOT EXISTS survey_question (
    id TEXT PRIMARY KEY,
    survey_id TEXT NOT NULL REFERENCES survey(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    field_type TEXT NOT NULL CHECK (field_type IN ('short_text', 'long_text', 'url')),
    max_length INTEGER NOT NULL,
    profile_field TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_survey_question_survey ON survey_question(survey_id);

CREATE TABLE IF NOT EXISTS survey_response (
    id TEXT PRIMARY KEY,
    survey_id TEXT NOT NULL REFERENCES survey(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('draft', 'ready')),
    spam_status TEXT NOT NULL DEFAULT 'pending' CHECK (spam_status IN ('pending', 'not_spam', 'spam')),
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    nickname TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (survey_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_survey_response_survey ON survey_response(survey_id, status);

CREATE TABLE IF NOT EXISTS survey_answer (
    response_id TEXT NOT NULL REFERENCES survey_response(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL REFERENCES survey_question(id) ON DELETE CASCADE,
    value TEXT NOT NULL,
    PRIMARY KEY (response_id, question_id)
);
`
