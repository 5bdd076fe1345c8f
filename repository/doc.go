// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package repository stores polls and surveys.

Every mutation validates its input first (go-playground/validator struct
tags plus structural checks) and fails with a validation ReasonError
whose Fields map JSON paths to messages:

	{"questions[0].answers": "must have between 2 and 11 answers besides abstain"}

Poll questions carry 2 to 11 regular answers followed by exactly one
abstain answer. When a question arrives without one, an abstain answer
with the configured label is appended.

# Lifecycle

	draft ──Publish──▶ open ──Close──▶ closed

Polls are editable only while draft. Surveys stay editable while open;
replacing their questions deletes all responses in the same transaction.

# Cascades

Delete removes children first inside one transaction:

	vote → poll_answer → poll_question → poll_target → poll
	survey_answer → survey_response → survey_question → survey_target → survey
*/
package repository
