// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package surveys handles survey responses: submission, moderation, the
public submissions view and response statistics.

A user has at most one response per survey. Submit upserts it, replaces
the complete answer set and refreshes the snapshot of the user's name,
nickname, phone and email. Drafts may be partial; a ready response must
answer every question. Questions bound to a profile field are prefilled
from the profile when left empty.

Moderation only flags responses (pending, not_spam, spam); nothing is
deleted. Public submissions list ready, not_spam responses.
*/
package surveys
