// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting records votes and computes poll results.

# Casting

Engine.Cast checks, in order, that the poll exists, is open, that the
caller is eligible and has not voted, and that the ballot answers every
question with an answer belonging to that question. All vote rows are
written in one transaction; the (poll, question, user) primary key is
the final guard against concurrent double votes and surfaces as
already_voted.

# Tally

	eligible   = profile-complete users (∩ target group members)
	voters     = distinct users with votes
	non_voters = max(0, eligible - voters)

Each question's abstain answer receives non_voters on top of its own
votes. Percentages are count / total * 100, rounded half away from zero
to one decimal, and 0 when the total is 0.

# Listings

Voters and NonVoters page through participants (DefaultPerPage entries
per page) and render them with the anonymize package.
*/
package voting
