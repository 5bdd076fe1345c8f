// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - PollInput / PollPatch: poll create and partial update
  - SurveyInput / SurveyPatch: survey create and partial update
  - CastVoteRequest: answers (question_id -> answer_id), anonymous
  - SubmitResponseRequest: status (draft|ready), answers (question_id -> text)
  - SpamStatusRequest: spam_status
  - StartJobRequest: type, params

Input types carry go-playground/validator tags; the repository package
runs them before any write.

# Response Types

  - PollDetail: poll plus is_active, is_ended, has_voted, eligible_error
  - ResultsResponse: tally plus voter and non-voter pages
  - JobProgress: status, total, processed, offset, pct
  - ErrorResponse: error, message, reason, fields, missing_fields

# Domain Types

  - Poll, Question, Answer, Vote
  - Survey, SurveyQuestion, SurveyResponse
  - Group
  - Tally, QuestionTally, AnswerCount
  - VoterEntry, VoterPage, Submission, SubmissionPage, SurveyStats

# Errors

ReasonError carries a Reason code that handlers translate to an HTTP
status. Sentinels such as ErrAlreadyVoted compare by reason:

	if errors.Is(err, models.ErrAlreadyVoted) {
		// ...
	}
*/
package models
