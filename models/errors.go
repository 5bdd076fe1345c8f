// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "errors"

// Reason is a machine-readable rejection code surfaced to clients.
type Reason string

const (
	ReasonValidation        Reason = "validation"
	ReasonNotFound          Reason = "not_found"
	ReasonNotEditable       Reason = "not_editable"
	ReasonNoQuestions       Reason = "no_questions"
	ReasonPollNotActive     Reason = "poll_not_active"
	ReasonPollNotEnded      Reason = "poll_not_ended"
	ReasonNotLoggedIn       Reason = "not_logged_in"
	ReasonIncompleteProfile Reason = "incomplete_profile"
	ReasonWrongGroup        Reason = "wrong_group"
	ReasonAlreadyVoted      Reason = "already_voted"
	ReasonMissingAnswer     Reason = "missing_answer"
	ReasonInvalidQuestion   Reason = "invalid_question"
	ReasonInvalidAnswer     Reason = "invalid_answer"
	ReasonSurveyNotFound    Reason = "survey_not_found"
	ReasonSurveyClosed      Reason = "survey_closed"
	ReasonUnknownJobType    Reason = "unknown_job_type"
	ReasonJobExpired        Reason = "job_expired"
)

var reasonMessages = map[Reason]string{
	ReasonValidation:        "The submitted data is invalid",
	ReasonNotFound:          "Not found",
	ReasonNotEditable:       "Only draft polls can be edited",
	ReasonNoQuestions:       "The poll has no questions",
	ReasonPollNotActive:     "The poll is not open for voting",
	ReasonPollNotEnded:      "Results are available once the poll has ended",
	ReasonNotLoggedIn:       "You must be logged in",
	ReasonIncompleteProfile: "Please complete your profile first",
	ReasonWrongGroup:        "This poll is restricted to other groups",
	ReasonAlreadyVoted:      "You have already voted in this poll",
	ReasonMissingAnswer:     "Every question must be answered",
	ReasonInvalidQuestion:   "The ballot references an unknown question",
	ReasonInvalidAnswer:     "The ballot references an answer that does not belong to its question",
	ReasonSurveyNotFound:    "Survey not found",
	ReasonSurveyClosed:      "The survey is not open",
	ReasonUnknownJobType:    "Unknown job type",
	ReasonJobExpired:        "The job has expired or does not exist",
}

// ReasonError is a user-facing rejection. Two ReasonErrors match with
// errors.Is when their reasons are equal.
type ReasonError struct {
	Reason        Reason
	Message       string
	Fields        map[string]string
	MissingFields []string
}

func (e *ReasonError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Message
}

func (e *ReasonError) Is(target error) bool {
	t, ok := target.(*ReasonError)
	return ok && t.Reason == e.Reason
}

// NewReasonError builds a ReasonError with the default message for reason.
func NewReasonError(reason Reason) *ReasonError {
	return &ReasonError{Reason: reason, Message: reasonMessages[reason]}
}

// ValidationError reports field-level validation failures.
func ValidationError(fields map[string]string) *ReasonError {
	err := NewReasonError(ReasonValidation)
	err.Fields = fields
	return err
}

// ReasonOf extracts the ReasonError wrapped in err, if any.
func ReasonOf(err error) (*ReasonError, bool) {
	var re *ReasonError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound        = NewReasonError(ReasonNotFound)
	ErrNotEditable     = NewReasonError(ReasonNotEditable)
	ErrNoQuestions     = NewReasonError(ReasonNoQuestions)
	ErrPollNotActive   = NewReasonError(ReasonPollNotActive)
	ErrPollNotEnded    = NewReasonError(ReasonPollNotEnded)
	ErrNotLoggedIn     = NewReasonError(ReasonNotLoggedIn)
	ErrWrongGroup      = NewReasonError(ReasonWrongGroup)
	ErrAlreadyVoted    = NewReasonError(ReasonAlreadyVoted)
	ErrMissingAnswer   = NewReasonError(ReasonMissingAnswer)
	ErrInvalidQuestion = NewReasonError(ReasonInvalidQuestion)
	ErrInvalidAnswer   = NewReasonError(ReasonInvalidAnswer)
	ErrSurveyNotFound  = NewReasonError(ReasonSurveyNotFound)
	ErrSurveyClosed    = NewReasonError(ReasonSurveyClosed)
	ErrUnknownJobType  = NewReasonError(ReasonUnknownJobType)
	ErrJobExpired      = NewReasonError(ReasonJobExpired)
)
