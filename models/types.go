package models

import "time"

// Poll and survey status constants
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Survey response submission status
const (
	ResponseDraft = "draft"
	ResponseReady = "ready"
)

// Survey response moderation status
const (
	SpamPending = "pending"
	SpamNotSpam = "not_spam"
	SpamSpam    = "spam"
)

// Survey question field types
const (
	FieldShortText = "short_text"
	FieldLongText  = "long_text"
	FieldURL       = "url"
)

// Group types
const (
	GroupTypeCity   = "city"
	GroupTypeManual = "manual"
)

// Subject kinds for eligibility checks
const (
	KindPoll   = "poll"
	KindSurvey = "survey"
)

// Request types

type AnswerInput struct {
	Text      string `json:"text" validate:"required,max=512"`
	IsAbstain bool   `json:"is_abstain"`
}

type QuestionInput struct {
	Text    string        `json:"text" validate:"required,max=512"`
	Answers []AnswerInput `json:"answers" validate:"required,dive"`
}

type PollInput struct {
	Title        string          `json:"title" validate:"required,max=512"`
	Description  string          `json:"description" validate:"max=5000"`
	StartsAt     time.Time       `json:"starts_at" validate:"required"`
	EndsAt       time.Time       `json:"ends_at" validate:"required,gtfield=StartsAt"`
	TargetGroups []string        `json:"target_groups" validate:"dive,required"`
	Notify       bool            `json:"notify"`
	Questions    []QuestionInput `json:"questions" validate:"min=1,max=24,dive"`
}

// PollPatch carries a partial poll update. A non-nil Questions slice
// replaces the whole question/answer subtree.
type PollPatch struct {
	Title        *string         `json:"title"`
	Description  *string         `json:"description"`
	StartsAt     *time.Time      `json:"starts_at"`
	EndsAt       *time.Time      `json:"ends_at"`
	TargetGroups *[]string       `json:"target_groups"`
	Notify       *bool           `json:"notify"`
	Questions    []QuestionInput `json:"questions"`
}

type SurveyQuestionInput struct {
	Text         string `json:"text" validate:"required,max=512"`
	FieldType    string `json:"field_type" validate:"required,oneof=short_text long_text url"`
	MaxLength    int    `json:"max_length" validate:"min=1,max=2000"`
	ProfileField string `json:"profile_field" validate:"max=64"`
}

type SurveyInput struct {
	Title        string                `json:"title" validate:"required,max=512"`
	Description  string                `json:"description" validate:"max=5000"`
	StartsAt     time.Time             `json:"starts_at" validate:"required"`
	EndsAt       time.Time             `json:"ends_at" validate:"required,gtfield=StartsAt"`
	TargetGroups []string              `json:"target_groups" validate:"dive,required"`
	Questions    []SurveyQuestionInput `json:"questions" validate:"min=1,max=20,dive"`
}

type SurveyPatch struct {
	Title        *string               `json:"title"`
	Description  *string               `json:"description"`
	StartsAt     *time.Time            `json:"starts_at"`
	EndsAt       *time.Time            `json:"ends_at"`
	TargetGroups *[]string             `json:"target_groups"`
	Questions    []SurveyQuestionInput `json:"questions"`
}

// question_id -> answer_id
type CastVoteRequest struct {
	Answers   map[string]string `json:"answers"`
	Anonymous bool              `json:"anonymous"`
}

// question_id -> free text
type SubmitResponseRequest struct {
	Status  string            `json:"status"`
	Answers map[string]string `json:"answers"`
}

type SpamStatusRequest struct {
	SpamStatus string `json:"spam_status"`
}

type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Type string `json:"type" validate:"omitempty,oneof=city manual"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type StartJobRequest struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Response types

type PollDetail struct {
	Poll          *Poll    `json:"poll"`
	IsActive      bool     `json:"is_active"`
	IsEnded       bool     `json:"is_ended"`
	HasVoted      bool     `json:"has_voted"`
	EligibleError Reason   `json:"eligible_error,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

type SurveyDetail struct {
	Survey        *Survey  `json:"survey"`
	IsActive      bool     `json:"is_active"`
	IsEnded       bool     `json:"is_ended"`
	EligibleError Reason   `json:"eligible_error,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

type CastVoteResponse struct {
	PollID  string `json:"poll_id"`
	Message string `json:"message"`
}

type SubmitResponseResponse struct {
	ResponseID string `json:"response_id"`
	Status     string `json:"status"`
}

type PublishPollResponse struct {
	Poll  *Poll  `json:"poll"`
	JobID string `json:"job_id,omitempty"`
}

type ResultsResponse struct {
	Tally     *Tally    `json:"tally"`
	Voters    VoterPage `json:"voters"`
	NonVoters VoterPage `json:"non_voters"`
}

type PollList struct {
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Total   int    `json:"total"`
	Polls   []Poll `json:"polls"`
}

type SurveyList struct {
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Total   int      `json:"total"`
	Surveys []Survey `json:"surveys"`
}

type JobProgress struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	Total     int     `json:"total"`
	Processed int     `json:"processed"`
	Offset    int     `json:"offset"`
	Pct       float64 `json:"pct"`
	LastError string  `json:"last_error,omitempty"`
}

// Domain types

type Poll struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	StartsAt     time.Time  `json:"starts_at"`
	EndsAt       time.Time  `json:"ends_at"`
	TargetGroups []string   `json:"target_groups"` // empty means all users
	Notify       bool       `json:"notify"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Questions    []Question `json:"questions,omitempty"`
}

type Question struct {
	ID        string   `json:"id"`
	PollID    string   `json:"poll_id"`
	Text      string   `json:"text"`
	SortOrder int      `json:"sort_order"`
	Answers   []Answer `json:"answers"`
}

// AbstainAnswer returns the question's abstain answer, or nil.
func (q Question) AbstainAnswer() *Answer {
	for i := range q.Answers {
		if q.Answers[i].IsAbstain {
			return &q.Answers[i]
		}
	}
	return nil
}

type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	SortOrder  int    `json:"sort_order"`
	IsAbstain  bool   `json:"is_abstain"`
}

type Vote struct {
	PollID      string    `json:"poll_id"`
	QuestionID  string    `json:"question_id"`
	AnswerID    string    `json:"answer_id"`
	UserID      string    `json:"-"` // Never expose in JSON
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

type Survey struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Status       string           `json:"status"`
	StartsAt     time.Time        `json:"starts_at"`
	EndsAt       time.Time        `json:"ends_at"`
	TargetGroups []string         `json:"target_groups"`
	CreatedBy    string           `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Questions    []SurveyQuestion `json:"questions,omitempty"`
}

type SurveyQuestion struct {
	ID           string `json:"id"`
	SurveyID     string `json:"survey_id"`
	Text         string `json:"text"`
	FieldType    string `json:"field_type"`
	MaxLength    int    `json:"max_length"`
	ProfileField string `json:"profile_field,omitempty"`
	SortOrder    int    `json:"sort_order"`
}

type SurveyResponse struct {
	ID         string            `json:"id"`
	SurveyID   string            `json:"survey_id"`
	UserID     string            `json:"-"`
	Status     string            `json:"status"`
	SpamStatus string            `json:"spam_status"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	Nickname   string            `json:"nickname"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Answers    map[string]string `json:"answers"`
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Tally types

type AnswerCount struct {
	AnswerID   string  `json:"answer_id"`
	Text       string  `json:"text"`
	IsAbstain  bool    `json:"is_abstain"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type QuestionTally struct {
	QuestionID string        `json:"question_id"`
	Text       string        `json:"text"`
	Total      int           `json:"total"`
	Answers    []AnswerCount `json:"answers"`
}

type Tally struct {
	PollID        string          `json:"poll_id"`
	TotalEligible int             `json:"total_eligible"`
	TotalVoters   int             `json:"total_voters"`
	NonVoters     int             `json:"non_voters"`
	Questions     []QuestionTally `json:"questions"`
}

// VoterEntry is a single row of a voter or non-voter listing. Which
// fields are filled depends on the disclosure profile; no other profile
// data is ever carried.
type VoterEntry struct {
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type VoterPage struct {
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Total   int          `json:"total"`
	Entries []VoterEntry `json:"entries"`
}

// Survey view types

type SubmissionAnswer struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Value      string `json:"value"`
}

type Submission struct {
	ResponseID string             `json:"response_id,omitempty"`
	SpamStatus string             `json:"spam_status,omitempty"`
	Respondent VoterEntry         `json:"respondent"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Answers    []SubmissionAnswer `json:"answers"`
}

type SubmissionPage struct {
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Total   int          `json:"total"`
	Entries []Submission `json:"entries"`
}

type SurveyStats struct {
	SurveyID string `json:"survey_id"`
	Ready    int    `json:"ready"`
	Draft    int    `json:"draft"`
	Spam     int    `json:"spam"`
	Pending  int    `json:"pending"`
	NotSpam  int    `json:"not_spam"`
	// Counted is the number of ready responses not classified as spam.
	Counted int `json:"counted"`
}

// Error response

type ErrorResponse struct {
	Error         string            `json:"error"`
	Message       string            `json:"message,omitempty"`
	Reason        Reason            `json:"reason,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	MissingFields []string          `json:"missing_fields,omitempty"`
}
