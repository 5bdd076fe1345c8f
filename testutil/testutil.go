// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/orgvote/auth"
	"github.com/danielhkuo/orgvote/cliparse"
	"github.com/danielhkuo/orgvote/clock"
	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/models"
)

// Now is the fixed organizational time used across tests.
var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const TestAdminKey = "test-admin-key"

// SetupTestDB creates a fresh sqlite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orgvote.db")
	conn, err := db.Open(db.TypeSQLite, "file:"+path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            3318,
		DatabaseURL:     "file::memory:",
		DatabaseType:    db.TypeSQLite,
		AdminKey:        TestAdminKey,
		JobTTL:          time.Hour,
		SMTPPort:        587,
		MailFrom:        "no-reply@example.org",
		SiteURL:         "https://vote.example.org",
		AbstainLabel:    "Abstain",
		ProfileFields:   map[string]string{},
		SensitiveFields: []string{"phone", "email"},
	}
}

// Clock returns a clock frozen at Now.
func Clock() *clock.VotingClock {
	return clock.Fixed(Now)
}

// Profile returns a complete profile for the given nickname.
func Profile(nickname string) map[string]string {
	return map[string]string{
		"first_name": "First" + nickname,
		"last_name":  "Last" + nickname,
		"nickname":   nickname,
		"email":      nickname + "@example.com",
		"phone":      "555-0100",
		"city":       "Springfield",
	}
}

// CreateTestUser inserts a user registered a month before Now with the
// given profile fields and returns its ID.
func CreateTestUser(t *testing.T, conn *sql.DB, login string, fields map[string]string) string {
	t.Helper()
	return CreateTestUserAt(t, conn, login, Now.AddDate(0, -1, 0), fields)
}

// CreateTestUserAt is CreateTestUser with an explicit registration time.
func CreateTestUserAt(t *testing.T, conn *sql.DB, login string, registeredAt time.Time, fields map[string]string) string {
	t.Helper()

	userID := "u-" + login
	_, err := conn.Exec(`
		INSERT INTO app_user (id, login, registered_at) VALUES ($1, $2, $3)
	`, userID, login, registeredAt)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	for key, value := range fields {
		SetProfileField(t, conn, userID, key, value)
	}

	return userID
}

// SetProfileField writes a raw user_profile row.
func SetProfileField(t *testing.T, conn *sql.DB, userID, key, value string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO user_profile (user_id, meta_key, meta_value) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value
	`, userID, key, value)
	if err != nil {
		t.Fatalf("Failed to set profile field: %v", err)
	}
}

// CreateTestGroup creates a manual group and returns its ID
func CreateTestGroup(t *testing.T, conn *sql.DB, name string) string {
	t.Helper()

	groupID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO user_group (id, name, type, created_at) VALUES ($1, $2, $3, $4)
	`, groupID, name, models.GroupTypeManual, Now)
	if err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}

	return groupID
}

// AddTestMember adds a user to a group
func AddTestMember(t *testing.T, conn *sql.DB, groupID, userID string) {
	t.Helper()

	_, err := conn.Exec(`INSERT INTO group_member (group_id, user_id) VALUES ($1, $2)`, groupID, userID)
	if err != nil {
		t.Fatalf("Failed to add test member: %v", err)
	}
}

// PollSpec describes a poll fixture. Each question lists its regular
// answers; an "Abstain" answer is appended to every question.
type PollSpec struct {
	Status    string
	StartsAt  time.Time
	EndsAt    time.Time
	Groups    []string
	Questions [][]string
}

// OpenPoll returns a fixture for an open poll whose window contains Now.
func OpenPoll(questions ...[]string) PollSpec {
	return PollSpec{
		Status:    models.StatusOpen,
		StartsAt:  Now.Add(-24 * time.Hour),
		EndsAt:    Now.Add(24 * time.Hour),
		Questions: questions,
	}
}

// CreatePoll inserts a poll with its questions and answers and
// returns it as loaded shape, answers in sort order.
func CreatePoll(t *testing.T, conn *sql.DB, spec PollSpec) *models.Poll {
	t.Helper()

	pollID, _ := auth.GenerateID(16)
	poll := &models.Poll{
		ID:           pollID,
		Title:        "Test Poll",
		Status:       spec.Status,
		StartsAt:     spec.StartsAt,
		EndsAt:       spec.EndsAt,
		TargetGroups: spec.Groups,
		CreatedAt:    Now,
		UpdatedAt:    Now,
	}

	_, err := conn.Exec(`
		INSERT INTO poll (id, title, description, status, starts_at, ends_at, notify, created_by, created_at, updated_at)
		VALUES ($1, 'Test Poll', '', $2, $3, $4, FALSE, 'admin', $5, $5)
	`, pollID, spec.Status, spec.StartsAt, spec.EndsAt, Now)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	for _, g := range spec.Groups {
		if _, err := conn.Exec(`INSERT INTO poll_target (poll_id, group_id) VALUES ($1, $2)`, pollID, g); err != nil {
			t.Fatalf("Failed to create poll target: %v", err)
		}
	}

	for qi, answers := range spec.Questions {
		q := models.Question{ID: fmt.Sprintf("%s-q%d", pollID, qi), PollID: pollID, Text: fmt.Sprintf("Question %d", qi+1), SortOrder: qi}
		if _, err := conn.Exec(`
			INSERT INTO poll_question (id, poll_id, text, sort_order) VALUES ($1, $2, $3, $4)
		`, q.ID, pollID, q.Text, qi); err != nil {
			t.Fatalf("Failed to create test question: %v", err)
		}

		texts := append(append([]string{}, answers...), "Abstain")
		for ai, text := range texts {
			a := models.Answer{
				ID:         fmt.Sprintf("%s-a%d", q.ID, ai),
				QuestionID: q.ID,
				Text:       text,
				SortOrder:  ai,
				IsAbstain:  ai == len(texts)-1,
			}
			if _, err := conn.Exec(`
				INSERT INTO poll_answer (id, question_id, text, sort_order, is_abstain) VALUES ($1, $2, $3, $4, $5)
			`, a.ID, q.ID, a.Text, ai, a.IsAbstain); err != nil {
				t.Fatalf("Failed to create test answer: %v", err)
			}
			q.Answers = append(q.Answers, a)
		}
		poll.Questions = append(poll.Questions, q)
	}

	return poll
}

// SurveySpec describes a survey fixture.
type SurveySpec struct {
	Status    string
	StartsAt  time.Time
	EndsAt    time.Time
	Groups    []string
	Questions []models.SurveyQuestionInput
}

// OpenSurvey returns a fixture for an open survey whose window contains Now.
func OpenSurvey(questions ...models.SurveyQuestionInput) SurveySpec {
	return SurveySpec{
		Status:    models.StatusOpen,
		StartsAt:  Now.Add(-24 * time.Hour),
		EndsAt:    Now.Add(24 * time.Hour),
		Questions: questions,
	}
}

// CreateSurvey inserts a survey with its questions.
func CreateSurvey(t *testing.T, conn *sql.DB, spec SurveySpec) *models.Survey {
	t.Helper()

	surveyID, _ := auth.GenerateID(16)
	survey := &models.Survey{
		ID:           surveyID,
		Title:        "Test Survey",
		Status:       spec.Status,
		StartsAt:     spec.StartsAt,
		EndsAt:       spec.EndsAt,
		TargetGroups: spec.Groups,
		CreatedAt:    Now,
		UpdatedAt:    Now,
	}

	_, err := conn.Exec(`
		INSERT INTO survey (id, title, description, status, starts_at, ends_at, created_by, created_at, updated_at)
		VALUES ($1, 'Test Survey', '', $2, $3, $4, 'admin', $5, $5)
	`, surveyID, spec.Status, spec.StartsAt, spec.EndsAt, Now)
	if err != nil {
		t.Fatalf("Failed to create test survey: %v", err)
	}

	for _, g := range spec.Groups {
		if _, err := conn.Exec(`INSERT INTO survey_target (survey_id, group_id) VALUES ($1, $2)`, surveyID, g); err != nil {
			t.Fatalf("Failed to create survey target: %v", err)
		}
	}

	for i, in := range spec.Questions {
		q := models.SurveyQuestion{
			ID:           fmt.Sprintf("%s-q%d", surveyID, i),
			SurveyID:     surveyID,
			Text:         in.Text,
			FieldType:    in.FieldType,
			MaxLength:    in.MaxLength,
			ProfileField: in.ProfileField,
			SortOrder:    i,
		}
		if _, err := conn.Exec(`
			INSERT INTO survey_question (id, survey_id, text, field_type, max_length, profile_field, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, q.ID, surveyID, q.Text, q.FieldType, q.MaxLength, q.ProfileField, i); err != nil {
			t.Fatalf("Failed to create survey question: %v", err)
		}
		survey.Questions = append(survey.Questions, q)
	}

	return survey
}

// CastTestVote writes vote rows directly, bypassing all checks.
func CastTestVote(t *testing.T, conn *sql.DB, pollID, userID string, answers map[string]string) {
	t.Helper()

	for questionID, answerID := range answers {
		_, err := conn.Exec(`
			INSERT INTO vote (poll_id, question_id, answer_id, user_id, is_anonymous, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
		`, pollID, questionID, answerID, userID, Now)
		if err != nil {
			t.Fatalf("Failed to create test vote: %v", err)
		}
	}
}

// CountRows returns the number of rows in table matching where.
func CountRows(t *testing.T, conn *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AsUser returns headers identifying the caller.
func AsUser(userID string) map[string]string {
	return map[string]string{auth.HeaderUserID: userID}
}

// AsAdmin returns headers carrying the test admin key.
func AsAdmin() map[string]string {
	return map[string]string{auth.HeaderAdminKey: TestAdminKey}
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
