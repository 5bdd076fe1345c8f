package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/orgvote/groups"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/profile"
	"github.com/danielhkuo/orgvote/repository"
	"github.com/danielhkuo/orgvote/testutil"
)

func newSurveys(conn *sql.DB) *repository.Surveys {
	return repository.NewSurveys(conn, groups.NewStore(conn), profile.NewFieldMap(nil, nil), testutil.Clock(), repository.NewValidator())
}

func validSurveyInput() models.SurveyInput {
	return models.SurveyInput{
		Title:    "Member feedback",
		StartsAt: testutil.Now,
		EndsAt:   testutil.Now.Add(72 * time.Hour),
		Questions: []models.SurveyQuestionInput{
			{Text: "Your city", FieldType: models.FieldShortText, MaxLength: 100, ProfileField: profile.City},
			{Text: "Ideas", FieldType: models.FieldLongText, MaxLength: 2000},
			{Text: "Portfolio", FieldType: models.FieldURL, MaxLength: 300},
		},
	}
}

// insertResponse writes a response row with one answer per question.
func insertResponse(t *testing.T, conn *sql.DB, survey *models.Survey, userID string) {
	t.Helper()

	responseID := "r-" + userID
	_, err := conn.Exec(`
		INSERT INTO survey_response (id, survey_id, user_id, status, spam_status, created_at, updated_at)
		VALUES ($1, $2, $3, 'ready', 'pending', $4, $4)
	`, responseID, survey.ID, userID, testutil.Now)
	require.NoError(t, err)

	for _, q := range survey.Questions {
		_, err := conn.Exec(`INSERT INTO survey_answer (response_id, question_id, value) VALUES ($1, $2, 'x')`, responseID, q.ID)
		require.NoError(t, err)
	}
}

func TestSurveys_Create(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	surveys := newSurveys(conn)

	s, err := surveys.Create(context.Background(), validSurveyInput(), "admin")
	require.NoError(t, err)

	assert.Equal(t, models.StatusDraft, s.Status)
	require.Len(t, s.Questions, 3)
	assert.Equal(t, profile.City, s.Questions[0].ProfileField)
	assert.Equal(t, models.FieldURL, s.Questions[2].FieldType)
	assert.Equal(t, 2, s.Questions[2].SortOrder)
}

func TestSurveys_CreateValidation(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	surveys := newSurveys(conn)

	long := make([]rune, 5001)
	for i := range long {
		long[i] = 'ą'
	}

	tests := []struct {
		name  string
		edit  func(in *models.SurveyInput)
		field string
	}{
		{"description too long", func(in *models.SurveyInput) { in.Description = string(long) }, "description"},
		{"bad field type", func(in *models.SurveyInput) { in.Questions[0].FieldType = "number" }, "questions[0].field_type"},
		{"max length zero", func(in *models.SurveyInput) { in.Questions[1].MaxLength = 0 }, "questions[1].max_length"},
		{"max length too big", func(in *models.SurveyInput) { in.Questions[1].MaxLength = 2001 }, "questions[1].max_length"},
		{"unknown profile field", func(in *models.SurveyInput) { in.Questions[2].ProfileField = "shoe_size" }, "questions[2].profile_field"},
		{"too many questions", func(in *models.SurveyInput) {
			for len(in.Questions) <= 20 {
				in.Questions = append(in.Questions, models.SurveyQuestionInput{Text: "q", FieldType: models.FieldShortText, MaxLength: 10})
			}
		}, "questions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSurveyInput()
			tt.edit(&in)

			_, err := surveys.Create(context.Background(), in, "admin")
			require.Error(t, err)
			assert.Contains(t, reasonFields(t, err), tt.field)
		})
	}
}

func TestSurveys_UpdateQuestionsDropsResponses(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	surveys := newSurveys(conn)
	ctx := context.Background()

	s := testutil.CreateSurvey(t, conn, testutil.OpenSurvey(
		models.SurveyQuestionInput{Text: "Why?", FieldType: models.FieldLongText, MaxLength: 500},
	))
	a := testutil.CreateTestUser(t, conn, "a", testutil.Profile("a"))
	b := testutil.CreateTestUser(t, conn, "b", testutil.Profile("b"))
	insertResponse(t, conn, s, a)
	insertResponse(t, conn, s, b)

	title := "Still open"
	_, err := surveys.Update(ctx, s.ID, models.SurveyPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.CountRows(t, conn, "survey_response", ""), "metadata edits keep responses")

	updated, err := surveys.Update(ctx, s.ID, models.SurveyPatch{Questions: []models.SurveyQuestionInput{
		{Text: "How?", FieldType: models.FieldShortText, MaxLength: 50},
		{Text: "Where?", FieldType: models.FieldShortText, MaxLength: 50},
	}})
	require.NoError(t, err)

	assert.Len(t, updated.Questions, 2)
	assert.Equal(t, "Still open", updated.Title)
	assert.Equal(t, 0, testutil.CountRows(t, conn, "survey_response", ""))
	assert.Equal(t, 0, testutil.CountRows(t, conn, "survey_answer", ""))
}

func TestSurveys_ClosedNotEditable(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	surveys := newSurveys(conn)

	spec := testutil.OpenSurvey()
	spec.Status = models.StatusClosed
	s := testutil.CreateSurvey(t, conn, spec)

	title := "x"
	_, err := surveys.Update(context.Background(), s.ID, models.SurveyPatch{Title: &title})
	assert.ErrorIs(t, err, models.ErrNotEditable)

	_, err = surveys.Update(context.Background(), "missing", models.SurveyPatch{Title: &title})
	assert.ErrorIs(t, err, models.ErrSurveyNotFound)
}

func TestSurveys_DeleteCascades(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	surveys := newSurveys(conn)
	ctx := context.Background()

	group := testutil.CreateTestGroup(t, conn, "g")
	spec := testutil.OpenSurvey(models.SurveyQuestionInput{Text: "Why?", FieldType: models.FieldLongText, MaxLength: 500})
	spec.Groups = []string{group}
	s := testutil.CreateSurvey(t, conn, spec)
	insertResponse(t, conn, s, testutil.CreateTestUser(t, conn, "a", nil))

	require.NoError(t, surveys.Delete(ctx, s.ID))
	for _, table := range []string{"survey", "survey_question", "survey_response", "survey_answer", "survey_target"} {
		assert.Equal(t, 0, testutil.CountRows(t, conn, table, ""), table)
	}

	assert.ErrorIs(t, surveys.Delete(ctx, s.ID), models.ErrSurveyNotFound)
}

func TestSurveys_Lifecycle(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	surveys := newSurveys(conn)
	ctx := context.Background()

	s, err := surveys.Create(ctx, validSurveyInput(), "admin")
	require.NoError(t, err)

	opened, err := surveys.Publish(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, opened.Status)

	closed, err := surveys.Close(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)

	_, err = surveys.Close(ctx, s.ID)
	assert.ErrorIs(t, err, models.ErrSurveyClosed)

	list, err := surveys.List(ctx, repository.ListOptions{Status: models.StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}
