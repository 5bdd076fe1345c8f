package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/orgvote/groups"
	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/repository"
	"github.com/danielhkuo/orgvote/testutil"
)

func newPolls(conn *sql.DB) *repository.Polls {
	return repository.NewPolls(conn, groups.NewStore(conn), testutil.Clock(), repository.NewValidator(), "Abstain")
}

func validPollInput() models.PollInput {
	return models.PollInput{
		Title:       "Board election",
		Description: "Annual vote",
		StartsAt:    testutil.Now,
		EndsAt:      testutil.Now.Add(48 * time.Hour),
		Questions: []models.QuestionInput{
			{Text: "Chair?", Answers: []models.AnswerInput{{Text: "Ann"}, {Text: "Ben"}}},
			{Text: "Budget?", Answers: []models.AnswerInput{{Text: "Yes"}, {Text: "No"}, {Text: "Later", IsAbstain: true}}},
		},
	}
}

func reasonFields(t *testing.T, err error) map[string]string {
	t.Helper()
	re, ok := models.ReasonOf(err)
	require.True(t, ok, "expected ReasonError, got %v", err)
	require.Equal(t, models.ReasonValidation, re.Reason)
	return re.Fields
}

func TestPolls_CreateAppendsAbstain(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)

	p, err := polls.Create(context.Background(), validPollInput(), "admin")
	require.NoError(t, err)

	assert.Equal(t, models.StatusDraft, p.Status)
	assert.Equal(t, "admin", p.CreatedBy)
	require.Len(t, p.Questions, 2)

	q1 := p.Questions[0]
	require.Len(t, q1.Answers, 3)
	assert.Equal(t, []string{"Ann", "Ben", "Abstain"}, []string{q1.Answers[0].Text, q1.Answers[1].Text, q1.Answers[2].Text})
	assert.True(t, q1.Answers[2].IsAbstain)
	assert.Equal(t, &q1.Answers[2], q1.AbstainAnswer())

	q2 := p.Questions[1]
	require.Len(t, q2.Answers, 3, "explicit abstain must not be duplicated")
	assert.Equal(t, "Later", q2.AbstainAnswer().Text)

	assert.True(t, p.StartsAt.Equal(testutil.Now))
	assert.Empty(t, p.TargetGroups)
}

func TestPolls_CreateValidation(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(in *models.PollInput)
		field string
	}{
		{"missing title", func(in *models.PollInput) { in.Title = "" }, "title"},
		{"end before start", func(in *models.PollInput) { in.EndsAt = in.StartsAt.Add(-time.Hour) }, "ends_at"},
		{"end equals start", func(in *models.PollInput) { in.EndsAt = in.StartsAt }, "ends_at"},
		{"no questions", func(in *models.PollInput) { in.Questions = nil }, "questions"},
		{"too few answers", func(in *models.PollInput) {
			in.Questions[0].Answers = []models.AnswerInput{{Text: "Only"}}
		}, "questions[0].answers"},
		{"abstain not last", func(in *models.PollInput) {
			in.Questions[1].Answers = []models.AnswerInput{{Text: "Skip", IsAbstain: true}, {Text: "Yes"}, {Text: "No"}}
		}, "questions[1].answers"},
		{"two abstains", func(in *models.PollInput) {
			in.Questions[0].Answers = []models.AnswerInput{{Text: "A"}, {Text: "B"}, {Text: "X", IsAbstain: true}, {Text: "Y", IsAbstain: true}}
		}, "questions[0].answers"},
		{"unknown group", func(in *models.PollInput) { in.TargetGroups = []string{"ghost"} }, "target_groups"},
		{"empty answer text", func(in *models.PollInput) { in.Questions[0].Answers[0].Text = "" }, "questions[0].answers[0].text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validPollInput()
			tt.edit(&in)

			_, err := polls.Create(ctx, in, "admin")
			require.Error(t, err)
			assert.Contains(t, reasonFields(t, err), tt.field)
		})
	}

	assert.Equal(t, 0, testutil.CountRows(t, conn, "poll", ""), "validation failures must not write")
}

func TestPolls_CreateTooManyAnswers(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)

	in := validPollInput()
	in.Questions[0].Answers = nil
	for i := 0; i < 12; i++ {
		in.Questions[0].Answers = append(in.Questions[0].Answers, models.AnswerInput{Text: "x"})
	}

	_, err := polls.Create(context.Background(), in, "admin")
	assert.Contains(t, reasonFields(t, err), "questions[0].answers")

	in.Questions[0].Answers = in.Questions[0].Answers[:11]
	p, err := polls.Create(context.Background(), in, "admin")
	require.NoError(t, err)
	assert.Len(t, p.Questions[0].Answers, 12)
}

func TestPolls_UpdateDraftOnly(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)
	ctx := context.Background()

	p, err := polls.Create(ctx, validPollInput(), "admin")
	require.NoError(t, err)

	title := "Renamed"
	updated, err := polls.Update(ctx, p.ID, models.PollPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, p.Questions[0].ID, updated.Questions[0].ID, "questions untouched without a questions patch")

	_, err = polls.Publish(ctx, p.ID)
	require.NoError(t, err)

	_, err = polls.Update(ctx, p.ID, models.PollPatch{Title: &title})
	assert.ErrorIs(t, err, models.ErrNotEditable)

	_, err = polls.Update(ctx, "missing", models.PollPatch{Title: &title})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPolls_UpdateReplacesQuestions(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)
	ctx := context.Background()

	p, err := polls.Create(ctx, validPollInput(), "admin")
	require.NoError(t, err)

	updated, err := polls.Update(ctx, p.ID, models.PollPatch{Questions: []models.QuestionInput{
		{Text: "Only question", Answers: []models.AnswerInput{{Text: "Up"}, {Text: "Down"}, {Text: "Sideways"}}},
	}})
	require.NoError(t, err)

	require.Len(t, updated.Questions, 1)
	assert.Equal(t, "Only question", updated.Questions[0].Text)
	assert.Len(t, updated.Questions[0].Answers, 4)
	assert.Equal(t, 1, testutil.CountRows(t, conn, "poll_question", ""))
	assert.Equal(t, 4, testutil.CountRows(t, conn, "poll_answer", ""))

	// An invalid replacement leaves the stored subtree intact
	_, err = polls.Update(ctx, p.ID, models.PollPatch{Questions: []models.QuestionInput{
		{Text: "Bad", Answers: []models.AnswerInput{{Text: "Lonely"}}},
	}})
	require.Error(t, err)
	assert.Equal(t, 1, testutil.CountRows(t, conn, "poll_question", ""))
}

func TestPolls_DeleteCascades(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)
	ctx := context.Background()

	voter := testutil.CreateTestUser(t, conn, "voter", testutil.Profile("voter"))
	group := testutil.CreateTestGroup(t, conn, "members")
	spec := testutil.OpenPoll([]string{"Yes", "No"}, []string{"A", "B", "C"})
	spec.Groups = []string{group}
	p := testutil.CreatePoll(t, conn, spec)
	testutil.CastTestVote(t, conn, p.ID, voter, map[string]string{
		p.Questions[0].ID: p.Questions[0].Answers[0].ID,
		p.Questions[1].ID: p.Questions[1].Answers[2].ID,
	})

	require.NoError(t, polls.Delete(ctx, p.ID))

	for _, table := range []string{"poll", "poll_question", "poll_answer", "vote", "poll_target"} {
		assert.Equal(t, 0, testutil.CountRows(t, conn, table, ""), table)
	}
	assert.Equal(t, 1, testutil.CountRows(t, conn, "user_group", ""), "groups are not owned by polls")

	assert.ErrorIs(t, polls.Delete(ctx, p.ID), models.ErrNotFound)
}

func TestPolls_DeleteRollsBackOnFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	polls := newPolls(mockDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM poll WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))
	mock.ExpectExec(`DELETE FROM vote WHERE poll_id = \$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM poll_answer`).
		WithArgs("p1").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = polls.Delete(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPolls_Duplicate(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)
	ctx := context.Background()

	voter := testutil.CreateTestUser(t, conn, "voter", testutil.Profile("voter"))
	group := testutil.CreateTestGroup(t, conn, "members")
	spec := testutil.OpenPoll([]string{"Yes", "No"}, []string{"Red", "Blue"})
	spec.Groups = []string{group}
	src := testutil.CreatePoll(t, conn, spec)
	testutil.CastTestVote(t, conn, src.ID, voter, map[string]string{
		src.Questions[0].ID: src.Questions[0].Answers[0].ID,
		src.Questions[1].ID: src.Questions[1].Answers[1].ID,
	})

	dup, err := polls.Duplicate(ctx, src.ID, "admin2")
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, models.StatusDraft, dup.Status)
	assert.Equal(t, src.Title, dup.Title)
	assert.Equal(t, "admin2", dup.CreatedBy)
	assert.True(t, dup.StartsAt.Equal(testutil.Now))
	assert.True(t, dup.EndsAt.Equal(testutil.Now.Add(7*24*time.Hour)))
	assert.Equal(t, []string{group}, dup.TargetGroups)

	require.Len(t, dup.Questions, 2)
	for i, q := range dup.Questions {
		require.Len(t, q.Answers, 3)
		assert.Equal(t, src.Questions[i].Text, q.Text)
		for j, a := range q.Answers {
			assert.Equal(t, src.Questions[i].Answers[j].Text, a.Text)
			assert.Equal(t, src.Questions[i].Answers[j].IsAbstain, a.IsAbstain)
			assert.NotEqual(t, src.Questions[i].Answers[j].ID, a.ID)
		}
	}

	assert.Equal(t, 0, testutil.CountRows(t, conn, "vote", "poll_id = $1", dup.ID))
	assert.Equal(t, 2, testutil.CountRows(t, conn, "vote", "poll_id = $1", src.ID))
}

func TestPolls_DuplicateWithoutQuestions(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)

	src := testutil.CreatePoll(t, conn, testutil.OpenPoll())

	_, err := polls.Duplicate(context.Background(), src.ID, "admin")
	assert.ErrorIs(t, err, models.ErrNoQuestions)
	assert.Equal(t, 1, testutil.CountRows(t, conn, "poll", ""))
}

func TestPolls_PublishAndClose(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)
	ctx := context.Background()

	p, err := polls.Create(ctx, validPollInput(), "admin")
	require.NoError(t, err)

	_, err = polls.Close(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrPollNotActive, "drafts cannot be closed")

	opened, err := polls.Publish(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, opened.Status)

	_, err = polls.Publish(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrNotEditable)

	closed, err := polls.Close(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)

	empty := testutil.CreatePoll(t, conn, testutil.PollSpec{Status: models.StatusDraft, StartsAt: testutil.Now, EndsAt: testutil.Now.Add(time.Hour)})
	_, err = polls.Publish(ctx, empty.ID)
	assert.ErrorIs(t, err, models.ErrNoQuestions)
}

func TestPolls_List(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	polls := newPolls(conn)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := polls.Create(ctx, validPollInput(), "admin")
		require.NoError(t, err)
	}
	testutil.CreatePoll(t, conn, testutil.OpenPoll([]string{"Yes", "No"}))

	all, err := polls.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.Len(t, all.Polls, 4)

	drafts, err := polls.List(ctx, repository.ListOptions{Status: models.StatusDraft, PerPage: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, drafts.Total)
	assert.Len(t, drafts.Polls, 1)
	assert.Empty(t, drafts.Polls[0].Questions, "lists carry no questions")

	public, err := polls.List(ctx, repository.ListOptions{HideDrafts: true})
	require.NoError(t, err)
	assert.Equal(t, 1, public.Total)
	require.Len(t, public.Polls, 1)
	assert.Equal(t, models.StatusOpen, public.Polls[0].Status)

	beyond, err := polls.List(ctx, repository.ListOptions{Page: math.MaxInt64 / 20})
	require.NoError(t, err)
	assert.Equal(t, 4, beyond.Total)
	assert.Empty(t, beyond.Polls)
}
