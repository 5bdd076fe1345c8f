package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/orgvote/models"
	"github.com/danielhkuo/orgvote/testutil"
)

func pollInput() models.PollInput {
	return models.PollInput{
		Title:    "Board election",
		StartsAt: testutil.Now.Add(-time.Hour),
		EndsAt:   testutil.Now.Add(48 * time.Hour),
		Notify:   true,
		Questions: []models.QuestionInput{
			{Text: "Chair?", Answers: []models.AnswerInput{{Text: "Ann"}, {Text: "Ben"}}},
		},
	}
}

func TestCreatePoll(t *testing.T) {
	_, svc := newTestServices(t)
	h := NewPollHandler(svc)

	t.Run("requires admin key", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/polls", pollInput(), testutil.AsUser("u-1"))
		w := serve("POST /polls", h.CreatePoll, req)
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("validation errors list fields", func(t *testing.T) {
		in := pollInput()
		in.Title = ""
		in.EndsAt = in.StartsAt
		w := serve("POST /polls", h.CreatePoll, testutil.MakeRequest("POST", "/polls", in, testutil.AsAdmin()))
		testutil.AssertStatus(t, w, http.StatusBadRequest)

		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		assert.Equal(t, models.ReasonValidation, resp.Reason)
		assert.Contains(t, resp.Fields, "title")
		assert.Contains(t, resp.Fields, "ends_at")
	})

	t.Run("success", func(t *testing.T) {
		w := serve("POST /polls", h.CreatePoll, testutil.MakeRequest("POST", "/polls", pollInput(), testutil.AsAdmin()))
		testutil.AssertStatus(t, w, http.StatusCreated)

		var poll models.Poll
		testutil.AssertJSON(t, w, &poll)
		assert.Equal(t, models.StatusDraft, poll.Status)
		require.Len(t, poll.Questions, 1)
		assert.Len(t, poll.Questions[0].Answers, 3)
		assert.Equal(t, "admin", poll.CreatedBy)
	})
}

func TestCreatePoll_InvalidJSON(t *testing.T) {
	_, svc := newTestServices(t)
	h := NewPollHandler(svc)

	req := testutil.MakeRequest("POST", "/polls", "not an object", testutil.AsAdmin())
	w := serve("POST /polls", h.CreatePoll, req)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, "Invalid JSON", resp.Message)
}

func TestGetPoll_Detail(t *testing.T) {
	conn, svc := newTestServices(t)
	h := NewPollHandler(svc)

	voter := testutil.CreateTestUser(t, conn, "voter", testutil.Profile("voter"))
	partial := testutil.CreateTestUser(t, conn, "partial", map[string]string{"nickname": "partial", "email": "p@example.com"})
	poll := testutil.CreatePoll(t, conn, testutil.OpenPoll([]string{"Yes", "No"}))

	get := func(headers map[string]string) models.PollDetail {
		t.Helper()
		w := serve("GET /polls/{id}", h.GetPoll, testutil.MakeRequest("GET", "/polls/"+poll.ID, nil, headers))
		testutil.AssertStatus(t, w, http.StatusOK)
		var d models.PollDetail
		testutil.AssertJSON(t, w, &d)
		return d
	}

	d := get(nil)
	assert.True(t, d.IsActive)
	assert.False(t, d.IsEnded)
	assert.Equal(t, models.ReasonNotLoggedIn, d.EligibleError)
	require.Len(t, d.Poll.Questions, 1)

	d = get(testutil.AsUser(partial))
	assert.Equal(t, models.ReasonIncompleteProfile, d.EligibleError)
	assert.ElementsMatch(t, []string{"first_name", "last_name", "city"}, d.MissingFields)

	d = get(testutil.AsUser(voter))
	assert.Empty(t, d.EligibleError)
	assert.False(t, d.HasVoted)

	q := poll.Questions[0]
	testutil.CastTestVote(t, conn, poll.ID, voter, map[string]string{q.ID: q.Answers[0].ID})
	d = get(testutil.AsUser(voter))
	assert.True(t, d.HasVoted)
	assert.Equal(t, models.ReasonAlreadyVoted, d.EligibleError)
}

func TestGetPoll_DraftHidden(t *testing.T) {
	conn, svc := newTestServices(t)
	h := NewPollHandler(svc)

	spec := testutil.OpenPoll([]string{"Yes", "No"})
	spec.Status = models.StatusDraft
	poll := testutil.CreatePoll(t, conn, spec)

	w := serve("GET /polls/{id}", h.GetPoll, testutil.MakeRequest("GET", "/polls/"+poll.ID, nil, nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = serve("GET /polls/{id}", h.GetPoll, testutil.MakeRequest("GET", "/polls/"+poll.ID, nil, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = serve("GET /polls", h.ListPolls, testutil.MakeRequest("GET", "/polls", nil, nil))
	var list models.PollList
	testutil.AssertJSON(t, w, &list)
	assert.Equal(t, 0, list.Total)

	w = serve("GET /polls", h.ListPolls, testutil.MakeRequest("GET", "/polls?status=draft", nil, testutil.AsAdmin()))
	list = models.PollList{}
	testutil.AssertJSON(t, w, &list)
	assert.Equal(t, 1, list.Total)
}

func TestPollLifecycle(t *testing.T) {
	conn, svc := newTestServices(t)
	h := NewPollHandler(svc)
	testutil.CreateTestUser(t, conn, "member", testutil.Profile("member"))

	w := serve("POST /polls", h.CreatePoll, testutil.MakeRequest("POST", "/polls", pollInput(), testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var poll models.Poll
	testutil.AssertJSON(t, w, &poll)

	title := "Board election 2026"
	w = serve("PUT /polls/{id}", h.UpdatePoll, testutil.MakeRequest("PUT", "/polls/"+poll.ID, models.PollPatch{Title: &title}, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = serve("POST /polls/{id}/publish", h.PublishPoll, testutil.MakeRequest("POST", "/polls/"+poll.ID+"/publish", nil, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusOK)
	var published models.PublishPollResponse
	testutil.AssertJSON(t, w, &published)
	assert.Equal(t, models.StatusOpen, published.Poll.Status)
	assert.Equal(t, title, published.Poll.Title)
	require.NotEmpty(t, published.JobID, "notify starts an invitation job")

	job, err := svc.Jobs.Progress(t.Context(), published.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Total)

	w = serve("PUT /polls/{id}", h.UpdatePoll, testutil.MakeRequest("PUT", "/polls/"+poll.ID, models.PollPatch{Title: &title}, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusConflict)

	w = serve("POST /polls/{id}/duplicate", h.DuplicatePoll, testutil.MakeRequest("POST", "/polls/"+poll.ID+"/duplicate", nil, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var dup models.Poll
	testutil.AssertJSON(t, w, &dup)
	assert.Equal(t, models.StatusDraft, dup.Status)
	assert.NotEqual(t, poll.ID, dup.ID)

	w = serve("POST /polls/{id}/close", h.ClosePoll, testutil.MakeRequest("POST", "/polls/"+poll.ID+"/close", nil, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = serve("POST /polls/{id}/close", h.ClosePoll, testutil.MakeRequest("POST", "/polls/"+poll.ID+"/close", nil, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusConflict)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, models.ReasonPollNotActive, resp.Reason)

	w = serve("DELETE /polls/{id}", h.DeletePoll, testutil.MakeRequest("DELETE", "/polls/"+poll.ID, nil, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusNoContent)

	w = serve("DELETE /polls/{id}", h.DeletePoll, testutil.MakeRequest("DELETE", "/polls/"+poll.ID, nil, testutil.AsAdmin()))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
