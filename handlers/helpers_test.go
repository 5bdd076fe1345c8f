package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/orgvote/cliparse"
	"github.com/danielhkuo/orgvote/mail"
	"github.com/danielhkuo/orgvote/testutil"
)

func newTestServices(t *testing.T) (*sql.DB, *Services) {
	t.Helper()
	return newTestServicesWith(t, testutil.GetTestConfig(), mail.LogSender{})
}

func newTestServicesWith(t *testing.T, cfg cliparse.Config, sender mail.Sender) (*sql.DB, *Services) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewServices(db, cfg, Options{Clock: testutil.Clock(), Mailer: sender})
	return db, svc
}

// serve runs h behind a mux so that path values are populated.
func serve(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func merge(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
