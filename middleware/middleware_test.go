package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/orgvote/metrics"
	"github.com/danielhkuo/orgvote/models"
)

func TestWithLogging_PreservesResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"OK", http.StatusOK, "ok"},
		{"Created", http.StatusCreated, `{"id":"123"}`},
		{"BadRequest", http.StatusBadRequest, `{"error":"bad request"}`},
		{"InternalError", http.StatusInternalServerError, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			req := httptest.NewRequest("POST", "/api/test", nil)
			w := httptest.NewRecorder()
			handler(w, req)

			assert.Equal(t, tc.statusCode, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
		})
	}
}

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	handler := WithMetrics(m, "GET /polls/{id}", WithLogging(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, http.StatusNotFound, "nope")
	}))

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/polls/"+id, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "GET /polls/{id}", "Not Found")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))

	plain := func(w http.ResponseWriter, r *http.Request) {}
	assert.NotNil(t, WithMetrics(nil, "GET /", plain))
}

func TestJSONHelpers(t *testing.T) {
	w := httptest.NewRecorder()
	JSONResponse(w, http.StatusCreated, map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"message":"hello"}`, strings.TrimSpace(w.Body.String()))

	w = httptest.NewRecorder()
	ErrorResponse(w, http.StatusConflict, "poll already closed")
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, models.ErrorResponse{Error: "Conflict", Message: "poll already closed"}, resp)

	w = httptest.NewRecorder()
	re := models.NewReasonError(models.ReasonIncompleteProfile)
	re.MissingFields = []string{"city"}
	ReasonResponse(w, http.StatusForbidden, re)
	resp = models.ErrorResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, models.ReasonIncompleteProfile, resp.Reason)
	assert.Equal(t, []string{"city"}, resp.MissingFields)
	assert.Equal(t, "Forbidden", resp.Error)
}

func TestParseJSONBody(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"answers":{"q1":"a1"},"anonymous":true,"extra":1}`))
		var parsed models.CastVoteRequest
		require.NoError(t, ParseJSONBody(req, &parsed))
		assert.Equal(t, map[string]string{"q1": "a1"}, parsed.Answers)
		assert.True(t, parsed.Anonymous)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{invalid json}`))
		var parsed models.CastVoteRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var parsed models.CastVoteRequest
		assert.NoError(t, ParseJSONBody(req, &parsed))
		assert.Nil(t, parsed.Answers)
	})

	t.Run("oversized body", func(t *testing.T) {
		big := `{"status":"ready","answers":{"q":"` + strings.Repeat("x", maxBodyBytes) + `"}}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(big))
		var parsed models.SubmitResponseRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("handled"))
	})
	h := CORS(next)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/polls", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		allowed := w.Header().Get("Access-Control-Allow-Headers")
		assert.Contains(t, allowed, "X-User-ID")
		assert.Contains(t, allowed, "X-Admin-Key")
		assert.Contains(t, allowed, "Authorization")
	})

	t.Run("regular request without origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/polls", nil))
		assert.Equal(t, "handled", w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5678", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}
