package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"proctoring/internal/auth"
	"proctoring/internal/proctor"
	"proctoring/internal/queue"
	"proctoring/internal/tally"
)

type testServer struct {
	router *gin.Engine
	tally  *tally.Memory
	queue  *queue.InMemory
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := proctor.NewMemoryRepository()
	q := queue.NewInMemory(64)
	svc := proctor.NewService(repo, repo, proctor.ServiceConfig{
		Logger:     logger,
		Publisher:  q,
		BcryptCost: bcrypt.MinCost,
	})
	tl := tally.NewMemory()
	opts.Tally = tl
	opts.Logger = logger
	if opts.Issuer == nil {
		opts.Issuer = auth.NewIssuer("test", "secret", time.Hour)
	}
	r := gin.New()
	New(svc, opts).Register(r)
	return &testServer{router: r, tally: tl, queue: q}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type studentJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Exam        string `json:"exam"`
	Status      string `json:"status"`
	TimeElapsed string `json:"timeElapsed"`
	RiskScore   int    `json:"riskScore"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) create(t *testing.T, name, exam, password string) studentJSON {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/students", gin.H{"name": name, "exam": exam, "password": password})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[studentJSON](t, w)
}

func TestCreateStudent(t *testing.T) {
	s := newTestServer(t, Options{})
	w := s.do(t, http.MethodPost, "/api/students", gin.H{"name": "Ada", "exam": "Algebra", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "pw")

	st := decode[studentJSON](t, w)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, "offline", st.Status)
	assert.Equal(t, "00:00:00", st.TimeElapsed)
	assert.Zero(t, st.RiskScore)

	w = s.do(t, http.MethodPost, "/api/students", gin.H{"name": "Ada"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRiskAndStatusFlow(t *testing.T) {
	s := newTestServer(t, Options{})
	st := s.create(t, "Ada", "Algebra", "")

	w := s.do(t, http.MethodPatch, "/api/students/"+st.ID+"/risk-score", gin.H{"riskScore": 55})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[studentJSON](t, w)
	assert.Equal(t, "flagged", got.Status)
	assert.Equal(t, 55, got.RiskScore)

	w = s.do(t, http.MethodPatch, "/api/students/"+st.ID+"/status", gin.H{"status": "active"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flagged", decode[studentJSON](t, w).Status)

	w = s.do(t, http.MethodPatch, "/api/students/"+st.ID+"/risk-score", gin.H{"riskScore": 0})
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[studentJSON](t, w)
	assert.Equal(t, "flagged", got.Status)
	assert.Zero(t, got.RiskScore)

	w = s.do(t, http.MethodPatch, "/api/students/"+st.ID+"/time-elapsed", gin.H{"timeElapsed": "00:05:00"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "00:05:00", decode[studentJSON](t, w).TimeElapsed)

	w = s.do(t, http.MethodGet, "/api/students/"+st.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[studentJSON](t, w)
	assert.Equal(t, "flagged", got.Status)
	assert.Equal(t, "00:05:00", got.TimeElapsed)
}

func TestUpdateValidation(t *testing.T) {
	s := newTestServer(t, Options{})
	st := s.create(t, "Ada", "Algebra", "")

	cases := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown status", "/api/students/" + st.ID + "/status", gin.H{"status": "napping"}, http.StatusBadRequest},
		{"missing status", "/api/students/" + st.ID + "/status", gin.H{}, http.StatusBadRequest},
		{"negative score", "/api/students/" + st.ID + "/risk-score", gin.H{"riskScore": -3}, http.StatusBadRequest},
		{"missing score", "/api/students/" + st.ID + "/risk-score", gin.H{}, http.StatusBadRequest},
		{"status of ghost", "/api/students/ghost/status", gin.H{"status": "offline"}, http.StatusNotFound},
		{"score of ghost", "/api/students/ghost/risk-score", gin.H{"riskScore": 10}, http.StatusNotFound},
		{"time of ghost", "/api/students/ghost/time-elapsed", gin.H{"timeElapsed": "00:00:01"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPatch, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestListDeleteAndReset(t *testing.T) {
	s := newTestServer(t, Options{})
	first := s.create(t, "Ada", "Algebra", "")
	second := s.create(t, "Grace", "Physics", "")

	w := s.do(t, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]studentJSON](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/students/ghost", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/students/ghost", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/students/"+first.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/students/"+first.ID, nil).Code)

	w = s.do(t, http.MethodDelete, "/api/students/reset/all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["deleted"])

	w = s.do(t, http.MethodGet, "/api/students", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/api/students/reset/all", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyAndSession(t *testing.T) {
	s := newTestServer(t, Options{})
	ada := s.create(t, "Ada", "Algebra", "pw")
	grace := s.create(t, "Grace", "Physics", "")

	w := s.do(t, http.MethodPost, "/api/students/verify", gin.H{"name": "Ada", "password": "nope"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/students/verify", gin.H{"name": "Ada", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[verifyResponse](t, w)
	assert.True(t, res.Valid)
	assert.Equal(t, ada.ID, res.StudentID)
	require.NotEmpty(t, res.Token)

	bearer := "Bearer " + res.Token
	w = s.do(t, http.MethodPatch, "/api/students/"+ada.ID+"/status", gin.H{"status": "active"}, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/api/students/"+grace.ID+"/status", gin.H{"status": "active"}, "Authorization", bearer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/activities", gin.H{"studentId": grace.ID, "type": "focus-loss"}, "Authorization", bearer)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionRequired(t *testing.T) {
	s := newTestServer(t, Options{SessionRequired: true})
	st := s.create(t, "Ada", "Algebra", "pw")

	w := s.do(t, http.MethodPatch, "/api/students/"+st.ID+"/risk-score", gin.H{"riskScore": 10})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	res := decode[verifyResponse](t, s.do(t, http.MethodPost, "/api/students/verify", gin.H{"name": "Ada", "password": "pw"}))
	w = s.do(t, http.MethodPatch, "/api/students/"+st.ID+"/risk-score", gin.H{"riskScore": 10}, "Authorization", "Bearer "+res.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestActivities(t *testing.T) {
	s := newTestServer(t, Options{})
	ada := s.create(t, "Ada", "Algebra", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tally.Consume(ctx, s.queue, s.tally, nil) }()

	w := s.do(t, http.MethodPost, "/api/activities", gin.H{
		"studentId": ada.ID,
		"timestamp": "2026-03-01T09:00:00.000Z",
		"type":      "copy-attempt",
		"details":   "ctrl+c",
		"riskScore": 20,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/activities", gin.H{
		"studentId": ada.ID,
		"timestamp": "2026-03-01T09:01:00.000Z",
		"type":      "focus-loss",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/api/activities", gin.H{"studentId": ada.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/activities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]map[string]any](t, w)
	require.Len(t, all, 2)
	assert.Equal(t, "focus-loss", all[0]["type"])
	assert.Equal(t, "Ada", all[1]["studentName"])
	assert.Equal(t, "Algebra", all[1]["exam"])

	w = s.do(t, http.MethodGet, "/api/activities/student/"+ada.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/activities/student/nobody", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.Eventually(t, func() bool {
		sum, _ := s.tally.Summary(ctx, ada.ID)
		return len(sum) == 2
	}, time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodGet, "/api/activities/student/"+ada.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"studentId":"`+ada.ID+`","total":2,"byType":{"copy-attempt":1,"focus-loss":1}}`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/api/activities/reset/all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/activities", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	ok := newTestServer(t, Options{Checks: map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	}})
	w := ok.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","store":true}`, w.Body.String())

	bad := newTestServer(t, Options{Checks: map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("down") },
	}})
	w = bad.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
