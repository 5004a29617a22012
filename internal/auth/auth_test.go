package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("proctor", "k", time.Hour)
	tok, err := iss.Issue("s-1", RoleStudent)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := iss.Parse(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "s-1", claims.Subject)
	assert.Equal(t, RoleStudent, claims.Role)
}

func TestParse_Rejects(t *testing.T) {
	iss := NewIssuer("proctor", "k", time.Hour)
	tok, err := iss.Issue("s-1", RoleStudent)
	require.NoError(t, err)

	_, err = NewIssuer("proctor", "other", time.Hour).Parse(tok.Value)
	assert.Error(t, err, "wrong key")

	_, err = NewIssuer("someone-else", "k", time.Hour).Parse(tok.Value)
	assert.Error(t, err, "wrong issuer")

	expired := NewIssuer("proctor", "k", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue("s-1", RoleStudent)
	require.NoError(t, err)
	_, err = iss.Parse(old.Value)
	assert.Error(t, err, "expired")
}

func newSessionRouter(iss *Issuer, required bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.PATCH("/students/:id", StudentSession(iss, required), func(c *gin.Context) {
		if !Authorized(c, c.Param("id")) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestStudentSession(t *testing.T) {
	iss := NewIssuer("proctor", "k", time.Hour)
	tok, err := iss.Issue("s-1", RoleStudent)
	require.NoError(t, err)

	cases := []struct {
		name     string
		required bool
		path     string
		header   string
		want     int
	}{
		{"optional without token", false, "/students/s-1", "", http.StatusOK},
		{"required without token", true, "/students/s-1", "", http.StatusUnauthorized},
		{"own student", true, "/students/s-1", "Bearer " + tok.Value, http.StatusOK},
		{"other student", false, "/students/s-2", "Bearer " + tok.Value, http.StatusForbidden},
		{"garbage token", false, "/students/s-1", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", false, "/students/s-1", "Basic abc", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newSessionRouter(iss, tc.required)
			req := httptest.NewRequest(http.MethodPatch, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
