// Package client talks to the proctoring REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"proctoring/internal/proctor"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("proctor api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Student mirrors the API's student summary.
type Student struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Exam        string         `json:"exam"`
	Status      proctor.Status `json:"status"`
	TimeElapsed string         `json:"timeElapsed"`
	RiskScore   int            `json:"riskScore"`
}

// Activity mirrors an activity event, enriched when listed across students.
type Activity struct {
	ID          string    `json:"id,omitempty"`
	StudentID   string    `json:"studentId"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Details     string    `json:"details,omitempty"`
	RiskScore   int       `json:"riskScore"`
	StudentName string    `json:"studentName,omitempty"`
	Exam        string    `json:"exam,omitempty"`
}

// Verification is the result of a credential check.
type Verification struct {
	Valid     bool   `json:"valid"`
	StudentID string `json:"studentId,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// Client calls the proctoring API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with a short timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("proctor api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateStudent registers a student. An empty password falls back to the name server-side.
func (c *Client) CreateStudent(ctx context.Context, name, exam, password string) (Student, error) {
	var out Student
	in := map[string]string{"name": name, "exam": exam}
	if password != "" {
		in["password"] = password
	}
	err := c.do(ctx, http.MethodPost, "/api/students", "", in, &out)
	return out, err
}

// ListStudents returns every student, newest first.
func (c *Client) ListStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	err := c.do(ctx, http.MethodGet, "/api/students", "", nil, &out)
	return out, err
}

// GetStudent fetches one student.
func (c *Client) GetStudent(ctx context.Context, id string) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodGet, "/api/students/"+id, "", nil, &out)
	return out, err
}

// UpdateStatus requests a status change. The server may keep an elevated status.
func (c *Client) UpdateStatus(ctx context.Context, token, id string, status proctor.Status) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodPatch, "/api/students/"+id+"/status", token, map[string]proctor.Status{"status": status}, &out)
	return out, err
}

// UpdateRiskScore reports the current risk score.
func (c *Client) UpdateRiskScore(ctx context.Context, token, id string, score int) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodPatch, "/api/students/"+id+"/risk-score", token, map[string]int{"riskScore": score}, &out)
	return out, err
}

// UpdateTimeElapsed reports the exam clock.
func (c *Client) UpdateTimeElapsed(ctx context.Context, token, id, elapsed string) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodPatch, "/api/students/"+id+"/time-elapsed", token, map[string]string{"timeElapsed": elapsed}, &out)
	return out, err
}

// Verify checks credentials.
func (c *Client) Verify(ctx context.Context, name, password string) (Verification, error) {
	var out Verification
	err := c.do(ctx, http.MethodPost, "/api/students/verify", "", map[string]string{"name": name, "password": password}, &out)
	return out, err
}

// DeleteStudent removes one student.
func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/students/"+id, "", nil, nil)
}

// ResetStudents deletes every student and returns the count.
func (c *Client) ResetStudents(ctx context.Context) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/students/reset/all", "", nil, &out)
	return out.Deleted, err
}

// CreateActivity records an activity event.
func (c *Client) CreateActivity(ctx context.Context, token string, a Activity) (Activity, error) {
	var out Activity
	err := c.do(ctx, http.MethodPost, "/api/activities", token, a, &out)
	return out, err
}

// ListActivities returns all events with student names.
func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	var out []Activity
	err := c.do(ctx, http.MethodGet, "/api/activities", "", nil, &out)
	return out, err
}

// ListStudentActivities returns the events of one student.
func (c *Client) ListStudentActivities(ctx context.Context, id string) ([]Activity, error) {
	var out []Activity
	err := c.do(ctx, http.MethodGet, "/api/activities/student/"+id, "", nil, &out)
	return out, err
}
