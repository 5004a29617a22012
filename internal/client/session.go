package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"proctoring/internal/proctor"
)

// Session is a logged-in student's exam session. It buffers the latest clock
// and risk score between syncs.
type Session struct {
	api       *Client
	StudentID string
	token     string

	mu        sync.Mutex
	started   time.Time
	elapsed   time.Duration
	riskScore int
	lastSync  time.Time
}

// Login verifies credentials and opens a session.
func Login(ctx context.Context, api *Client, name, password string) (*Session, error) {
	v, err := api.Verify(ctx, name, password)
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, errors.New("invalid name or password")
	}
	return &Session{api: api, StudentID: v.StudentID, token: v.Token}, nil
}

// Start marks the student active and starts the exam clock.
func (s *Session) Start(ctx context.Context, now time.Time) (Student, error) {
	s.mu.Lock()
	s.started = now
	s.elapsed = 0
	s.mu.Unlock()
	return s.api.UpdateStatus(ctx, s.token, s.StudentID, proctor.StatusActive)
}

// End marks the student offline.
func (s *Session) End(ctx context.Context) (Student, error) {
	return s.api.UpdateStatus(ctx, s.token, s.StudentID, proctor.StatusOffline)
}

// Tick advances the exam clock to now.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started.IsZero() {
		s.elapsed = now.Sub(s.started)
	}
}

// AddRisk raises the buffered risk score.
func (s *Session) AddRisk(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskScore += delta
	return s.riskScore
}

// Report records an activity event and adds its risk to the session score.
func (s *Session) Report(ctx context.Context, eventType, details string, risk int) (Activity, error) {
	total := s.AddRisk(risk)
	return s.api.CreateActivity(ctx, s.token, Activity{
		StudentID: s.StudentID,
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Details:   details,
		RiskScore: total,
	})
}

// Elapsed returns the clock as HH:MM:SS.
func (s *Session) Elapsed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FormatElapsed(s.elapsed)
}

// LastSync returns when Sync last succeeded.
func (s *Session) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Sync pushes the buffered risk score and clock. It stops at the first
// failed write.
func (s *Session) Sync(ctx context.Context) error {
	s.mu.Lock()
	score, elapsed := s.riskScore, FormatElapsed(s.elapsed)
	s.mu.Unlock()

	if _, err := s.api.UpdateRiskScore(ctx, s.token, s.StudentID, score); err != nil {
		return fmt.Errorf("sync risk score: %w", err)
	}
	if _, err := s.api.UpdateTimeElapsed(ctx, s.token, s.StudentID, elapsed); err != nil {
		return fmt.Errorf("sync time elapsed: %w", err)
	}
	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
	return nil
}

// FormatElapsed renders d as HH:MM:SS. Hours do not wrap at 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
