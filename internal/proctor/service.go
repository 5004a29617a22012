package proctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"proctoring/internal/metrics"
	"proctoring/internal/queue"
)

// ServiceConfig wires optional collaborators into a Service.
type ServiceConfig struct {
	Logger *slog.Logger
	// Publisher receives every recorded activity event. Nil disables fan-out.
	Publisher queue.Queue
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Service applies the proctoring rules on top of the stores.
type Service struct {
	students  StudentStore
	events    EventStore
	publisher queue.Queue
	logger    *slog.Logger
	cost      int
}

// NewService creates a service backed by the given stores.
func NewService(students StudentStore, events EventStore, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		students:  students,
		events:    events,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		cost:      cfg.BcryptCost,
	}
}

// Register creates a student in the offline state. An empty password falls
// back to the student's name.
func (s *Service) Register(ctx context.Context, name, exam, password string) (Student, error) {
	name, exam = strings.TrimSpace(name), strings.TrimSpace(exam)
	if name == "" || exam == "" {
		return Student{}, fmt.Errorf("%w: name and exam", ErrMissingField)
	}
	if password == "" {
		password = name
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Student{}, fmt.Errorf("hash password: %w", err)
	}
	st, err := s.students.CreateStudent(ctx, Student{
		Name:         name,
		Exam:         exam,
		PasswordHash: string(hash),
		Status:       StatusOffline,
		TimeElapsed:  DefaultTimeElapsed,
	})
	if err != nil {
		return Student{}, fmt.Errorf("create student: %w", err)
	}
	s.logger.Info("student registered", "student_id", st.StudentID, "exam", st.Exam)
	return st, nil
}

// List returns all students, newest first.
func (s *Service) List(ctx context.Context) ([]Student, error) {
	return s.students.ListStudents(ctx)
}

// Get returns one student.
func (s *Service) Get(ctx context.Context, studentID string) (Student, error) {
	return s.students.GetStudent(ctx, studentID)
}

// UpdateStatus stores the requested status unless that would clear a flagged
// or high-risk student back to active.
func (s *Service) UpdateStatus(ctx context.Context, studentID string, requested Status) (Student, error) {
	if !requested.Valid() {
		return Student{}, fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}
	current, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, err
	}
	next, suppressed := ReconcileStatus(current.Status, requested)
	if suppressed {
		metrics.DowngradesSuppressed.Inc()
		s.logger.Warn("status downgrade suppressed",
			"student_id", current.StudentID,
			"name", current.Name,
			"current", current.Status,
			"requested", requested,
		)
	}
	return s.students.UpdateStudent(ctx, studentID, StudentUpdate{Status: &next})
}

// UpdateRiskScore overwrites the risk score and escalates the status when a
// threshold is crossed.
func (s *Service) UpdateRiskScore(ctx context.Context, studentID string, score int) (Student, error) {
	if score < 0 {
		return Student{}, ErrInvalidRiskScore
	}
	current, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, err
	}
	upd := StudentUpdate{RiskScore: &score}
	if next := EscalateStatus(current.Status, score); next != current.Status {
		upd.Status = &next
		metrics.Escalations.WithLabelValues(string(next)).Inc()
		s.logger.Info("status escalated",
			"student_id", studentID,
			"from", current.Status,
			"to", next,
			"risk_score", score,
		)
	}
	return s.students.UpdateStudent(ctx, studentID, upd)
}

// UpdateTimeElapsed stores the client-reported exam clock verbatim.
func (s *Service) UpdateTimeElapsed(ctx context.Context, studentID, elapsed string) (Student, error) {
	return s.students.UpdateStudent(ctx, studentID, StudentUpdate{TimeElapsed: &elapsed})
}

// VerifyResult is the outcome of a credential check.
type VerifyResult struct {
	Valid     bool
	StudentID string
}

// Verify checks a name and password pair. A mismatch is not an error.
func (s *Service) Verify(ctx context.Context, name, password string) (VerifyResult, error) {
	st, err := s.students.FindStudentByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("verify failed", "reason", "unknown name")
		return VerifyResult{}, nil
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("find student: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("verify failed", "reason", "password mismatch", "student_id", st.StudentID)
		return VerifyResult{}, nil
	}
	return VerifyResult{Valid: true, StudentID: st.StudentID}, nil
}

// Delete removes one student.
func (s *Service) Delete(ctx context.Context, studentID string) error {
	return s.students.DeleteStudent(ctx, studentID)
}

// Reset deletes every student and returns how many were removed.
func (s *Service) Reset(ctx context.Context) (int64, error) {
	n, err := s.students.DeleteAllStudents(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset students: %w", err)
	}
	s.logger.Info("students reset", "deleted", n)
	return n, nil
}

// RecordActivity appends an event and hands it to the publisher. A publish
// failure is logged and does not fail the call.
func (s *Service) RecordActivity(ctx context.Context, evt ActivityEvent) (ActivityEvent, error) {
	evt.StudentID = strings.TrimSpace(evt.StudentID)
	evt.Type = strings.TrimSpace(evt.Type)
	if evt.StudentID == "" || evt.Type == "" {
		return ActivityEvent{}, fmt.Errorf("%w: studentId and type", ErrMissingField)
	}
	if evt.RiskScore < 0 {
		return ActivityEvent{}, ErrInvalidRiskScore
	}
	saved, err := s.events.InsertEvent(ctx, evt)
	if err != nil {
		return ActivityEvent{}, fmt.Errorf("insert event: %w", err)
	}
	metrics.ActivityEvents.WithLabelValues(saved.Type).Inc()

	if s.publisher != nil {
		body, err := json.Marshal(saved)
		if err == nil {
			err = s.publisher.Publish(ctx, queue.Message{Type: queue.TypeActivity, Body: body})
		}
		if err != nil {
			s.logger.Error("activity publish failed", "event_id", saved.ID, "err", err)
		}
	}
	return saved, nil
}

// StudentActivity lists the events of one student, newest first.
func (s *Service) StudentActivity(ctx context.Context, studentID string) ([]ActivityEvent, error) {
	return s.events.ListEvents(ctx, studentID)
}

// AllActivity lists every event joined with the student's name and exam.
// Events of deleted students keep empty display fields.
func (s *Service) AllActivity(ctx context.Context) ([]EnrichedEvent, error) {
	events, err := s.events.ListEvents(ctx, "")
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Student, len(students))
	for _, st := range students {
		byID[st.StudentID] = st
	}
	out := make([]EnrichedEvent, 0, len(events))
	for _, evt := range events {
		st := byID[evt.StudentID]
		out = append(out, EnrichedEvent{ActivityEvent: evt, StudentName: st.Name, Exam: st.Exam})
	}
	return out, nil
}

// ResetActivity deletes every activity event.
func (s *Service) ResetActivity(ctx context.Context) (int64, error) {
	n, err := s.events.DeleteAllEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset events: %w", err)
	}
	s.logger.Info("activity reset", "deleted", n)
	return n, nil
}
