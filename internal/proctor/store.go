package proctor

import "context"

// StudentStore persists student records keyed by StudentID.
type StudentStore interface {
	CreateStudent(ctx context.Context, s Student) (Student, error)
	// ListStudents returns every student, newest first.
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, studentID string) (Student, error)
	// FindStudentByName returns a single student with the given name. Names
	// are not unique; the newest match wins.
	FindStudentByName(ctx context.Context, name string) (Student, error)
	UpdateStudent(ctx context.Context, studentID string, upd StudentUpdate) (Student, error)
	DeleteStudent(ctx context.Context, studentID string) error
	DeleteAllStudents(ctx context.Context) (int64, error)
}

// EventStore is the append-only activity log.
type EventStore interface {
	InsertEvent(ctx context.Context, evt ActivityEvent) (ActivityEvent, error)
	// ListEvents returns events newest first. An empty studentID lists all.
	ListEvents(ctx context.Context, studentID string) ([]ActivityEvent, error)
	DeleteAllEvents(ctx context.Context) (int64, error)
}

// Store is a full backend: both stores plus connection lifecycle.
type Store interface {
	StudentStore
	EventStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
