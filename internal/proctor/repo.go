package proctor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists students and activity events in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS students (
	student_id    TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	exam          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'offline'
		CHECK (status IN ('active', 'offline', 'flagged', 'high-risk')),
	time_elapsed  TEXT NOT NULL DEFAULT '00:00:00',
	risk_score    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_students_name ON students(name);
CREATE INDEX IF NOT EXISTS idx_students_created ON students(created_at DESC);

CREATE TABLE IF NOT EXISTS activity_events (
	id          TEXT PRIMARY KEY,
	student_id  TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	type        TEXT NOT NULL,
	details     TEXT NOT NULL DEFAULT '',
	risk_score  INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activity_student ON activity_events(student_id);
CREATE INDEX IF NOT EXISTS idx_activity_time ON activity_events(occurred_at DESC);
`

// Migrate creates the tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the pool.
func (r *PostgresRepository) Close(context.Context) error {
	return r.db.Close()
}

const studentColumns = `student_id, name, exam, password_hash, status, time_elapsed, risk_score, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (Student, error) {
	var s Student
	var status string
	if err := row.Scan(&s.StudentID, &s.Name, &s.Exam, &s.PasswordHash, &status, &s.TimeElapsed, &s.RiskScore, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	s.Status = Status(status)
	return s, nil
}

// CreateStudent inserts a new student. StudentID is generated when empty.
func (r *PostgresRepository) CreateStudent(ctx context.Context, s Student) (Student, error) {
	if s.StudentID == "" {
		s.StudentID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (student_id, name, exam, password_hash, status, time_elapsed, risk_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+studentColumns,
		s.StudentID, s.Name, s.Exam, s.PasswordHash, string(s.Status), s.TimeElapsed, s.RiskScore)
	return scanStudent(row)
}

// ListStudents returns all students, newest first.
func (r *PostgresRepository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetStudent returns a single student by id.
func (r *PostgresRepository) GetStudent(ctx context.Context, studentID string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE student_id = $1`, studentID)
	return scanStudent(row)
}

// FindStudentByName returns the newest student with the given name.
func (r *PostgresRepository) FindStudentByName(ctx context.Context, name string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE name = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, name)
	return scanStudent(row)
}

// UpdateStudent applies the non-nil fields of upd and returns the new row.
func (r *PostgresRepository) UpdateStudent(ctx context.Context, studentID string, upd StudentUpdate) (Student, error) {
	var status, elapsed, score any
	if upd.Status != nil {
		status = string(*upd.Status)
	}
	if upd.TimeElapsed != nil {
		elapsed = *upd.TimeElapsed
	}
	if upd.RiskScore != nil {
		score = *upd.RiskScore
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE students
		SET status = COALESCE($2::text, status),
		    risk_score = COALESCE($3::integer, risk_score),
		    time_elapsed = COALESCE($4::text, time_elapsed),
		    updated_at = NOW()
		WHERE student_id = $1
		RETURNING `+studentColumns,
		studentID, status, score, elapsed)
	return scanStudent(row)
}

// DeleteStudent removes one student.
func (r *PostgresRepository) DeleteStudent(ctx context.Context, studentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE student_id = $1`, studentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllStudents wipes the students table.
func (r *PostgresRepository) DeleteAllStudents(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertEvent writes a new activity event.
func (r *PostgresRepository) InsertEvent(ctx context.Context, evt ActivityEvent) (ActivityEvent, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO activity_events (id, student_id, occurred_at, type, details, risk_score)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, evt.ID, evt.StudentID, evt.Timestamp, evt.Type, evt.Details, evt.RiskScore)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return ActivityEvent{}, err
	}
	return evt, nil
}

// ListEvents returns events, optionally filtered by student.
func (r *PostgresRepository) ListEvents(ctx context.Context, studentID string) ([]ActivityEvent, error) {
	query := `SELECT id, student_id, occurred_at, type, details, risk_score, created_at FROM activity_events`
	args := []any{}
	if studentID != "" {
		query += ` WHERE student_id = $1`
		args = append(args, studentID)
	}
	query += ` ORDER BY occurred_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ActivityEvent
	for rows.Next() {
		var evt ActivityEvent
		if err := rows.Scan(&evt.ID, &evt.StudentID, &evt.Timestamp, &evt.Type, &evt.Details, &evt.RiskScore, &evt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// DeleteAllEvents wipes the activity log.
func (r *PostgresRepository) DeleteAllEvents(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_events`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
