package proctor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a process-local Store for demos and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	students map[string]Student
	events   []ActivityEvent
	now      func() time.Time
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		students: make(map[string]Student),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Ping(context.Context) error  { return nil }
func (r *MemoryRepository) Close(context.Context) error { return nil }

func (r *MemoryRepository) CreateStudent(_ context.Context, s Student) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.StudentID == "" {
		s.StudentID = uuid.NewString()
	}
	now := r.now()
	// Keep creation order strictly increasing so newest-first is stable.
	for _, existing := range r.students {
		if !now.After(existing.CreatedAt) {
			now = existing.CreatedAt.Add(time.Nanosecond)
		}
	}
	s.CreatedAt, s.UpdatedAt = now, now
	r.students[s.StudentID] = s
	return s, nil
}

func (r *MemoryRepository) ListStudents(context.Context) ([]Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Student, 0, len(r.students))
	for _, s := range r.students {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *MemoryRepository) GetStudent(_ context.Context, studentID string) (Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.students[studentID]
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) FindStudentByName(ctx context.Context, name string) (Student, error) {
	all, _ := r.ListStudents(ctx)
	for _, s := range all {
		if s.Name == name {
			return s, nil
		}
	}
	return Student{}, ErrNotFound
}

func (r *MemoryRepository) UpdateStudent(_ context.Context, studentID string, upd StudentUpdate) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[studentID]
	if !ok {
		return Student{}, ErrNotFound
	}
	upd.apply(&s)
	s.UpdatedAt = r.now()
	r.students[studentID] = s
	return s, nil
}

func (r *MemoryRepository) DeleteStudent(_ context.Context, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[studentID]; !ok {
		return ErrNotFound
	}
	delete(r.students, studentID)
	return nil
}

func (r *MemoryRepository) DeleteAllStudents(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.students))
	r.students = make(map[string]Student)
	return n, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, evt ActivityEvent) (ActivityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	now := r.now()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = now
	}
	evt.CreatedAt = now
	r.events = append(r.events, evt)
	return evt, nil
}

func (r *MemoryRepository) ListEvents(_ context.Context, studentID string) ([]ActivityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]ActivityEvent, 0, len(r.events))
	for i := len(r.events) - 1; i >= 0; i-- {
		if evt := r.events[i]; studentID == "" || evt.StudentID == studentID {
			res = append(res, evt)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	return res, nil
}

func (r *MemoryRepository) DeleteAllEvents(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.events))
	r.events = nil
	return n, nil
}
