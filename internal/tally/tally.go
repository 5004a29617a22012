// Package tally keeps per-student counts of activity events by type.
package tally

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Tally counts activity events per student and event type.
type Tally interface {
	Incr(ctx context.Context, studentID, eventType string) error
	Summary(ctx context.Context, studentID string) (map[string]int64, error)
	Reset(ctx context.Context) error
}

const keyPrefix = "proctor:activity:"

// RedisTally stores one hash per student: field = event type, value = count.
type RedisTally struct {
	client *redis.Client
}

// NewRedisTally creates a tally on client.
func NewRedisTally(client *redis.Client) *RedisTally {
	return &RedisTally{client: client}
}

func (t *RedisTally) Incr(ctx context.Context, studentID, eventType string) error {
	return t.client.HIncrBy(ctx, keyPrefix+studentID, eventType, 1).Err()
}

func (t *RedisTally) Summary(ctx context.Context, studentID string) (map[string]int64, error) {
	raw, err := t.client.HGetAll(ctx, keyPrefix+studentID).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// Reset deletes every student hash.
func (t *RedisTally) Reset(ctx context.Context) error {
	iter := t.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return t.client.Del(ctx, keys...).Err()
}

// Memory is a process-local Tally.
type Memory struct {
	mu     sync.Mutex
	counts map[string]map[string]int64
}

// NewMemory creates an empty tally.
func NewMemory() *Memory {
	return &Memory{counts: make(map[string]map[string]int64)}
}

func (m *Memory) Incr(_ context.Context, studentID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.counts[studentID]
	if !ok {
		byType = make(map[string]int64)
		m.counts[studentID] = byType
	}
	byType[eventType]++
	return nil
}

func (m *Memory) Summary(_ context.Context, studentID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counts[studentID]))
	for k, v := range m.counts[studentID] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]map[string]int64)
	return nil
}
