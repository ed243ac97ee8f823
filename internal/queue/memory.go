package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Queue for tests and single-process runs.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]Task
	leases map[int64]time.Time
	lease  time.Duration
	now    func() time.Time
}

// NewMemory creates an empty queue whose leases last for lease.
func NewMemory(lease time.Duration) *Memory {
	return &Memory{
		tasks:  make(map[int64]Task),
		leases: make(map[int64]time.Time),
		lease:  lease,
		now:    time.Now,
	}
}

func (m *Memory) Enqueue(_ context.Context, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task.ID = m.nextID
	if task.RunAt.IsZero() {
		task.RunAt = m.now()
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *Memory) Dequeue(_ context.Context) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var due []Task
	for id, t := range m.tasks {
		if t.RunAt.After(now) {
			continue
		}
		if until, ok := m.leases[id]; ok && until.After(now) {
			continue
		}
		due = append(due, t)
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].RunAt.Equal(due[j].RunAt) {
			return due[i].RunAt.Before(due[j].RunAt)
		}
		return due[i].ID < due[j].ID
	})
	t := due[0]
	m.leases[t.ID] = now.Add(m.lease)
	return &t, nil
}

func (m *Memory) Ack(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	delete(m.leases, taskID)
	return nil
}

// Len returns the number of tasks not yet acked.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Pending returns a snapshot of the tasks not yet acked, oldest first.
func (m *Memory) Pending() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
