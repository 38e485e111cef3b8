package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps launches serialized as JSON so reads behave like a database
// round trip: callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	launches map[string]memoryRow
	order    []string
	events   map[string][]ApprovalEvent
}

type memoryRow struct {
	workerID string
	date     string
	status   Status
	data     []byte
}

type slot struct {
	workerID string
	date     string
}

func NewMemory() *Memory {
	return &Memory{
		launches: make(map[string]memoryRow),
		events:   make(map[string][]ApprovalEvent),
	}
}

func (m *Memory) FindActiveLaunch(_ context.Context, workerID, date string) (*Launch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.activeLocked(slot{workerID: workerID, date: date})
	if !ok {
		return nil, nil
	}
	l, err := m.decodeLocked(id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLaunch checks the slot and inserts under one lock, which is what the
// unique index does for the SQL store.
func (m *Memory) CreateLaunch(_ context.Context, l Launch, ev ApprovalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.launches[l.ID]; exists {
		return fmt.Errorf("launch %s already exists", l.ID)
	}
	if l.Status.HoldsDay() {
		if _, taken := m.activeLocked(slot{workerID: l.WorkerID, date: l.Date}); taken {
			return ErrDuplicateActiveLaunch
		}
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode launch: %w", err)
	}
	m.launches[l.ID] = memoryRow{workerID: l.WorkerID, date: l.Date, status: l.Status, data: data}
	m.order = append(m.order, l.ID)
	m.events[l.ID] = append(m.events[l.ID], ev)
	return nil
}

func (m *Memory) GetLaunch(_ context.Context, id string) (Launch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decodeLocked(id)
}

func (m *Memory) UpdateLaunch(_ context.Context, l Launch, expected Status, ev ApprovalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.launches[l.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLaunchNotFound, l.ID)
	}
	if row.status != expected {
		return ErrConcurrentModification
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode launch: %w", err)
	}
	m.launches[l.ID] = memoryRow{workerID: row.workerID, date: row.date, status: l.Status, data: data}
	m.events[l.ID] = append(m.events[l.ID], ev)
	return nil
}

func (m *Memory) ListLaunches(_ context.Context, f Filter) ([]Launch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Launch{}
	for _, id := range m.order {
		l, err := m.decodeLocked(id)
		if err != nil {
			return nil, err
		}
		if f.Matches(l) {
			result = append(result, l)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) ListEvents(_ context.Context, launchID string) ([]ApprovalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ApprovalEvent, len(m.events[launchID]))
	copy(result, m.events[launchID])
	return result, nil
}

func (m *Memory) activeLocked(s slot) (string, bool) {
	for _, id := range m.order {
		row := m.launches[id]
		if row.workerID == s.workerID && row.date == s.date && row.status.HoldsDay() {
			return id, true
		}
	}
	return "", false
}

func (m *Memory) decodeLocked(id string) (Launch, error) {
	row, ok := m.launches[id]
	if !ok {
		return Launch{}, fmt.Errorf("%w: %s", ErrLaunchNotFound, id)
	}
	var l Launch
	if err := json.Unmarshal(row.data, &l); err != nil {
		return Launch{}, fmt.Errorf("decode launch %s: %w", id, err)
	}
	return l, nil
}
