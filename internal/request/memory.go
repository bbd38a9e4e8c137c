package request

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agency/internal/events"
	"agency/internal/status"
)

// MemoryRepository is an in-process Repository for tests and local demos.
type MemoryRepository struct {
	mu      sync.Mutex
	items   map[string]*ServiceRequest
	clients map[string][2]string // id -> name, email
	history map[string][]events.Event
	now     func() time.Time

	// FailNext, when set, is returned (once) by the next write.
	FailNext error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:   map[string]*ServiceRequest{},
		clients: map[string][2]string{},
		history: map[string][]events.Event{},
		now:     time.Now,
	}
}

func (m *MemoryRepository) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryRepository) AddClient(id, name, email string) {
	m.mu.Lock()
	m.clients[id] = [2]string{name, email}
	m.mu.Unlock()
}

func (m *MemoryRepository) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *MemoryRepository) joined(r *ServiceRequest) *Joined {
	c := m.clients[r.ClientID]
	cp := *r
	cp.Attachments = append([]Attachment{}, r.Attachments...)
	return &Joined{ServiceRequest: cp, ClientName: c[0], ClientEmail: c[1]}
}

func (m *MemoryRepository) record(id, typ, summary, actor string, data map[string]any) {
	m.history[id] = append(m.history[id], events.Event{
		ID: uuid.NewString(), RequestID: id, EventType: typ, Summary: summary, Actor: actor, OccurredAt: m.now(), Data: data,
	})
}

func (m *MemoryRepository) Insert(_ context.Context, in NewInput, actor string) (*Joined, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := m.clients[in.ClientID]; !ok {
		ve := &ValidationError{}
		ve.add("clientId", "unknown client")
		return nil, ve
	}
	now := m.now()
	r := &ServiceRequest{
		ID:           uuid.NewString(),
		ClientID:     in.ClientID,
		ServiceKey:   in.ServiceKey,
		ProjectTitle: in.ProjectTitle,
		Brief:        in.Brief,
		Attachments:  append([]Attachment{}, in.Attachments...),
		Status:       status.Requested,
		Priority:     in.Priority,
		RequestedAt:  now,
		UpdatedAt:    now,
	}
	m.items[r.ID] = r
	m.record(r.ID, events.TypeRequestCreated, "Request submitted", actor, map[string]any{"serviceKey": in.ServiceKey})
	return m.joined(r), nil
}

func (m *MemoryRepository) ListByClient(_ context.Context, clientID string) ([]ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ServiceRequest{}
	for _, r := range m.items {
		if r.ClientID == clientID {
			out = append(out, m.joined(r).ServiceRequest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *MemoryRepository) ListAll(_ context.Context) ([]Joined, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Joined{}
	for _, r := range m.items {
		out = append(out, *m.joined(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Joined, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.joined(r), nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id string, next status.Admin, actor string, check func(from status.Admin) error) (*Joined, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, false, err
	}
	r, ok := m.items[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if err := check(r.Status); err != nil {
		return nil, false, err
	}
	if r.Status == next {
		return m.joined(r), false, nil
	}
	from := r.Status
	r.Status = next
	r.UpdatedAt = m.now()
	m.record(id, events.TypeStatusChanged, "Status changed", actor, map[string]any{"from": from, "to": next})
	return m.joined(r), true, nil
}

func (m *MemoryRepository) UpdatePriority(_ context.Context, id string, p Priority, actor string) (*Joined, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	prev := r.Priority
	r.Priority = p
	r.UpdatedAt = m.now()
	m.record(id, events.TypePriorityChanged, "Priority changed", actor, map[string]any{"from": prev, "to": p})
	return m.joined(r), nil
}

func (m *MemoryRepository) History(_ context.Context, id string) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return nil, ErrNotFound
	}
	return append([]events.Event{}, m.history[id]...), nil
}
