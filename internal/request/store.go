package request

import (
	"context"
	"time"

	"agency/internal/events"
	"agency/internal/status"
	"agency/pkg/logger"
)

type Store struct {
	repo     Repository
	hub      *Hub
	notifier Notifier
	now      func() time.Time
}

type Option func(*Store)

// WithNotifier routes change events through n (e.g. a RedisBridge) instead of
// delivering straight to the local Hub.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func NewStore(repo Repository, hub *Hub, opts ...Option) *Store {
	if hub == nil {
		hub = NewHub()
	}
	s := &Store{repo: repo, hub: hub, notifier: hub, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates a submission and stores it as requested regardless of the
// status the caller sent.
func (s *Store) Create(ctx context.Context, in NewInput, actor string) (*ServiceRequest, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	j, err := s.repo.Insert(ctx, in, actor)
	if err != nil {
		return nil, wrapData("create service request", err)
	}
	s.notify(ctx, EventCreated, *j)
	logger.Info(ctx, "service request created", "request_id", j.ID, "service_key", j.ServiceKey)

	out := j.ServiceRequest
	return &out, nil
}

func (s *Store) ListForClient(ctx context.Context, clientID string) ([]ServiceRequest, error) {
	out, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, wrapData("list client requests", err)
	}
	return out, nil
}

func (s *Store) ListAll(ctx context.Context) ([]Joined, error) {
	out, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, wrapData("list requests", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Joined, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapData("get request", err)
	}
	return j, nil
}

// UpdateStatus applies an admin transition. Moves rejected by
// status.CanTransition fail with *TransitionError and write nothing.
func (s *Store) UpdateStatus(ctx context.Context, id string, next status.Admin, actor string) (*ServiceRequest, error) {
	if !next.Valid() {
		ve := &ValidationError{}
		ve.add("status", "unknown status")
		return nil, ve
	}

	j, changed, err := s.repo.UpdateStatus(ctx, id, next, actor, func(from status.Admin) error {
		if !status.CanTransition(from, next) {
			return &TransitionError{From: from, To: next}
		}
		return nil
	})
	if err != nil {
		return nil, wrapData("update request status", err)
	}
	if !changed {
		out := j.ServiceRequest
		return &out, nil
	}
	s.notify(ctx, EventUpdated, *j)
	logger.Info(ctx, "service request status changed", "request_id", j.ID, "status", j.Status, "actor", actor)

	out := j.ServiceRequest
	return &out, nil
}

func (s *Store) UpdatePriority(ctx context.Context, id string, p Priority, actor string) (*ServiceRequest, error) {
	if _, ok := priorityRank[p]; !ok {
		ve := &ValidationError{}
		ve.add("priority", "unknown priority")
		return nil, ve
	}
	j, err := s.repo.UpdatePriority(ctx, id, p, actor)
	if err != nil {
		return nil, wrapData("update request priority", err)
	}
	s.notify(ctx, EventUpdated, *j)

	out := j.ServiceRequest
	return &out, nil
}

func (s *Store) History(ctx context.Context, id string) ([]events.Event, error) {
	out, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, wrapData("list request events", err)
	}
	return out, nil
}

// Subscribe registers a change observer; call the returned func to stop.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

func (s *Store) notify(ctx context.Context, t EventType, j Joined) {
	s.notifier.Notify(ctx, Event{Type: t, Request: j, At: s.now()})
}
