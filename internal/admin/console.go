// Package admin is the console read model over the service request store:
// board and table views, optimistic status changes and live refresh.
package admin

import (
	"context"
	"sync"

	"agency/internal/optimistic"
	"agency/internal/request"
	"agency/internal/status"
	"agency/pkg/logger"
)

type Console struct {
	store *request.Store

	mu     sync.RWMutex
	rows   map[string]*optimistic.Value[request.View]
	loaded bool
}

func NewConsole(store *request.Store) *Console {
	return &Console{store: store, rows: map[string]*optimistic.Value[request.View]{}}
}

// Load refetches every request. The result is authoritative and overwrites
// any optimistic state still in flight.
func (c *Console) Load(ctx context.Context) error {
	items, err := c.store.ListAll(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(items))
	for _, j := range items {
		seen[j.ID] = true
		c.refreshLocked(request.NewView(j))
	}
	for id := range c.rows {
		if !seen[id] {
			delete(c.rows, id)
		}
	}
	c.loaded = true
	return nil
}

func (c *Console) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Console) refreshLocked(v request.View) {
	if row, ok := c.rows[v.ID]; ok {
		row.Refresh(v)
		return
	}
	c.rows[v.ID] = optimistic.New(v)
}

func (c *Console) row(id string) *optimistic.Value[request.View] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows[id]
}

// Views returns the current rows, optimistic values included.
func (c *Console) Views() []request.View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]request.View, 0, len(c.rows))
	for _, row := range c.rows {
		out = append(out, row.Get())
	}
	return out
}

func (c *Console) Get(id string) (request.View, bool) {
	row := c.row(id)
	if row == nil {
		return request.View{}, false
	}
	return row.Get(), true
}

// Board is the kanban view: one column per status, cards by priority.
func (c *Console) Board() []request.Column {
	return request.GroupByStatus(request.SortByPriority(c.Views()))
}

type Query struct {
	Statuses []status.Admin
	Text     string
}

// Table is the filtered list view, ordered by priority.
func (c *Console) Table(q Query) []request.View {
	views := request.FilterByStatus(c.Views(), q.Statuses...)
	views = request.SearchByText(views, q.Text)
	return request.SortByPriority(views)
}

// ChangeStatus shows next immediately and writes it through the store. A
// failed write restores the previous row and returns the store's error.
func (c *Console) ChangeStatus(ctx context.Context, id string, next status.Admin, actor string) (request.View, error) {
	return c.mutate(ctx, id, func(v request.View) request.View {
		v.Status = next
		v.ClientStatus = status.ToClient(next)
		v.Progress = status.Progress(next)
		return v
	}, func() (*request.ServiceRequest, error) {
		return c.store.UpdateStatus(ctx, id, next, actor)
	})
}

func (c *Console) ChangePriority(ctx context.Context, id string, p request.Priority, actor string) (request.View, error) {
	return c.mutate(ctx, id, func(v request.View) request.View {
		v.Priority = p
		return v
	}, func() (*request.ServiceRequest, error) {
		return c.store.UpdatePriority(ctx, id, p, actor)
	})
}

func (c *Console) mutate(ctx context.Context, id string, edit func(request.View) request.View, write func() (*request.ServiceRequest, error)) (request.View, error) {
	row := c.row(id)
	if row == nil {
		// Not in the read model yet; write straight through.
		sr, err := write()
		if err != nil {
			return request.View{}, err
		}
		j, err := c.store.Get(ctx, sr.ID)
		if err != nil {
			return request.View{}, err
		}
		v := request.NewView(*j)
		c.mu.Lock()
		c.refreshLocked(v)
		c.mu.Unlock()
		return v, nil
	}

	cur := row.Get()
	if err := row.Apply(edit(cur)); err != nil {
		return cur, err
	}

	sr, err := write()
	if err != nil {
		row.Rollback()
		logger.Warn(ctx, "status change rolled back", "request_id", id, "error", err)
		return row.Get(), err
	}

	j := cur.Joined
	j.ServiceRequest = *sr
	// A change event that landed while the write was in flight is at least as
	// fresh as this response unless the response carries a later updated_at.
	return row.Settle(request.NewView(j), func(server, current request.View) bool {
		return server.UpdatedAt.After(current.UpdatedAt)
	}), nil
}

// Apply folds a change event into the read model as an authoritative write.
func (c *Console) Apply(e request.Event) {
	c.mu.Lock()
	c.refreshLocked(request.NewView(e.Request))
	c.mu.Unlock()
}

// Watch applies store change events until ctx is done.
func (c *Console) Watch(ctx context.Context) error {
	unsubscribe := c.store.Subscribe(c.Apply)
	defer unsubscribe()
	<-ctx.Done()
	return ctx.Err()
}
