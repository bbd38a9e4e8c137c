package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"agency/internal/status"
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) (*Store, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	clock := &tick{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	repo.SetClock(clock.now)
	repo.AddClient("client-1", "Ada Lovelace", "ada@example.com")
	return NewStore(repo, NewHub()), repo
}

func validInput() NewInput {
	return NewInput{
		ClientID:     "client-1",
		ServiceKey:   "video-production",
		ProjectTitle: "Launch film",
		Brief:        "A 60 second launch film.",
		Attachments:  []Attachment{{URL: " https://files.example/moodboard.pdf ", Label: "Moodboard"}, {URL: "  "}},
	}
}

func TestCreate_ForcesRequestedStatus(t *testing.T) {
	store, _ := newTestStore(t)
	in := validInput()
	in.Status = status.Completed

	got, err := store.Create(context.Background(), in, "client")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Status != status.Requested {
		t.Fatalf("expected requested, got %s", got.Status)
	}
	if got.Priority != PriorityNormal {
		t.Fatalf("expected default normal priority, got %s", got.Priority)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].URL != "https://files.example/moodboard.pdf" {
		t.Fatalf("unexpected attachments: %+v", got.Attachments)
	}
}

func TestCreate_Validation(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), NewInput{ClientID: "client-1", ProjectTitle: "  "}, "client")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"serviceKey", "projectTitle", "brief"} {
		if ve.Fields[f] == "" {
			t.Fatalf("expected error for %s, got %v", f, ve.Fields)
		}
	}
}

func TestStatusHappyPath_ClientStatus(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	req, err := store.Create(ctx, validInput(), "client")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := status.ToClient(req.Status); got != status.ClientPending {
		t.Fatalf("expected Pending, got %q", got)
	}

	req, err = store.UpdateStatus(ctx, req.ID, status.Confirmed, "admin")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := status.ToClient(req.Status); got != status.ClientInProgress {
		t.Fatalf("expected In Progress, got %q", got)
	}

	req, err = store.UpdateStatus(ctx, req.ID, status.Completed, "admin")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := status.ToClient(req.Status); got != status.ClientCompleted {
		t.Fatalf("expected Completed, got %q", got)
	}
}

func TestUpdateStatus_RestampsUpdatedAt(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	req, _ := store.Create(ctx, validInput(), "client")
	updated, err := store.UpdateStatus(ctx, req.ID, status.Confirmed, "admin")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.UpdatedAt.After(req.UpdatedAt) {
		t.Fatalf("expected updated_at to move forward: %s -> %s", req.UpdatedAt, updated.UpdatedAt)
	}
}

func TestUpdateStatus_SameStateIsNoOp(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	req, _ := store.Create(ctx, validInput(), "client")
	confirmed, err := store.UpdateStatus(ctx, req.ID, status.Confirmed, "admin")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	n := 0
	defer store.Subscribe(func(Event) { n++ })()

	again, err := store.UpdateStatus(ctx, req.ID, status.Confirmed, "admin")
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if !again.UpdatedAt.Equal(confirmed.UpdatedAt) {
		t.Fatalf("same-state move must not restamp updated_at: %s -> %s", confirmed.UpdatedAt, again.UpdatedAt)
	}
	if n != 0 {
		t.Fatalf("same-state move must not notify, got %d events", n)
	}
	history, _ := repo.History(ctx, req.ID)
	if len(history) != 2 {
		t.Fatalf("expected created + one status event, got %d", len(history))
	}
}

func TestUpdateStatus_RejectsBackwardMove(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	req, _ := store.Create(ctx, validInput(), "client")
	if _, err := store.UpdateStatus(ctx, req.ID, status.InProgress, "admin"); err != nil {
		t.Fatalf("forward: %v", err)
	}

	_, err := store.UpdateStatus(ctx, req.ID, status.Requested, "admin")
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if te.From != status.InProgress || te.To != status.Requested {
		t.Fatalf("unexpected transition error: %+v", te)
	}

	cur, _ := repo.Get(ctx, req.ID)
	if cur.Status != status.InProgress {
		t.Fatalf("rejected transition must not write, status is %s", cur.Status)
	}
}

func TestUpdateStatus_CancelFromAnyOpenState(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	req, _ := store.Create(ctx, validInput(), "client")
	got, err := store.UpdateStatus(ctx, req.ID, status.Cancelled, "admin")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Current mapping shows cancelled requests as Completed to the client.
	if status.ToClient(got.Status) != status.ClientCompleted {
		t.Fatalf("expected current display Completed")
	}
	if _, err := store.UpdateStatus(ctx, req.ID, status.Confirmed, "admin"); err == nil {
		t.Fatalf("cancelled is terminal")
	}
}

func TestUpdateStatus_UnknownStatusAndMissingRequest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var ve *ValidationError
	if _, err := store.UpdateStatus(ctx, "whatever", status.Admin("archived"), "admin"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "missing", status.Confirmed, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDataErrorsAreTyped(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	req, _ := store.Create(ctx, validInput(), "client")

	boom := errors.New("connection reset")
	repo.FailNext = boom

	_, err := store.UpdateStatus(ctx, req.ID, status.Confirmed, "admin")
	var de *DataError
	if !errors.As(err, &de) || !errors.Is(err, boom) {
		t.Fatalf("expected DataError wrapping cause, got %v", err)
	}
}

func TestSubscribe_ReceivesTypedEvents(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var got []Event
	unsubscribe := store.Subscribe(func(e Event) { got = append(got, e) })

	req, _ := store.Create(ctx, validInput(), "client")
	if _, err := store.UpdateStatus(ctx, req.ID, status.Confirmed, "admin"); err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != EventCreated || got[1].Type != EventUpdated {
		t.Fatalf("unexpected event types: %s, %s", got[0].Type, got[1].Type)
	}
	if got[1].Request.Status != status.Confirmed || got[1].Request.ClientName != "Ada Lovelace" {
		t.Fatalf("event should carry the written state: %+v", got[1].Request)
	}

	unsubscribe()
	if _, err := store.UpdateStatus(ctx, req.ID, status.InProgress, "admin"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unsubscribed observer still notified")
	}
}

func TestRejectedWritesDoNotNotify(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	req, _ := store.Create(ctx, validInput(), "client")

	n := 0
	defer store.Subscribe(func(Event) { n++ })()

	_, _ = store.UpdateStatus(ctx, req.ID, status.Completed, "admin")
	_, _ = store.UpdateStatus(ctx, req.ID, status.Requested, "admin")
	if n != 1 {
		t.Fatalf("expected exactly one notification, got %d", n)
	}
}

func TestListForClientAndHistory(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	repo.AddClient("client-2", "Grace", "grace@example.com")

	first, _ := store.Create(ctx, validInput(), "client")
	other := validInput()
	other.ClientID = "client-2"
	_, _ = store.Create(ctx, other, "client")
	_, _ = store.UpdateStatus(ctx, first.ID, status.Confirmed, "admin")

	mine, err := store.ListForClient(ctx, "client-1")
	if err != nil || len(mine) != 1 || mine[0].ID != first.ID {
		t.Fatalf("unexpected client list: %+v %v", mine, err)
	}

	all, err := store.ListAll(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 requests, got %d %v", len(all), err)
	}

	hist, err := store.History(ctx, first.ID)
	if err != nil || len(hist) != 2 {
		t.Fatalf("expected 2 history events, got %d %v", len(hist), err)
	}
}

func TestUpdatePriority(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	req, _ := store.Create(ctx, validInput(), "client")

	got, err := store.UpdatePriority(ctx, req.ID, PriorityUrgent, "admin")
	if err != nil || got.Priority != PriorityUrgent {
		t.Fatalf("expected urgent, got %+v %v", got, err)
	}
	var ve *ValidationError
	if _, err := store.UpdatePriority(ctx, req.ID, Priority("asap"), "admin"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
