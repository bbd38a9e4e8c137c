package request

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agency/internal/audit"
	"agency/internal/events"
	"agency/internal/status"
	"agency/pkg/db"
)

// Repository is the data access behind the Store.
type Repository interface {
	Insert(ctx context.Context, in NewInput, actor string) (*Joined, error)
	ListByClient(ctx context.Context, clientID string) ([]ServiceRequest, error)
	ListAll(ctx context.Context) ([]Joined, error)
	Get(ctx context.Context, id string) (*Joined, error)
	// UpdateStatus locks the row, hands the current status to check, and only
	// writes when check returns nil. A move to the current status writes
	// nothing and reports changed == false.
	UpdateStatus(ctx context.Context, id string, next status.Admin, actor string, check func(from status.Admin) error) (j *Joined, changed bool, err error)
	UpdatePriority(ctx context.Context, id string, p Priority, actor string) (*Joined, error)
	History(ctx context.Context, id string) ([]events.Event, error)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PGRepository struct {
	db     *pgxpool.Pool
	events *events.Repository
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, events: events.NewRepository(pool)}
}

const joinedSelect = `
SELECT r.id, r.client_id, r.service_key, r.project_title, r.brief, r.status, r.priority,
       r.requested_at, r.updated_at, c.full_name, c.email
FROM service_requests r
JOIN clients c ON c.id = r.client_id
`

func notFoundOr(err error) error {
	if db.IsNoRows(err) || db.IsInvalidText(err) {
		return ErrNotFound
	}
	return err
}

func scanJoined(row pgx.Row) (*Joined, error) {
	var j Joined
	if err := row.Scan(
		&j.ID, &j.ClientID, &j.ServiceKey, &j.ProjectTitle, &j.Brief, &j.Status, &j.Priority,
		&j.RequestedAt, &j.UpdatedAt, &j.ClientName, &j.ClientEmail,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

func getJoined(ctx context.Context, q querier, id string) (*Joined, error) {
	j, err := scanJoined(q.QueryRow(ctx, joinedSelect+`WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err := loadAttachments(ctx, q, []*ServiceRequest{&j.ServiceRequest}); err != nil {
		return nil, err
	}
	return j, nil
}

// loadAttachments fills Attachments for every request in one query.
func loadAttachments(ctx context.Context, q querier, reqs []*ServiceRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(reqs))
	byID := make(map[string]*ServiceRequest, len(reqs))
	for _, r := range reqs {
		r.Attachments = []Attachment{}
		ids = append(ids, r.ID)
		byID[r.ID] = r
	}

	const qAtt = `
SELECT request_id::text, url, label
FROM request_attachments
WHERE request_id::text = ANY($1)
ORDER BY request_id, position ASC
`
	rows, err := q.Query(ctx, qAtt, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var reqID string
		var a Attachment
		if err := rows.Scan(&reqID, &a.URL, &a.Label); err != nil {
			return err
		}
		if r, ok := byID[reqID]; ok {
			r.Attachments = append(r.Attachments, a)
		}
	}
	return rows.Err()
}

func (r *PGRepository) Insert(ctx context.Context, in NewInput, actor string) (*Joined, error) {
	var out *Joined
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `
INSERT INTO service_requests (client_id, service_key, project_title, brief, status, priority)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`
		var id string
		if err := tx.QueryRow(ctx, q, in.ClientID, in.ServiceKey, in.ProjectTitle, in.Brief, string(status.Requested), string(in.Priority)).Scan(&id); err != nil {
			if db.IsForeignKeyViolation(err) || db.IsInvalidText(err) {
				ve := &ValidationError{}
				ve.add("clientId", "unknown client")
				return ve
			}
			return err
		}

		const qAtt = `INSERT INTO request_attachments (request_id, url, label, position) VALUES ($1, $2, $3, $4)`
		for i, a := range in.Attachments {
			if _, err := tx.Exec(ctx, qAtt, id, a.URL, a.Label, i); err != nil {
				return err
			}
		}

		if err := events.Insert(ctx, tx, id, events.TypeRequestCreated, "Request submitted", actor, time.Now(), map[string]any{"serviceKey": in.ServiceKey}); err != nil {
			return err
		}

		j, err := getJoined(ctx, tx, id)
		if err != nil {
			return err
		}
		out = j
		return nil
	})
	return out, err
}

func (r *PGRepository) ListByClient(ctx context.Context, clientID string) ([]ServiceRequest, error) {
	rows, err := r.db.Query(ctx, joinedSelect+`WHERE r.client_id = $1 ORDER BY r.requested_at DESC`, clientID)
	if err != nil {
		if db.IsInvalidText(err) {
			return []ServiceRequest{}, nil
		}
		return nil, err
	}
	joined, err := collectJoined(rows)
	if err != nil {
		return nil, err
	}

	out := make([]ServiceRequest, len(joined))
	ptrs := make([]*ServiceRequest, len(joined))
	for i := range joined {
		out[i] = joined[i].ServiceRequest
		ptrs[i] = &out[i]
	}
	if err := loadAttachments(ctx, r.db, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PGRepository) ListAll(ctx context.Context) ([]Joined, error) {
	rows, err := r.db.Query(ctx, joinedSelect+`ORDER BY r.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	out, err := collectJoined(rows)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*ServiceRequest, len(out))
	for i := range out {
		ptrs[i] = &out[i].ServiceRequest
	}
	if err := loadAttachments(ctx, r.db, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func collectJoined(rows pgx.Rows) ([]Joined, error) {
	defer rows.Close()
	out := []Joined{}
	for rows.Next() {
		j, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id string) (*Joined, error) {
	return getJoined(ctx, r.db, id)
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, next status.Admin, actor string, check func(from status.Admin) error) (*Joined, bool, error) {
	var (
		out     *Joined
		changed bool
	)
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var from status.Admin
		if err := tx.QueryRow(ctx, `SELECT status FROM service_requests WHERE id = $1 FOR UPDATE`, id).Scan(&from); err != nil {
			return notFoundOr(err)
		}
		if err := check(from); err != nil {
			return err
		}
		if from == next {
			j, err := getJoined(ctx, tx, id)
			out = j
			return err
		}

		const q = `UPDATE service_requests SET status = $2, updated_at = NOW() WHERE id = $1`
		if _, err := tx.Exec(ctx, q, id, string(next)); err != nil {
			return err
		}

		change := map[string]any{"from": from, "to": next}
		if err := events.Insert(ctx, tx, id, events.TypeStatusChanged, "Status changed", actor, time.Now(), change); err != nil {
			return err
		}
		if err := audit.Insert(ctx, tx, audit.EntityServiceRequest, id, audit.ActionStatusChanged, actor, change); err != nil {
			return err
		}

		j, err := getJoined(ctx, tx, id)
		if err != nil {
			return err
		}
		out = j
		changed = true
		return nil
	})
	return out, changed, err
}

func (r *PGRepository) UpdatePriority(ctx context.Context, id string, p Priority, actor string) (*Joined, error) {
	var out *Joined
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var prev Priority
		if err := tx.QueryRow(ctx, `SELECT priority FROM service_requests WHERE id = $1 FOR UPDATE`, id).Scan(&prev); err != nil {
			return notFoundOr(err)
		}
		if _, err := tx.Exec(ctx, `UPDATE service_requests SET priority = $2, updated_at = NOW() WHERE id = $1`, id, string(p)); err != nil {
			return err
		}
		if err := events.Insert(ctx, tx, id, events.TypePriorityChanged, "Priority changed", actor, time.Now(), map[string]any{"from": prev, "to": p}); err != nil {
			return err
		}
		j, err := getJoined(ctx, tx, id)
		if err != nil {
			return err
		}
		out = j
		return nil
	})
	return out, err
}

func (r *PGRepository) History(ctx context.Context, id string) ([]events.Event, error) {
	if _, err := getJoined(ctx, r.db, id); err != nil {
		return nil, err
	}
	return r.events.ListByRequest(ctx, id)
}
