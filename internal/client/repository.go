package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agency/internal/audit"
	"agency/pkg/db"
)

const profileColumns = `id, user_id, full_name, email, phone, company, tier, created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Email, &p.Phone, &p.Company, &p.Tier, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM clients WHERE user_id = $1`
	return scanProfile(r.db.QueryRow(ctx, q, userID))
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM clients WHERE id = $1`
	return scanProfile(r.db.QueryRow(ctx, q, id))
}

// InsertIfAbsent creates a Regular profile for userID unless one exists, and
// returns whichever row owns the user id. The UNIQUE(user_id) constraint makes
// concurrent first visits converge on one row.
func (r *Repository) InsertIfAbsent(ctx context.Context, userID, email, fullName string) (*Profile, bool, error) {
	q := `
INSERT INTO clients (user_id, email, full_name, tier)
VALUES ($1, $2, $3, 'Regular')
ON CONFLICT (user_id) DO NOTHING
RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRow(ctx, q, userID, email, fullName))
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, ErrNotFound):
		// Lost the race (or the row already existed): read the winner.
		p, err = r.FindByUserID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	default:
		return nil, false, fmt.Errorf("insert client: %w", err)
	}
}

func (r *Repository) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error) {
	var out *Profile
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		q := `
UPDATE clients
SET full_name = COALESCE($2, full_name),
    phone = COALESCE($3, phone),
    company = COALESCE($4, company),
    updated_at = NOW()
WHERE user_id = $1
RETURNING ` + profileColumns
		p, err := scanProfile(tx.QueryRow(ctx, q, userID, upd.FullName, upd.Phone, upd.Company))
		if err != nil {
			return err
		}
		out = p
		return audit.Insert(ctx, tx, audit.EntityClient, p.ID, audit.ActionProfileUpdated, "client", upd)
	})
	return out, err
}

func (r *Repository) UpdateTier(ctx context.Context, clientID string, tier Tier, actor string) (*Profile, error) {
	var out *Profile
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		prev, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM clients WHERE id = $1 FOR UPDATE`, clientID))
		if err != nil {
			return err
		}
		q := `UPDATE clients SET tier = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + profileColumns
		p, err := scanProfile(tx.QueryRow(ctx, q, clientID, string(tier)))
		if err != nil {
			return err
		}
		out = p
		return audit.Insert(ctx, tx, audit.EntityClient, p.ID, audit.ActionTierChanged, actor, map[string]any{"from": prev.Tier, "to": tier})
	})
	return out, err
}
