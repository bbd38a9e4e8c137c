package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"agency/pkg/db"
)

const gearColumns = `id, title, subtitle, category, price::text, images, features, video_url, status`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanGear(row pgx.Row) (*Equipment, error) {
	var e Equipment
	var price string
	if err := row.Scan(&e.ID, &e.Title, &e.Subtitle, &e.Category, &price, &e.Images, &e.Features, &e.VideoURL, &e.Status); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price for %s: %w", e.ID, err)
	}
	e.Price = d
	return &e, nil
}

type ListFilter struct {
	Category string
	Status   GearStatus
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Equipment, error) {
	q := `
SELECT ` + gearColumns + `
FROM rental_gear
WHERE ($1 = '' OR category = $1)
  AND ($2 = '' OR status = $2)
ORDER BY category, title
`
	rows, err := r.db.Query(ctx, q, f.Category, string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Equipment{}
	for rows.Next() {
		e, err := scanGear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (*Equipment, error) {
	q := `SELECT ` + gearColumns + ` FROM rental_gear WHERE id = $1`
	e, err := scanGear(r.db.QueryRow(ctx, q, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *Repository) Upsert(ctx context.Context, e Equipment) (*Equipment, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	q := `
INSERT INTO rental_gear (id, title, subtitle, category, price, images, features, video_url, status)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  subtitle = EXCLUDED.subtitle,
  category = EXCLUDED.category,
  price = EXCLUDED.price,
  images = EXCLUDED.images,
  features = EXCLUDED.features,
  video_url = EXCLUDED.video_url,
  status = EXCLUDED.status,
  updated_at = NOW()
RETURNING ` + gearColumns
	return scanGear(r.db.QueryRow(ctx, q,
		e.ID, e.Title, e.Subtitle, e.Category, e.Price.String(), e.Images, e.Features, e.VideoURL, string(e.Status),
	))
}
