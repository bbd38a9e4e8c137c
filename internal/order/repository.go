// Package order stores confirmed bookings and announces them on the message
// broker.
package order

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"agency/internal/checkout"
	"agency/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, o checkout.Order) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `
INSERT INTO orders (reference, payment_ref, payment_status, customer_name, email, phone,
                    pickup_date, return_date, notes, total, currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12)
RETURNING id::text
`
		var id string
		if err := tx.QueryRow(ctx, q,
			o.Reference, o.PaymentRef, o.PaymentStatus, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
			o.PickupDate, o.ReturnDate, o.Notes, o.Total.String(), o.Currency, o.CreatedAt,
		).Scan(&id); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("order %s already recorded: %w", o.Reference, err)
			}
			return err
		}

		const qi = `
INSERT INTO order_items (order_id, gear_id, title, unit_price, quantity, amount)
VALUES ($1::uuid, $2, $3, $4::numeric, $5, $6::numeric)
`
		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, qi, id, it.GearID, it.Title, it.UnitPrice.String(), it.Quantity, it.Amount.String()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetByReference(ctx context.Context, reference string) (*checkout.Order, error) {
	const q = `
SELECT id::text, reference, payment_ref, payment_status, customer_name, email, phone,
       pickup_date, return_date, notes, total::text, currency, created_at
FROM orders
WHERE reference = $1
`
	var (
		o     checkout.Order
		id    string
		total string
	)
	if err := r.db.QueryRow(ctx, q, reference).Scan(
		&id, &o.Reference, &o.PaymentRef, &o.PaymentStatus, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.PickupDate, &o.ReturnDate, &o.Notes, &total, &o.Currency, &o.CreatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, err
	}
	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	o.Days = checkout.RentalDays(o.PickupDate, o.ReturnDate)

	rows, err := r.db.Query(ctx, `
SELECT gear_id, title, unit_price::text, quantity, amount::text
FROM order_items
WHERE order_id = $1::uuid
ORDER BY gear_id
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	o.Items = []checkout.LineItem{}
	for rows.Next() {
		var it checkout.LineItem
		var unit, amount string
		if err := rows.Scan(&it.GearID, &it.Title, &unit, &it.Quantity, &amount); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		// Direct bookings store one unit at the daily rate; the line amount
		// carries the day multiplier.
		if it.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}
