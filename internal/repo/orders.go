package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const pgOrderColumns = `id::text, user_id::text, product_id::text, category_type, amount::text, currency,
       phone_number, player_id, status, created_at, processed_at, processed_by::text, admin_note`

func scanPgOrder(row rowScanner) (*Order, error) {
	var o Order
	var amount, status string
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.CategoryType, &amount, &o.Currency,
		&o.PhoneNumber, &o.PlayerID, &status, &o.CreatedAt, &o.ProcessedAt, &o.ProcessedBy, &o.AdminNote); err != nil {
		return nil, err
	}
	var err error
	if o.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

// InsertOrder stores a new order record.
func (r *PostgresRepository) InsertOrder(ctx context.Context, o Order) (*Order, error) {
	const q = `
INSERT INTO orders (user_id, product_id, category_type, amount, currency, phone_number, player_id, status)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
RETURNING ` + pgOrderColumns + `;
`
	row := r.pool.QueryRow(ctx, q,
		o.UserID,
		o.ProductID,
		o.CategoryType,
		o.Amount.String(),
		o.Currency,
		o.PhoneNumber,
		o.PlayerID,
		string(statusOrPending(o.Status)),
	)
	inserted, err := scanPgOrder(row)
	if err != nil {
		return nil, pgErr("insert order", err)
	}
	return inserted, nil
}

// GetOrder retrieves an order by id.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	q := `SELECT ` + pgOrderColumns + ` FROM orders WHERE id = $1 LIMIT 1;`
	o, err := scanPgOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, pgErr("get order", err)
	}
	return o, nil
}

// ListOrders returns orders newest first.
func (r *PostgresRepository) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	where, args := listWhere(f, pgPlaceholder)
	limit, args := listLimit(f, args, pgPlaceholder)
	q := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC%s;`, pgOrderColumns, where, limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanPgOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// ModerateOrder moves a pending order to the moderation status. The row is
// locked first so concurrent decisions serialise and only the first commits.
func (r *PostgresRepository) ModerateOrder(ctx context.Context, m Moderation) (*OrderChange, error) {
	var change OrderChange
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		old, err := scanPgOrder(tx.QueryRow(ctx, `SELECT `+pgOrderColumns+` FROM orders WHERE id = $1 FOR UPDATE;`, m.ID))
		if err != nil {
			return pgErr("lock order", err)
		}
		if old.Status != StatusPending {
			return ErrNotPending
		}

		const q = `
UPDATE orders
SET status = $2, processed_by = $3, processed_at = $4, admin_note = $5
WHERE id = $1 AND status = 'pending'
RETURNING ` + pgOrderColumns + `;
`
		updated, err := scanPgOrder(tx.QueryRow(ctx, q, m.ID, string(m.Status), nullable(m.AdminID), m.At, m.Note))
		if err != nil {
			return pgErr("update order status", err)
		}
		change = OrderChange{Old: *old, New: *updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}
