package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const pgRateColumns = `id::text, thb_to_mmk::text, is_active, created_at, set_by::text`

func scanPgRate(row rowScanner) (*ExchangeRate, error) {
	var er ExchangeRate
	var rate string
	if err := row.Scan(&er.ID, &rate, &er.IsActive, &er.CreatedAt, &er.SetBy); err != nil {
		return nil, err
	}
	var err error
	if er.THBToMMK, err = parseDecimal("thb_to_mmk", rate); err != nil {
		return nil, err
	}
	return &er, nil
}

// ActiveExchangeRate returns the single active rate or ErrNotFound.
func (r *PostgresRepository) ActiveExchangeRate(ctx context.Context) (*ExchangeRate, error) {
	q := `SELECT ` + pgRateColumns + ` FROM exchange_rates WHERE is_active ORDER BY created_at DESC LIMIT 1;`
	er, err := scanPgRate(r.pool.QueryRow(ctx, q))
	if err != nil {
		return nil, pgErr("get active exchange rate", err)
	}
	return er, nil
}

// ReplaceExchangeRate deactivates the current rate and activates a new one atomically.
func (r *PostgresRepository) ReplaceExchangeRate(ctx context.Context, rate decimal.Decimal, setBy string) (*ExchangeRate, error) {
	var inserted *ExchangeRate
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE exchange_rates SET is_active = FALSE WHERE is_active;`); err != nil {
			return fmt.Errorf("deactivate exchange rates: %w", err)
		}
		q := `
INSERT INTO exchange_rates (thb_to_mmk, is_active, set_by)
VALUES ($1::numeric, TRUE, $2)
RETURNING ` + pgRateColumns + `;
`
		er, err := scanPgRate(tx.QueryRow(ctx, q, rate.String(), nullable(setBy)))
		if err != nil {
			return pgErr("insert exchange rate", err)
		}
		inserted = er
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}
