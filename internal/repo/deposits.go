package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const pgDepositColumns = `id::text, user_id::text, amount::text, currency, receipt_url, status,
       created_at, processed_at, processed_by::text, admin_note`

func scanPgDeposit(row rowScanner) (*DepositRequest, error) {
	var d DepositRequest
	var amount, status string
	if err := row.Scan(&d.ID, &d.UserID, &amount, &d.Currency, &d.ReceiptURL, &status,
		&d.CreatedAt, &d.ProcessedAt, &d.ProcessedBy, &d.AdminNote); err != nil {
		return nil, err
	}
	var err error
	if d.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	d.Status = Status(status)
	return &d, nil
}

// InsertDeposit stores a new deposit request.
func (r *PostgresRepository) InsertDeposit(ctx context.Context, d DepositRequest) (*DepositRequest, error) {
	r.logger.Debug("insert deposit", "user_id", d.UserID, "receipt_url", d.ReceiptURL)
	const q = `
INSERT INTO deposit_requests (user_id, amount, currency, receipt_url, status)
VALUES ($1, $2::numeric, $3, $4, $5)
RETURNING ` + pgDepositColumns + `;
`
	inserted, err := scanPgDeposit(r.pool.QueryRow(ctx, q,
		d.UserID,
		d.Amount.String(),
		d.Currency,
		d.ReceiptURL,
		string(statusOrPending(d.Status)),
	))
	if err != nil {
		return nil, pgErr("insert deposit", err)
	}
	return inserted, nil
}

// GetDeposit retrieves a deposit request by id.
func (r *PostgresRepository) GetDeposit(ctx context.Context, id string) (*DepositRequest, error) {
	q := `SELECT ` + pgDepositColumns + ` FROM deposit_requests WHERE id = $1 LIMIT 1;`
	d, err := scanPgDeposit(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, pgErr("get deposit", err)
	}
	return d, nil
}

// ListDeposits returns deposit requests newest first.
func (r *PostgresRepository) ListDeposits(ctx context.Context, f ListFilter) ([]DepositRequest, error) {
	where, args := listWhere(f, pgPlaceholder)
	limit, args := listLimit(f, args, pgPlaceholder)
	q := fmt.Sprintf(`SELECT %s FROM deposit_requests%s ORDER BY created_at DESC%s;`, pgDepositColumns, where, limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	deposits := []DepositRequest{}
	for rows.Next() {
		d, err := scanPgDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposits: %w", err)
	}
	return deposits, nil
}

// ModerateDeposit moves a pending deposit to the moderation status. Approval
// credits the owner's wallet inside the same transaction.
func (r *PostgresRepository) ModerateDeposit(ctx context.Context, m Moderation) (*DepositChange, error) {
	var change DepositChange
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		old, err := scanPgDeposit(tx.QueryRow(ctx, `SELECT `+pgDepositColumns+` FROM deposit_requests WHERE id = $1 FOR UPDATE;`, m.ID))
		if err != nil {
			return pgErr("lock deposit", err)
		}
		if old.Status != StatusPending {
			return ErrNotPending
		}

		const q = `
UPDATE deposit_requests
SET status = $2, processed_by = $3, processed_at = $4, admin_note = $5
WHERE id = $1 AND status = 'pending'
RETURNING ` + pgDepositColumns + `;
`
		updated, err := scanPgDeposit(tx.QueryRow(ctx, q, m.ID, string(m.Status), nullable(m.AdminID), m.At, m.Note))
		if err != nil {
			return pgErr("update deposit status", err)
		}

		if updated.Status == StatusApproved {
			if err := creditWalletTx(ctx, tx, updated.UserID, updated.Currency, updated.Amount); err != nil {
				return err
			}
		}
		change = DepositChange{Old: *old, New: *updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// ReceiptInUse reports whether any deposit row references the receipt URL.
func (r *PostgresRepository) ReceiptInUse(ctx context.Context, receiptURL string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deposit_requests WHERE receipt_url = $1);`, receiptURL).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check receipt usage: %w", err)
	}
	return exists, nil
}

func creditWalletTx(ctx context.Context, tx pgx.Tx, userID, currency string, amount decimal.Decimal) error {
	thb, mmk := decimal.Zero, decimal.Zero
	switch currency {
	case CurrencyTHB:
		thb = amount
	case CurrencyMMK:
		mmk = amount
	default:
		return fmt.Errorf("credit wallet: unsupported currency %q", currency)
	}
	const q = `
INSERT INTO wallets (user_id, balance_thb, balance_mmk)
VALUES ($1, $2::numeric, $3::numeric)
ON CONFLICT (user_id) DO UPDATE SET
    balance_thb = wallets.balance_thb + EXCLUDED.balance_thb,
    balance_mmk = wallets.balance_mmk + EXCLUDED.balance_mmk,
    updated_at = NOW();
`
	if _, err := tx.Exec(ctx, q, userID, thb.String(), mmk.String()); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}
