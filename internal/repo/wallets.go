package repo

import (
	"context"
	"fmt"
)

// GetWallet loads the user's wallet, creating an empty one on first access.
func (r *PostgresRepository) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	if _, err := r.pool.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING;`, userID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	const q = `
SELECT user_id::text, balance_thb::text, balance_mmk::text, updated_at
FROM wallets
WHERE user_id = $1
LIMIT 1;
`
	var w Wallet
	var thb, mmk string
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&w.UserID, &thb, &mmk, &w.UpdatedAt); err != nil {
		return nil, pgErr("get wallet", err)
	}
	var err error
	if w.BalanceTHB, err = parseDecimal("balance_thb", thb); err != nil {
		return nil, err
	}
	if w.BalanceMMK, err = parseDecimal("balance_mmk", mmk); err != nil {
		return nil, err
	}
	return &w, nil
}
