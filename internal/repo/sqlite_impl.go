package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// -- Profiles and roles --

const sqliteProfileColumns = `id, username, full_name, language, email, created_at, updated_at`

func scanSQLiteProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var created, updated string
	if err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Language, &p.Email, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p Profile) (*Profile, error) {
	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	now := formatTime(time.Now())
	const q = `
INSERT INTO profiles (id, username, full_name, language, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = COALESCE(excluded.email, profiles.email),
    updated_at = excluded.updated_at
RETURNING ` + sqliteProfileColumns + `;
`
	out, err := scanSQLiteProfile(r.db.QueryRowContext(ctx, q, p.ID, p.Username, p.FullName, lang, p.Email, now, now))
	if err != nil {
		return nil, sqliteErr("upsert profile", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	p, err := scanSQLiteProfile(r.db.QueryRowContext(ctx, `SELECT `+sqliteProfileColumns+` FROM profiles WHERE id = ? LIMIT 1;`, userID))
	if err != nil {
		return nil, sqliteErr("get profile", err)
	}
	return p, nil
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error) {
	const q = `
UPDATE profiles
SET username = COALESCE(?, username),
    full_name = COALESCE(?, full_name),
    language = COALESCE(?, language),
    updated_at = ?
WHERE id = ?
RETURNING ` + sqliteProfileColumns + `;
`
	p, err := scanSQLiteProfile(r.db.QueryRowContext(ctx, q, upd.Username, upd.FullName, upd.Language, formatTime(time.Now()), userID))
	if err != nil {
		return nil, sqliteErr("update profile", err)
	}
	return p, nil
}

func (r *SQLiteRepository) EmailByUsername(ctx context.Context, username string) (string, error) {
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT email FROM profiles WHERE username = ? COLLATE NOCASE LIMIT 1;`, strings.TrimSpace(username)).Scan(&email)
	if err != nil {
		return "", sqliteErr("email by username", err)
	}
	if !email.Valid || email.String == "" {
		return "", fmt.Errorf("email by username: %w", ErrNotFound)
	}
	return email.String, nil
}

func (r *SQLiteRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM user_roles WHERE user_id = ? AND role = ?;`, userID, role).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) GrantRole(ctx context.Context, userID, role string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_roles (id, user_id, role) VALUES (?, ?, ?) ON CONFLICT (user_id, role) DO NOTHING;`,
		randomUUID(), userID, role)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// -- Wallets --

func (r *SQLiteRepository) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	now := formatTime(time.Now())
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO wallets (id, user_id, balance_thb, balance_mmk, created_at, updated_at)
VALUES (?, ?, '0', '0', ?, ?)
ON CONFLICT (user_id) DO NOTHING;`, randomUUID(), userID, now, now); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return scanSQLiteWallet(r.db.QueryRowContext(ctx, `SELECT user_id, balance_thb, balance_mmk, updated_at FROM wallets WHERE user_id = ? LIMIT 1;`, userID))
}

func scanSQLiteWallet(row rowScanner) (*Wallet, error) {
	var w Wallet
	var thb, mmk, updated string
	if err := row.Scan(&w.UserID, &thb, &mmk, &updated); err != nil {
		return nil, sqliteErr("get wallet", err)
	}
	var err error
	if w.BalanceTHB, err = parseDecimal("balance_thb", thb); err != nil {
		return nil, err
	}
	if w.BalanceMMK, err = parseDecimal("balance_mmk", mmk); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &w, nil
}

// creditWalletSQLite adds amount inside tx. Arithmetic happens in Go because
// SQLite would coerce the TEXT balances to floating point.
func creditWalletSQLite(ctx context.Context, tx *sql.Tx, userID, currency string, amount decimal.Decimal) error {
	column := ""
	switch currency {
	case CurrencyTHB:
		column = "balance_thb"
	case CurrencyMMK:
		column = "balance_mmk"
	default:
		return fmt.Errorf("credit wallet: unsupported currency %q", currency)
	}
	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx, `
INSERT INTO wallets (id, user_id, balance_thb, balance_mmk, created_at, updated_at)
VALUES (?, ?, '0', '0', ?, ?)
ON CONFLICT (user_id) DO NOTHING;`, randomUUID(), userID, now, now); err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT `+column+` FROM wallets WHERE user_id = ?;`, userID).Scan(&raw); err != nil {
		return fmt.Errorf("read wallet: %w", err)
	}
	current, err := parseDecimal(column, raw)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE wallets SET `+column+` = ?, updated_at = ? WHERE user_id = ?;`,
		current.Add(amount).String(), now, userID); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

// -- Orders --

const sqliteOrderColumns = `id, user_id, product_id, category_type, amount, currency, phone_number, player_id,
       status, created_at, processed_at, processed_by, admin_note`

func scanSQLiteOrder(row rowScanner) (*Order, error) {
	var o Order
	var amount, status, created string
	var processedAt *string
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.CategoryType, &amount, &o.Currency, &o.PhoneNumber,
		&o.PlayerID, &status, &created, &processedAt, &o.ProcessedBy, &o.AdminNote); err != nil {
		return nil, err
	}
	var err error
	if o.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if o.ProcessedAt, err = parseNullTime(processedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func (r *SQLiteRepository) InsertOrder(ctx context.Context, o Order) (*Order, error) {
	const q = `
INSERT INTO orders (id, user_id, product_id, category_type, amount, currency, phone_number, player_id, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + sqliteOrderColumns + `;
`
	inserted, err := scanSQLiteOrder(r.db.QueryRowContext(ctx, q,
		randomUUID(),
		o.UserID,
		o.ProductID,
		o.CategoryType,
		o.Amount.String(),
		o.Currency,
		o.PhoneNumber,
		o.PlayerID,
		string(statusOrPending(o.Status)),
		formatTime(time.Now()),
	))
	if err != nil {
		return nil, sqliteErr("insert order", err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanSQLiteOrder(r.db.QueryRowContext(ctx, `SELECT `+sqliteOrderColumns+` FROM orders WHERE id = ? LIMIT 1;`, id))
	if err != nil {
		return nil, sqliteErr("get order", err)
	}
	return o, nil
}

func (r *SQLiteRepository) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	where, args := listWhere(f, sqlitePlaceholder)
	limit, args := listLimit(f, args, sqlitePlaceholder)
	q := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC%s;`, sqliteOrderColumns, where, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanSQLiteOrder(rows)
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

func (r *SQLiteRepository) ModerateOrder(ctx context.Context, m Moderation) (*OrderChange, error) {
	var change OrderChange
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		old, err := scanSQLiteOrder(tx.QueryRowContext(ctx, `SELECT `+sqliteOrderColumns+` FROM orders WHERE id = ?;`, m.ID))
		if err != nil {
			return sqliteErr("load order", err)
		}
		if old.Status != StatusPending {
			return ErrNotPending
		}

		const q = `
UPDATE orders
SET status = ?, processed_by = ?, processed_at = ?, admin_note = ?
WHERE id = ? AND status = 'pending'
RETURNING ` + sqliteOrderColumns + `;
`
		updated, err := scanSQLiteOrder(tx.QueryRowContext(ctx, q, string(m.Status), nullable(m.AdminID), formatTime(m.At), m.Note, m.ID))
		if err != nil {
			return sqliteErr("update order status", err)
		}
		change = OrderChange{Old: *old, New: *updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// -- Deposits --

const sqliteDepositColumns = `id, user_id, amount, currency, receipt_url, status, created_at, processed_at, processed_by, admin_note`

func scanSQLiteDeposit(row rowScanner) (*DepositRequest, error) {
	var d DepositRequest
	var amount, status, created string
	var processedAt *string
	if err := row.Scan(&d.ID, &d.UserID, &amount, &d.Currency, &d.ReceiptURL, &status, &created,
		&processedAt, &d.ProcessedBy, &d.AdminNote); err != nil {
		return nil, err
	}
	var err error
	if d.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if d.ProcessedAt, err = parseNullTime(processedAt); err != nil {
		return nil, err
	}
	d.Status = Status(status)
	return &d, nil
}

func (r *SQLiteRepository) InsertDeposit(ctx context.Context, d DepositRequest) (*DepositRequest, error) {
	const q = `
INSERT INTO deposit_requests (id, user_id, amount, currency, receipt_url, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + sqliteDepositColumns + `;
`
	inserted, err := scanSQLiteDeposit(r.db.QueryRowContext(ctx, q,
		randomUUID(),
		d.UserID,
		d.Amount.String(),
		d.Currency,
		d.ReceiptURL,
		string(statusOrPending(d.Status)),
		formatTime(time.Now()),
	))
	if err != nil {
		return nil, sqliteErr("insert deposit", err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) GetDeposit(ctx context.Context, id string) (*DepositRequest, error) {
	d, err := scanSQLiteDeposit(r.db.QueryRowContext(ctx, `SELECT `+sqliteDepositColumns+` FROM deposit_requests WHERE id = ? LIMIT 1;`, id))
	if err != nil {
		return nil, sqliteErr("get deposit", err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListDeposits(ctx context.Context, f ListFilter) ([]DepositRequest, error) {
	where, args := listWhere(f, sqlitePlaceholder)
	limit, args := listLimit(f, args, sqlitePlaceholder)
	q := fmt.Sprintf(`SELECT %s FROM deposit_requests%s ORDER BY created_at DESC%s;`, sqliteDepositColumns, where, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	deposits := []DepositRequest{}
	for rows.Next() {
		d, err := scanSQLiteDeposit(rows)
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

func (r *SQLiteRepository) ModerateDeposit(ctx context.Context, m Moderation) (*DepositChange, error) {
	var change DepositChange
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		old, err := scanSQLiteDeposit(tx.QueryRowContext(ctx, `SELECT `+sqliteDepositColumns+` FROM deposit_requests WHERE id = ?;`, m.ID))
		if err != nil {
			return sqliteErr("load deposit", err)
		}
		if old.Status != StatusPending {
			return ErrNotPending
		}

		const q = `
UPDATE deposit_requests
SET status = ?, processed_by = ?, processed_at = ?, admin_note = ?
WHERE id = ? AND status = 'pending'
RETURNING ` + sqliteDepositColumns + `;
`
		updated, err := scanSQLiteDeposit(tx.QueryRowContext(ctx, q, string(m.Status), nullable(m.AdminID), formatTime(m.At), m.Note, m.ID))
		if err != nil {
			return sqliteErr("update deposit status", err)
		}
		if updated.Status == StatusApproved {
			if err := creditWalletSQLite(ctx, tx, updated.UserID, updated.Currency, updated.Amount); err != nil {
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

func (r *SQLiteRepository) ReceiptInUse(ctx context.Context, receiptURL string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM deposit_requests WHERE receipt_url = ?;`, receiptURL).Scan(&n); err != nil {
		return false, fmt.Errorf("check receipt usage: %w", err)
	}
	return n > 0, nil
}

// -- Exchange rates --

const sqliteRateColumns = `id, thb_to_mmk, is_active, created_at, set_by`

func scanSQLiteRate(row rowScanner) (*ExchangeRate, error) {
	var er ExchangeRate
	var rate, created string
	if err := row.Scan(&er.ID, &rate, &er.IsActive, &created, &er.SetBy); err != nil {
		return nil, err
	}
	var err error
	if er.THBToMMK, err = parseDecimal("thb_to_mmk", rate); err != nil {
		return nil, err
	}
	if er.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &er, nil
}

func (r *SQLiteRepository) ActiveExchangeRate(ctx context.Context) (*ExchangeRate, error) {
	er, err := scanSQLiteRate(r.db.QueryRowContext(ctx, `SELECT `+sqliteRateColumns+` FROM exchange_rates WHERE is_active = 1 ORDER BY created_at DESC LIMIT 1;`))
	if err != nil {
		return nil, sqliteErr("get active exchange rate", err)
	}
	return er, nil
}

func (r *SQLiteRepository) ReplaceExchangeRate(ctx context.Context, rate decimal.Decimal, setBy string) (*ExchangeRate, error) {
	var inserted *ExchangeRate
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE exchange_rates SET is_active = 0 WHERE is_active = 1;`); err != nil {
			return fmt.Errorf("deactivate exchange rates: %w", err)
		}
		q := `
INSERT INTO exchange_rates (id, thb_to_mmk, is_active, set_by, created_at)
VALUES (?, ?, 1, ?, ?)
RETURNING ` + sqliteRateColumns + `;
`
		er, err := scanSQLiteRate(tx.QueryRowContext(ctx, q, randomUUID(), rate.String(), nullable(setBy), formatTime(time.Now())))
		if err != nil {
			return sqliteErr("insert exchange rate", err)
		}
		inserted = er
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// -- Catalog --

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name_en, name_my, type, icon, sort_order, is_active, created_at
FROM categories
WHERE is_active = 1
ORDER BY sort_order, name_en;`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		var created string
		if err := rows.Scan(&c.ID, &c.NameEN, &c.NameMY, &c.Type, &c.Icon, &c.SortOrder, &c.IsActive, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListProducts(ctx context.Context, categoryID string) ([]Product, error) {
	q := `SELECT id, category_id, name_en, name_my, image_url, price_thb, price_mmk, sort_order, is_active, created_at
FROM products WHERE is_active = 1`
	var args []any
	if categoryID != "" {
		q += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	q += ` ORDER BY sort_order, name_en;`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		var thb, created string
		var mmk *string
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.NameEN, &p.NameMY, &p.ImageURL, &thb, &mmk,
			&p.SortOrder, &p.IsActive, &created); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.PriceTHB, err = parseDecimal("price_thb", thb); err != nil {
			return nil, err
		}
		if p.PriceMMK, err = parseNullDecimal("price_mmk", mmk); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListPaymentMethods(ctx context.Context, country string) ([]PaymentMethod, error) {
	q := `SELECT id, name, type, country, account_info, qr_code_url, is_active, created_at
FROM payment_methods WHERE is_active = 1`
	var args []any
	if country != "" {
		q += ` AND country = ?`
		args = append(args, country)
	}
	q += ` ORDER BY created_at;`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	out := []PaymentMethod{}
	for rows.Next() {
		var m PaymentMethod
		var created string
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Country, &m.AccountInfo, &m.QRCodeURL, &m.IsActive, &created); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment methods: %w", err)
	}
	return out, nil
}

const sqliteShoppingColumns = `id, name_en, name_my, description_en, description_my, image_url, price_thb, price_mmk,
       sort_order, is_active, created_at, updated_at`

func scanSQLiteShopping(row rowScanner) (*ShoppingProduct, error) {
	var p ShoppingProduct
	var thb, created, updated string
	var mmk *string
	if err := row.Scan(&p.ID, &p.NameEN, &p.NameMY, &p.DescriptionEN, &p.DescriptionMY, &p.ImageURL,
		&thb, &mmk, &p.SortOrder, &p.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.PriceTHB, err = parseDecimal("price_thb", thb); err != nil {
		return nil, err
	}
	if p.PriceMMK, err = parseNullDecimal("price_mmk", mmk); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SQLiteRepository) ListShoppingProducts(ctx context.Context, includeInactive bool) ([]ShoppingProduct, error) {
	q := `SELECT ` + sqliteShoppingColumns + ` FROM shopping_products`
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY sort_order, created_at DESC;`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list shopping products: %w", err)
	}
	defer rows.Close()

	out := []ShoppingProduct{}
	for rows.Next() {
		p, err := scanSQLiteShopping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping product: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shopping products: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetShoppingProduct(ctx context.Context, id string) (*ShoppingProduct, error) {
	p, err := scanSQLiteShopping(r.db.QueryRowContext(ctx, `SELECT `+sqliteShoppingColumns+` FROM shopping_products WHERE id = ? LIMIT 1;`, id))
	if err != nil {
		return nil, sqliteErr("get shopping product", err)
	}
	return p, nil
}

func (r *SQLiteRepository) InsertShoppingProduct(ctx context.Context, p ShoppingProduct) (*ShoppingProduct, error) {
	now := formatTime(time.Now())
	const q = `
INSERT INTO shopping_products (id, name_en, name_my, description_en, description_my, image_url, price_thb, price_mmk,
    sort_order, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + sqliteShoppingColumns + `;
`
	out, err := scanSQLiteShopping(r.db.QueryRowContext(ctx, q, randomUUID(), p.NameEN, p.NameMY, p.DescriptionEN,
		p.DescriptionMY, p.ImageURL, p.PriceTHB.String(), nullDecimalParam(p.PriceMMK), p.SortOrder, boolInt(p.IsActive), now, now))
	if err != nil {
		return nil, sqliteErr("insert shopping product", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateShoppingProduct(ctx context.Context, p ShoppingProduct) (*ShoppingProduct, error) {
	const q = `
UPDATE shopping_products
SET name_en = ?, name_my = ?, description_en = ?, description_my = ?, image_url = ?,
    price_thb = ?, price_mmk = ?, sort_order = ?, is_active = ?, updated_at = ?
WHERE id = ?
RETURNING ` + sqliteShoppingColumns + `;
`
	out, err := scanSQLiteShopping(r.db.QueryRowContext(ctx, q, p.NameEN, p.NameMY, p.DescriptionEN, p.DescriptionMY, p.ImageURL,
		p.PriceTHB.String(), nullDecimalParam(p.PriceMMK), p.SortOrder, boolInt(p.IsActive), formatTime(time.Now()), p.ID))
	if err != nil {
		return nil, sqliteErr("update shopping product", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeactivateShoppingProduct(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE shopping_products SET is_active = 0, updated_at = ? WHERE id = ?;`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("deactivate shopping product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate shopping product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deactivate shopping product: %w", ErrNotFound)
	}
	return nil
}
