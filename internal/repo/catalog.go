package repo

import (
	"context"
	"fmt"
)

const (
	pgCategoryColumns = `id::text, name_en, name_my, type, icon, sort_order, is_active, created_at`
	pgProductColumns  = `id::text, category_id::text, name_en, name_my, image_url, price_thb::text, price_mmk::text,
       sort_order, is_active, created_at`
	pgShoppingColumns = `id::text, name_en, name_my, description_en, description_my, image_url, price_thb::text,
       price_mmk::text, sort_order, is_active, created_at, updated_at`
	pgPaymentColumns = `id::text, name, type, country, account_info, qr_code_url, is_active, created_at`
)

func scanPgShopping(row rowScanner) (*ShoppingProduct, error) {
	var p ShoppingProduct
	var thb string
	var mmk *string
	if err := row.Scan(&p.ID, &p.NameEN, &p.NameMY, &p.DescriptionEN, &p.DescriptionMY, &p.ImageURL,
		&thb, &mmk, &p.SortOrder, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.PriceTHB, err = parseDecimal("price_thb", thb); err != nil {
		return nil, err
	}
	if p.PriceMMK, err = parseNullDecimal("price_mmk", mmk); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCategories returns active categories by sort order.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pgCategoryColumns+` FROM categories WHERE is_active ORDER BY sort_order, name_en;`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.NameEN, &c.NameMY, &c.Type, &c.Icon, &c.SortOrder, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// ListProducts returns active products, optionally limited to one category.
func (r *PostgresRepository) ListProducts(ctx context.Context, categoryID string) ([]Product, error) {
	q := `SELECT ` + pgProductColumns + ` FROM products WHERE is_active`
	var args []any
	if categoryID != "" {
		q += ` AND category_id = $1`
		args = append(args, categoryID)
	}
	q += ` ORDER BY sort_order, name_en;`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		var thb string
		var mmk *string
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.NameEN, &p.NameMY, &p.ImageURL, &thb, &mmk,
			&p.SortOrder, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.PriceTHB, err = parseDecimal("price_thb", thb); err != nil {
			return nil, err
		}
		if p.PriceMMK, err = parseNullDecimal("price_mmk", mmk); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// ListPaymentMethods returns active payment methods, optionally for one country.
func (r *PostgresRepository) ListPaymentMethods(ctx context.Context, country string) ([]PaymentMethod, error) {
	q := `SELECT ` + pgPaymentColumns + ` FROM payment_methods WHERE is_active`
	var args []any
	if country != "" {
		q += ` AND country = $1`
		args = append(args, country)
	}
	q += ` ORDER BY created_at;`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	out := []PaymentMethod{}
	for rows.Next() {
		var m PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Country, &m.AccountInfo, &m.QRCodeURL, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment methods: %w", err)
	}
	return out, nil
}

// ListShoppingProducts returns shopping products by sort order.
func (r *PostgresRepository) ListShoppingProducts(ctx context.Context, includeInactive bool) ([]ShoppingProduct, error) {
	q := `SELECT ` + pgShoppingColumns + ` FROM shopping_products`
	if !includeInactive {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY sort_order, created_at DESC;`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list shopping products: %w", err)
	}
	defer rows.Close()

	out := []ShoppingProduct{}
	for rows.Next() {
		p, err := scanPgShopping(rows)
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

// GetShoppingProduct returns one shopping product regardless of its active flag.
func (r *PostgresRepository) GetShoppingProduct(ctx context.Context, id string) (*ShoppingProduct, error) {
	p, err := scanPgShopping(r.pool.QueryRow(ctx, `SELECT `+pgShoppingColumns+` FROM shopping_products WHERE id = $1 LIMIT 1;`, id))
	if err != nil {
		return nil, pgErr("get shopping product", err)
	}
	return p, nil
}

// InsertShoppingProduct creates a shopping product.
func (r *PostgresRepository) InsertShoppingProduct(ctx context.Context, p ShoppingProduct) (*ShoppingProduct, error) {
	const q = `
INSERT INTO shopping_products (name_en, name_my, description_en, description_my, image_url, price_thb, price_mmk, sort_order, is_active)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9)
RETURNING ` + pgShoppingColumns + `;
`
	out, err := scanPgShopping(r.pool.QueryRow(ctx, q, p.NameEN, p.NameMY, p.DescriptionEN, p.DescriptionMY, p.ImageURL,
		p.PriceTHB.String(), nullDecimalParam(p.PriceMMK), p.SortOrder, p.IsActive))
	if err != nil {
		return nil, pgErr("insert shopping product", err)
	}
	return out, nil
}

// UpdateShoppingProduct overwrites the editable fields of a shopping product.
func (r *PostgresRepository) UpdateShoppingProduct(ctx context.Context, p ShoppingProduct) (*ShoppingProduct, error) {
	const q = `
UPDATE shopping_products
SET name_en = $2, name_my = $3, description_en = $4, description_my = $5, image_url = $6,
    price_thb = $7::numeric, price_mmk = $8::numeric, sort_order = $9, is_active = $10, updated_at = NOW()
WHERE id = $1
RETURNING ` + pgShoppingColumns + `;
`
	out, err := scanPgShopping(r.pool.QueryRow(ctx, q, p.ID, p.NameEN, p.NameMY, p.DescriptionEN, p.DescriptionMY, p.ImageURL,
		p.PriceTHB.String(), nullDecimalParam(p.PriceMMK), p.SortOrder, p.IsActive))
	if err != nil {
		return nil, pgErr("update shopping product", err)
	}
	return out, nil
}

// DeactivateShoppingProduct hides a product without deleting the row.
func (r *PostgresRepository) DeactivateShoppingProduct(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE shopping_products SET is_active = FALSE, updated_at = NOW() WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("deactivate shopping product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("deactivate shopping product: %w", ErrNotFound)
	}
	return nil
}
