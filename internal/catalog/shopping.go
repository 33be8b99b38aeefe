package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"topup-store/internal/lifecycle"
	"topup-store/internal/repo"
)

// Query narrows and prices the shopping list.
type Query struct {
	Text     string
	Currency string
	// MaxPrice is a budget in Currency; "1k" and "1.5m" shorthands are accepted.
	MaxPrice string
	Limit    int
}

// PricedProduct is a shopping product with its price in the requested currency.
type PricedProduct struct {
	repo.ShoppingProduct
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// MMKPrice is price_mmk when set, else price_thb converted at rate and rounded to whole kyat.
func MMKPrice(thb decimal.Decimal, mmk decimal.NullDecimal, rate decimal.Decimal) decimal.Decimal {
	if mmk.Valid {
		return mmk.Decimal
	}
	return thb.Mul(rate).Round(0)
}

// Shopping returns active shopping products matching q, best match first.
func (s *Service) Shopping(ctx context.Context, q Query) ([]PricedProduct, error) {
	currency := strings.ToUpper(strings.TrimSpace(q.Currency))
	if currency == "" {
		currency = repo.CurrencyTHB
	}
	if currency != repo.CurrencyTHB && currency != repo.CurrencyMMK {
		return nil, &lifecycle.ValidationError{Code: "invalid_currency", Message: "currency must be THB or MMK"}
	}
	var budget decimal.NullDecimal
	if strings.TrimSpace(q.MaxPrice) != "" {
		b, err := parseBudget(q.MaxPrice)
		if err != nil {
			return nil, &lifecycle.ValidationError{Code: "invalid_max_price", Message: err.Error()}
		}
		budget = decimal.NewNullDecimal(b)
	}

	items, err := s.activeShopping(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shopping products: %w", err)
	}
	rate := decimal.Zero
	if currency == repo.CurrencyMMK {
		if rate, err = s.rates.ActiveRate(ctx); err != nil {
			return nil, err
		}
	}

	priced := make([]PricedProduct, 0, len(items))
	for _, it := range items {
		p := PricedProduct{ShoppingProduct: it, Currency: currency, Price: it.PriceTHB}
		if currency == repo.CurrencyMMK {
			p.Price = MMKPrice(it.PriceTHB, it.PriceMMK, rate)
		}
		if budget.Valid && p.Price.GreaterThan(budget.Decimal) {
			continue
		}
		priced = append(priced, p)
	}

	out := filterByQuery(priced, q.Text)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ShoppingInput is the admin-editable part of a shopping product.
type ShoppingInput struct {
	NameEN        string  `json:"name_en"`
	NameMY        string  `json:"name_my"`
	DescriptionEN *string `json:"description_en"`
	DescriptionMY *string `json:"description_my"`
	ImageURL      *string `json:"image_url"`
	PriceTHB      string  `json:"price_thb"`
	PriceMMK      *string `json:"price_mmk"`
	SortOrder     int     `json:"sort_order"`
	IsActive      *bool   `json:"is_active"`
}

func (in ShoppingInput) apply(p *repo.ShoppingProduct) error {
	p.NameEN = strings.TrimSpace(in.NameEN)
	p.NameMY = strings.TrimSpace(in.NameMY)
	if p.NameEN == "" || p.NameMY == "" {
		return &lifecycle.ValidationError{Code: "name_required", Message: "both English and Myanmar names are required"}
	}
	thb, err := decimal.NewFromString(strings.TrimSpace(in.PriceTHB))
	if err != nil || thb.IsNegative() || !lifecycle.FitsNumeric(thb, 14, 2) {
		return &lifecycle.ValidationError{Code: "invalid_price", Message: "price_thb must be a non-negative amount with at most 2 decimals"}
	}
	p.PriceTHB = thb
	p.PriceMMK = decimal.NullDecimal{}
	if in.PriceMMK != nil && strings.TrimSpace(*in.PriceMMK) != "" {
		mmk, err := decimal.NewFromString(strings.TrimSpace(*in.PriceMMK))
		if err != nil || mmk.IsNegative() || !lifecycle.FitsNumeric(mmk, 16, 2) {
			return &lifecycle.ValidationError{Code: "invalid_price", Message: "price_mmk must be a non-negative amount with at most 2 decimals"}
		}
		p.PriceMMK = decimal.NewNullDecimal(mmk)
	}
	p.DescriptionEN = in.DescriptionEN
	p.DescriptionMY = in.DescriptionMY
	p.ImageURL = in.ImageURL
	p.SortOrder = in.SortOrder
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

// AdminShopping lists every shopping product including inactive ones, uncached.
func (s *Service) AdminShopping(ctx context.Context) ([]repo.ShoppingProduct, error) {
	out, err := s.store.ListShoppingProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list shopping products: %w", err)
	}
	return out, nil
}

// CreateShopping inserts a product; new products are active unless told otherwise.
func (s *Service) CreateShopping(ctx context.Context, in ShoppingInput) (*repo.ShoppingProduct, error) {
	p := repo.ShoppingProduct{IsActive: true}
	if err := in.apply(&p); err != nil {
		return nil, err
	}
	created, err := s.store.InsertShoppingProduct(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("insert shopping product: %w", err)
	}
	s.invalidateShopping(ctx)
	return created, nil
}

// UpdateShopping overwrites the editable fields of product id.
func (s *Service) UpdateShopping(ctx context.Context, id string, in ShoppingInput) (*repo.ShoppingProduct, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repo.ErrNotFound
	}
	p, err := s.store.GetShoppingProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shopping product: %w", err)
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateShoppingProduct(ctx, *p)
	if err != nil {
		return nil, fmt.Errorf("update shopping product: %w", err)
	}
	s.invalidateShopping(ctx)
	return updated, nil
}

// DeleteShopping hides product id from the storefront. Rows are never removed.
func (s *Service) DeleteShopping(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repo.ErrNotFound
	}
	if err := s.store.DeactivateShoppingProduct(ctx, id); err != nil {
		return fmt.Errorf("deactivate shopping product: %w", err)
	}
	s.invalidateShopping(ctx)
	return nil
}
