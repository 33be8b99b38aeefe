// Package catalog serves the storefront's browsable data: categories,
// top-up products, payment methods and shopping products.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"topup-store/internal/cache"
	"topup-store/internal/metrics"
	"topup-store/internal/repo"
)

const keyPrefix = "catalog:"

// Store is the catalog persistence.
type Store interface {
	ListCategories(ctx context.Context) ([]repo.Category, error)
	ListProducts(ctx context.Context, categoryID string) ([]repo.Product, error)
	ListPaymentMethods(ctx context.Context, country string) ([]repo.PaymentMethod, error)
	ListShoppingProducts(ctx context.Context, includeInactive bool) ([]repo.ShoppingProduct, error)
	GetShoppingProduct(ctx context.Context, id string) (*repo.ShoppingProduct, error)
	InsertShoppingProduct(ctx context.Context, p repo.ShoppingProduct) (*repo.ShoppingProduct, error)
	UpdateShoppingProduct(ctx context.Context, p repo.ShoppingProduct) (*repo.ShoppingProduct, error)
	DeactivateShoppingProduct(ctx context.Context, id string) error
}

// RateSource yields the active THB to MMK rate.
type RateSource interface {
	ActiveRate(ctx context.Context) (decimal.Decimal, error)
}

// Service reads through a cache and prices shopping products.
type Service struct {
	store   Store
	rates   RateSource
	cache   cache.Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a Service. c may be nil to disable caching.
func New(store Store, rates RateSource, c cache.Store, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		rates:   rates,
		cache:   c,
		ttl:     ttl,
		logger:  logger.With("component", "catalog"),
		metrics: m,
	}
}

// cached returns the cached value under key or loads and stores it.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	if s.cache != nil {
		var hit T
		ok, err := s.cache.GetJSON(ctx, key, &hit)
		if err != nil {
			s.logger.Warn("read catalog cache failed", "key", key, "error", err)
		} else if ok {
			return hit, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		s.metrics.IncError("catalog")
		return v, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, v, s.ttl); err != nil {
			s.logger.Warn("write catalog cache failed", "key", key, "error", err)
		}
	}
	return v, nil
}

// Categories lists active categories by sort order.
func (s *Service) Categories(ctx context.Context) ([]repo.Category, error) {
	return cached(ctx, s, keyPrefix+"categories", s.store.ListCategories)
}

// Products lists active products, optionally within one category.
func (s *Service) Products(ctx context.Context, categoryID string) ([]repo.Product, error) {
	categoryID = strings.TrimSpace(categoryID)
	return cached(ctx, s, keyPrefix+"products:"+orAll(categoryID), func(ctx context.Context) ([]repo.Product, error) {
		return s.store.ListProducts(ctx, categoryID)
	})
}

// PaymentMethods lists active payment methods, optionally for one country.
func (s *Service) PaymentMethods(ctx context.Context, country string) ([]repo.PaymentMethod, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	return cached(ctx, s, keyPrefix+"payment-methods:"+orAll(country), func(ctx context.Context) ([]repo.PaymentMethod, error) {
		return s.store.ListPaymentMethods(ctx, country)
	})
}

func (s *Service) activeShopping(ctx context.Context) ([]repo.ShoppingProduct, error) {
	return cached(ctx, s, keyPrefix+"shopping", func(ctx context.Context) ([]repo.ShoppingProduct, error) {
		return s.store.ListShoppingProducts(ctx, false)
	})
}

// Reload drops every cached catalog read.
func (s *Service) Reload(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return n, fmt.Errorf("drop catalog cache: %w", err)
	}
	s.logger.Info("catalog cache reloaded", "keys", n)
	return n, nil
}

func (s *Service) invalidateShopping(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DeletePrefix(ctx, keyPrefix+"shopping"); err != nil {
		s.logger.Warn("drop shopping cache failed", "error", err)
	}
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
