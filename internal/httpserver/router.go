package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"topup-store/internal/auth"
	"topup-store/internal/catalog"
	"topup-store/internal/lifecycle"
	"topup-store/internal/metrics"
	"topup-store/internal/repo"
	"topup-store/internal/supabase"
)

const (
	readTimeout  = 3 * time.Second
	writeTimeout = 5 * time.Second
)

// AuthService signs users in and out and answers role questions.
type AuthService interface {
	SignIn(ctx context.Context, identifier, password string) (*supabase.Session, error)
	SignUp(ctx context.Context, email, password, username string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Lifecycle handles orders, deposits and the exchange rate.
type Lifecycle interface {
	CreateOrder(ctx context.Context, userID string, in lifecycle.OrderInput) (*repo.Order, error)
	CreateDeposit(ctx context.Context, userID string, in lifecycle.DepositInput) (*repo.DepositRequest, error)
	ListOrders(ctx context.Context, f repo.ListFilter) ([]repo.Order, error)
	ListDeposits(ctx context.Context, f repo.ListFilter) ([]repo.DepositRequest, error)
	OwnOrder(ctx context.Context, userID, id string) (*repo.Order, error)
	ModerateOrder(ctx context.Context, adminID, id string, to repo.Status, note string) (*repo.Order, error)
	ModerateDeposit(ctx context.Context, adminID, id string, to repo.Status, note string) (*repo.DepositRequest, error)
	ActiveRate(ctx context.Context) (decimal.Decimal, error)
	UpdateExchangeRate(ctx context.Context, adminID, raw string) (*repo.ExchangeRate, error)
}

// Catalog serves browsable data and admin product edits.
type Catalog interface {
	Categories(ctx context.Context) ([]repo.Category, error)
	Products(ctx context.Context, categoryID string) ([]repo.Product, error)
	PaymentMethods(ctx context.Context, country string) ([]repo.PaymentMethod, error)
	Shopping(ctx context.Context, q catalog.Query) ([]catalog.PricedProduct, error)
	AdminShopping(ctx context.Context) ([]repo.ShoppingProduct, error)
	CreateShopping(ctx context.Context, in catalog.ShoppingInput) (*repo.ShoppingProduct, error)
	UpdateShopping(ctx context.Context, id string, in catalog.ShoppingInput) (*repo.ShoppingProduct, error)
	DeleteShopping(ctx context.Context, id string) error
	Reload(ctx context.Context) (int, error)
}

// Accounts reads and edits profiles and wallets.
type Accounts interface {
	GetProfile(ctx context.Context, userID string) (*repo.Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd repo.ProfileUpdate) (*repo.Profile, error)
	GetWallet(ctx context.Context, userID string) (*repo.Wallet, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router mounts.
type Deps struct {
	Auth            AuthService
	Verifier        auth.TokenVerifier
	Lifecycle       Lifecycle
	Catalog         Catalog
	Accounts        Accounts
	Health          Pinger
	Realtime        http.Handler
	Limiter         *RateLimiter
	MaxReceiptBytes int64
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

type api struct {
	Deps
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRouter builds the storefront API.
func NewRouter(d Deps) http.Handler {
	a := &api{Deps: d, logger: d.Logger.With("component", "api"), metrics: d.Metrics}
	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = d.Limiter.Handler
	}
	authenticate := auth.Authenticate(d.Verifier, a.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, instrument(a.logger, d.Metrics), middleware.Recoverer)

	r.Get("/healthz", a.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Use(limit, middleware.Timeout(writeTimeout))
		r.Post("/signup", a.signUp)
		r.Post("/signin", a.signIn)
		r.With(authenticate).Post("/signout", a.signOut)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(readTimeout))
		r.Get("/catalog/categories", a.categories)
		r.Get("/catalog/products", a.products)
		r.Get("/catalog/shopping", a.shopping)
		r.Get("/catalog/payment-methods", a.paymentMethods)
		r.Get("/exchange-rate", a.exchangeRate)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate, limit)

		if d.Realtime != nil {
			r.Handle("/realtime", d.Realtime)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(readTimeout))
			r.Get("/me", a.me)
			r.Get("/wallet", a.wallet)
			r.Get("/history/orders", a.ownOrders)
			r.Get("/history/orders/{id}/receipt", a.orderReceipt)
			r.Get("/history/deposits", a.ownDeposits)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(writeTimeout))
			r.Put("/me", a.updateMe)
			r.Post("/orders", a.createOrder)
			r.Post("/deposits", a.createDeposit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(d.Auth, a.logger))
			r.With(middleware.Timeout(readTimeout)).Get("/orders", a.adminOrders)
			r.With(middleware.Timeout(readTimeout)).Get("/deposits", a.adminDeposits)
			r.With(middleware.Timeout(readTimeout)).Get("/shopping-products", a.adminShopping)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(writeTimeout))
				r.Post("/orders/{id}/{action}", a.moderateOrder)
				r.Post("/deposits/{id}/{action}", a.moderateDeposit)
				r.Put("/exchange-rate", a.updateExchangeRate)
				r.Post("/shopping-products", a.createShopping)
				r.Put("/shopping-products/{id}", a.updateShopping)
				r.Delete("/shopping-products/{id}", a.deleteShopping)
				r.Post("/reload-catalog-cache", a.reloadCatalog)
			})
		})
	})

	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
