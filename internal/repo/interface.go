package repo

import (
	"context"
	"errors"
	"io/fs"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotPending is returned when moderating a row that already left pending.
	ErrNotPending = errors.New("request is not pending")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("conflict")
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Profiles and roles
	UpsertProfile(ctx context.Context, p Profile) (*Profile, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error)
	EmailByUsername(ctx context.Context, username string) (string, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	GrantRole(ctx context.Context, userID, role string) error

	// Wallets
	GetWallet(ctx context.Context, userID string) (*Wallet, error)

	// Orders
	InsertOrder(ctx context.Context, o Order) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)
	ModerateOrder(ctx context.Context, m Moderation) (*OrderChange, error)

	// Deposits
	InsertDeposit(ctx context.Context, d DepositRequest) (*DepositRequest, error)
	GetDeposit(ctx context.Context, id string) (*DepositRequest, error)
	ListDeposits(ctx context.Context, f ListFilter) ([]DepositRequest, error)
	ModerateDeposit(ctx context.Context, m Moderation) (*DepositChange, error)
	ReceiptInUse(ctx context.Context, receiptURL string) (bool, error)

	// Exchange rates
	ActiveExchangeRate(ctx context.Context) (*ExchangeRate, error)
	ReplaceExchangeRate(ctx context.Context, rate decimal.Decimal, setBy string) (*ExchangeRate, error)

	// Catalog
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, categoryID string) ([]Product, error)
	ListPaymentMethods(ctx context.Context, country string) ([]PaymentMethod, error)
	ListShoppingProducts(ctx context.Context, includeInactive bool) ([]ShoppingProduct, error)
	GetShoppingProduct(ctx context.Context, id string) (*ShoppingProduct, error)
	InsertShoppingProduct(ctx context.Context, p ShoppingProduct) (*ShoppingProduct, error)
	UpdateShoppingProduct(ctx context.Context, p ShoppingProduct) (*ShoppingProduct, error)
	DeactivateShoppingProduct(ctx context.Context, id string) error
}
