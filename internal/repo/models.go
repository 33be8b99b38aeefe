package repo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the moderation state shared by orders and deposit requests.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Supported currencies.
const (
	CurrencyTHB = "THB"
	CurrencyMMK = "MMK"
)

// Roles stored in user_roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Order represents a row in the orders table.
type Order struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	ProductID    *string         `json:"product_id"`
	CategoryType string          `json:"category_type"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PhoneNumber  *string         `json:"phone_number"`
	PlayerID     *string         `json:"player_id"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at"`
	ProcessedBy  *string         `json:"processed_by"`
	AdminNote    *string         `json:"admin_note"`
}

// DepositRequest represents a row in the deposit_requests table.
type DepositRequest struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ReceiptURL  string          `json:"receipt_url"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at"`
	ProcessedBy *string         `json:"processed_by"`
	AdminNote   *string         `json:"admin_note"`
}

// Moderation describes one admin decision on a pending row.
type Moderation struct {
	ID      string
	Status  Status
	AdminID string
	Note    *string
	At      time.Time
}

// OrderChange carries the row before and after a moderation update.
type OrderChange struct {
	Old Order
	New Order
}

// DepositChange carries the row before and after a moderation update.
type DepositChange struct {
	Old DepositRequest
	New DepositRequest
}

// ListFilter narrows order and deposit listings. Zero values mean "any";
// a zero Limit returns every matching row.
type ListFilter struct {
	UserID string
	Status Status
	Limit  int
}

// Wallet holds per-user balances.
type Wallet struct {
	UserID     string          `json:"user_id"`
	BalanceTHB decimal.Decimal `json:"balance_thb"`
	BalanceMMK decimal.Decimal `json:"balance_mmk"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ExchangeRate is one THB to MMK conversion rate record.
type ExchangeRate struct {
	ID        string          `json:"id"`
	THBToMMK  decimal.Decimal `json:"thb_to_mmk"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	SetBy     *string         `json:"set_by"`
}

// Category groups top-up products; Type is copied onto orders as category_type.
type Category struct {
	ID        string    `json:"id"`
	NameEN    string    `json:"name_en"`
	NameMY    string    `json:"name_my"`
	Type      string    `json:"type"`
	Icon      *string   `json:"icon"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a top-up denomination within a category.
type Product struct {
	ID         string              `json:"id"`
	CategoryID *string             `json:"category_id"`
	NameEN     string              `json:"name_en"`
	NameMY     string              `json:"name_my"`
	ImageURL   *string             `json:"image_url"`
	PriceTHB   decimal.Decimal     `json:"price_thb"`
	PriceMMK   decimal.NullDecimal `json:"price_mmk"`
	SortOrder  int                 `json:"sort_order"`
	IsActive   bool                `json:"is_active"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ShoppingProduct is a physical or digital item sold outside the top-up flow.
type ShoppingProduct struct {
	ID            string              `json:"id"`
	NameEN        string              `json:"name_en"`
	NameMY        string              `json:"name_my"`
	DescriptionEN *string             `json:"description_en"`
	DescriptionMY *string             `json:"description_my"`
	ImageURL      *string             `json:"image_url"`
	PriceTHB      decimal.Decimal     `json:"price_thb"`
	PriceMMK      decimal.NullDecimal `json:"price_mmk"`
	SortOrder     int                 `json:"sort_order"`
	IsActive      bool                `json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// PaymentMethod is a bank or wallet account users pay into.
type PaymentMethod struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Country     string    `json:"country"`
	AccountInfo *string   `json:"account_info"`
	QRCodeURL   *string   `json:"qr_code_url"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile represents the profiles table row.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  *string   `json:"full_name"`
	Language  string    `json:"language"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the user-editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Username *string
	FullName *string
	Language *string
}
