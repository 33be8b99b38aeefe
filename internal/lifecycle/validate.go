package lifecycle

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/shopspring/decimal"

	"topup-store/internal/repo"
)

// ValidationError is returned before any store or storage call when input is
// rejected. Code names the offending field.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CategoryGame is the category type that requires a player id.
const CategoryGame = "game"

// OrderInput is the user-supplied part of a new order.
type OrderInput struct {
	ProductID    string `json:"product_id"`
	CategoryType string `json:"category_type"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	PhoneNumber  string `json:"phone_number"`
	PlayerID     string `json:"player_id"`
}

// Receipt is an uploaded proof-of-payment image.
type Receipt struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DepositInput is the user-supplied part of a new deposit request.
type DepositInput struct {
	Amount   string
	Currency string
	Receipt  *Receipt
}

func isMobileCategory(t string) bool {
	return strings.HasPrefix(t, "mobile")
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, invalid("invalid_amount", "amount is required")
	}
	amt, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid("invalid_amount", "amount %q is not a number", raw)
	}
	if !amt.IsPositive() {
		return decimal.Zero, invalid("invalid_amount", "amount must be greater than zero")
	}
	if !FitsNumeric(amt, 16, 2) {
		return decimal.Zero, invalid("invalid_amount", "amount %q must have at most 2 decimal places and 14 integer digits", raw)
	}
	return amt, nil
}

// FitsNumeric reports whether d is stored exactly by a NUMERIC(precision, scale)
// column: no more than scale fractional digits and precision-scale integer digits.
// Trailing zeros do not count, so "1.500" fits a scale of 2.
func FitsNumeric(d decimal.Decimal, precision, scale int32) bool {
	if !d.Equal(d.Truncate(scale)) {
		return false
	}
	return d.Abs().LessThan(decimal.New(1, precision-scale))
}

func parseCurrency(raw string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	switch c {
	case repo.CurrencyTHB, repo.CurrencyMMK:
		return c, nil
	}
	return "", invalid("invalid_currency", "currency must be THB or MMK")
}

// ValidateOrder checks in and builds the pending row for userID.
func ValidateOrder(userID string, in OrderInput) (repo.Order, error) {
	category := strings.TrimSpace(in.CategoryType)
	if category == "" {
		return repo.Order{}, invalid("category_required", "category type is required")
	}
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return repo.Order{}, err
	}
	currency, err := parseCurrency(in.Currency)
	if err != nil {
		return repo.Order{}, err
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	if isMobileCategory(category) && phone == "" {
		return repo.Order{}, invalid("phone_required", "phone number is required for %s", category)
	}
	player := strings.TrimSpace(in.PlayerID)
	if category == CategoryGame && player == "" {
		return repo.Order{}, invalid("player_id_required", "player id is required for game top-ups")
	}

	return repo.Order{
		UserID:       userID,
		ProductID:    optional(in.ProductID),
		CategoryType: category,
		Amount:       amount,
		Currency:     currency,
		PhoneNumber:  optional(phone),
		PlayerID:     optional(player),
		Status:       repo.StatusPending,
	}, nil
}

// ValidateDeposit checks in without reading the receipt body.
func ValidateDeposit(userID string, in DepositInput, maxReceiptBytes int64) (repo.DepositRequest, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return repo.DepositRequest{}, err
	}
	currency, err := parseCurrency(in.Currency)
	if err != nil {
		return repo.DepositRequest{}, err
	}
	r := in.Receipt
	if r == nil || r.Body == nil || r.Size == 0 {
		return repo.DepositRequest{}, invalid("receipt_required", "a receipt image is required")
	}
	if !strings.HasPrefix(r.ContentType, "image/") {
		return repo.DepositRequest{}, invalid("receipt_invalid_type", "receipt must be an image, got %q", r.ContentType)
	}
	if maxReceiptBytes > 0 && r.Size > maxReceiptBytes {
		return repo.DepositRequest{}, invalid("receipt_too_large", "receipt exceeds %d bytes", maxReceiptBytes)
	}
	return repo.DepositRequest{
		UserID:   userID,
		Amount:   amount,
		Currency: currency,
		Status:   repo.StatusPending,
	}, nil
}

var contentTypeExt = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/heic": "heic",
}

// receiptExt takes the extension from the file name, falling back to the content type.
func receiptExt(r *Receipt) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(r.Filename), "."))
	if ext != "" && len(ext) <= 5 && isAlnum(ext) {
		return ext
	}
	if e, ok := contentTypeExt[r.ContentType]; ok {
		return e
	}
	return "bin"
}

func isAlnum(s string) bool {
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
