package repo

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-store/internal/logging"
	"topup-store/migrations"
)

func newTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	r, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(r.Close)

	sub, err := fs.Sub(migrations.Files, migrations.SQLiteDir)
	require.NoError(t, err)
	require.NoError(t, r.RunMigrations(ctx, sub))
	// Migrations are idempotent; the service applies them on every start.
	require.NoError(t, r.RunMigrations(ctx, sub))
	return r
}

func TestSQLiteOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	phone := "0812345678"
	o, err := r.InsertOrder(ctx, Order{
		UserID:       "user-1",
		CategoryType: "mobile_th",
		Amount:       decimal.RequireFromString("150"),
		Currency:     CurrencyTHB,
		PhoneNumber:  &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Nil(t, o.ProcessedAt)
	assert.Equal(t, "user-1", o.UserID)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	change, err := r.ModerateOrder(ctx, Moderation{ID: o.ID, Status: StatusApproved, AdminID: "admin-1", At: at})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, change.Old.Status)
	assert.Equal(t, StatusApproved, change.New.Status)
	require.NotNil(t, change.New.ProcessedAt)
	assert.True(t, at.Equal(*change.New.ProcessedAt))
	require.NotNil(t, change.New.ProcessedBy)
	assert.Equal(t, "admin-1", *change.New.ProcessedBy)

	_, err = r.ModerateOrder(ctx, Moderation{ID: o.ID, Status: StatusRejected, AdminID: "admin-2", At: at.Add(time.Hour)})
	require.ErrorIs(t, err, ErrNotPending)

	again, err := r.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, again.Status)
	assert.True(t, at.Equal(*again.ProcessedAt))
}

func TestSQLiteModerateUnknownOrder(t *testing.T) {
	r := newTestSQLite(t)
	_, err := r.ModerateOrder(context.Background(), Moderation{ID: "missing", Status: StatusApproved, At: time.Now()})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteConcurrentApprovalsFirstWins(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)
	o, err := r.InsertOrder(ctx, Order{UserID: "u", CategoryType: "game", Amount: decimal.NewFromInt(10), Currency: CurrencyTHB})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ModerateOrder(ctx, Moderation{ID: o.ID, Status: StatusApproved, AdminID: "admin", At: time.Now()})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, notPending int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNotPending):
			notPending++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, notPending)
}

func TestSQLiteListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	var ids []string
	for i := 0; i < 3; i++ {
		o, err := r.InsertOrder(ctx, Order{UserID: "u1", CategoryType: "game", Amount: decimal.NewFromInt(int64(i + 1)), Currency: CurrencyMMK})
		require.NoError(t, err)
		ids = append(ids, o.ID)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := r.InsertOrder(ctx, Order{UserID: "u2", CategoryType: "game", Amount: decimal.NewFromInt(9), Currency: CurrencyMMK})
	require.NoError(t, err)

	own, err := r.ListOrders(ctx, ListFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, own, 3)
	assert.Equal(t, ids[2], own[0].ID)
	assert.Equal(t, ids[0], own[2].ID)

	all, err := r.ListOrders(ctx, ListFilter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLiteDepositApprovalCreditsWallet(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	d, err := r.InsertDeposit(ctx, DepositRequest{
		UserID:     "user-9",
		Amount:     decimal.RequireFromString("500"),
		Currency:   CurrencyTHB,
		ReceiptURL: "https://x/receipts/user-9/1.png",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, d.Status)

	inUse, err := r.ReceiptInUse(ctx, d.ReceiptURL)
	require.NoError(t, err)
	assert.True(t, inUse)

	_, err = r.ModerateDeposit(ctx, Moderation{ID: d.ID, Status: StatusApproved, AdminID: "admin", At: time.Now()})
	require.NoError(t, err)

	w, err := r.GetWallet(ctx, "user-9")
	require.NoError(t, err)
	assert.True(t, w.BalanceTHB.Equal(decimal.NewFromInt(500)), "balance %s", w.BalanceTHB)
	assert.True(t, w.BalanceMMK.IsZero())
}

func TestSQLiteRejectedDepositLeavesWallet(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	d, err := r.InsertDeposit(ctx, DepositRequest{UserID: "u", Amount: decimal.NewFromInt(1000), Currency: CurrencyMMK, ReceiptURL: "r"})
	require.NoError(t, err)
	_, err = r.ModerateDeposit(ctx, Moderation{ID: d.ID, Status: StatusRejected, AdminID: "admin", At: time.Now()})
	require.NoError(t, err)

	w, err := r.GetWallet(ctx, "u")
	require.NoError(t, err)
	assert.True(t, w.BalanceMMK.IsZero())
}

func TestSQLiteReplaceExchangeRate(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	_, err := r.ActiveExchangeRate(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first, err := r.ReplaceExchangeRate(ctx, decimal.RequireFromString("95.50"), "admin")
	require.NoError(t, err)
	second, err := r.ReplaceExchangeRate(ctx, decimal.RequireFromString("96.00"), "admin")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := r.ActiveExchangeRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.True(t, active.THBToMMK.Equal(decimal.RequireFromString("96")))

	var activeCount int
	require.NoError(t, r.DB().QueryRowContext(ctx, `SELECT COUNT(1) FROM exchange_rates WHERE is_active = 1`).Scan(&activeCount))
	assert.Equal(t, 1, activeCount)
}

func TestSQLiteProfiles(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	email := "mya@example.com"
	_, err := r.UpsertProfile(ctx, Profile{ID: "u1", Username: "Mya", Email: &email})
	require.NoError(t, err)

	got, err := r.EmailByUsername(ctx, "mya")
	require.NoError(t, err)
	assert.Equal(t, email, got)

	_, err = r.EmailByUsername(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)

	lang := "my"
	p, err := r.UpdateProfile(ctx, "u1", ProfileUpdate{Language: &lang})
	require.NoError(t, err)
	assert.Equal(t, "my", p.Language)
	assert.Equal(t, "Mya", p.Username)

	_, err = r.UpsertProfile(ctx, Profile{ID: "u2", Username: "other"})
	require.NoError(t, err)
	taken := "MYA"
	_, err = r.UpdateProfile(ctx, "u2", ProfileUpdate{Username: &taken})
	require.ErrorIs(t, err, ErrConflict)

	isAdmin, err := r.HasRole(ctx, "u1", RoleAdmin)
	require.NoError(t, err)
	assert.False(t, isAdmin)
	require.NoError(t, r.GrantRole(ctx, "u1", RoleAdmin))
	require.NoError(t, r.GrantRole(ctx, "u1", RoleAdmin))
	isAdmin, err = r.HasRole(ctx, "u1", RoleAdmin)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestSQLiteShoppingProductSoftDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	p, err := r.InsertShoppingProduct(ctx, ShoppingProduct{
		NameEN:   "Power bank",
		NameMY:   "ပါဝါဘဏ်",
		PriceTHB: decimal.NewFromInt(450),
		IsActive: true,
	})
	require.NoError(t, err)
	assert.False(t, p.PriceMMK.Valid)

	p.PriceMMK = decimal.NewNullDecimal(decimal.NewFromInt(43000))
	updated, err := r.UpdateShoppingProduct(ctx, *p)
	require.NoError(t, err)
	assert.True(t, updated.PriceMMK.Valid)

	require.NoError(t, r.DeactivateShoppingProduct(ctx, p.ID))
	require.ErrorIs(t, r.DeactivateShoppingProduct(ctx, "missing"), ErrNotFound)

	active, err := r.ListShoppingProducts(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := r.ListShoppingProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}

func TestSQLiteListOrdersUnboundedByDefault(t *testing.T) {
	ctx := context.Background()
	r := newTestSQLite(t)

	for i := 0; i < 205; i++ {
		_, err := r.InsertOrder(ctx, Order{UserID: "u1", CategoryType: "game", Amount: decimal.NewFromInt(int64(i + 1)), Currency: CurrencyTHB})
		require.NoError(t, err)
	}
	_, err := r.InsertDeposit(ctx, DepositRequest{UserID: "u1", Amount: decimal.NewFromInt(5), Currency: CurrencyTHB, ReceiptURL: "r"})
	require.NoError(t, err)

	all, err := r.ListOrders(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 205)

	big, err := r.ListOrders(ctx, ListFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, big, 205)

	page, err := r.ListOrders(ctx, ListFilter{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page, 10)

	deps, err := r.ListDeposits(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}
