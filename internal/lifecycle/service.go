package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"topup-store/internal/events"
	"topup-store/internal/metrics"
	"topup-store/internal/realtime"
	"topup-store/internal/repo"
)

var (
	ErrNotFound   = repo.ErrNotFound
	ErrNotPending = repo.ErrNotPending
	// ErrInvalidTransition is returned when the requested target status is not an admin decision.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DefaultExchangeRate is served when no active rate row exists yet.
var DefaultExchangeRate = decimal.RequireFromString("95.50")

// Store is the persistence the lifecycle needs.
type Store interface {
	InsertOrder(ctx context.Context, o repo.Order) (*repo.Order, error)
	GetOrder(ctx context.Context, id string) (*repo.Order, error)
	ListOrders(ctx context.Context, f repo.ListFilter) ([]repo.Order, error)
	ModerateOrder(ctx context.Context, m repo.Moderation) (*repo.OrderChange, error)
	InsertDeposit(ctx context.Context, d repo.DepositRequest) (*repo.DepositRequest, error)
	GetDeposit(ctx context.Context, id string) (*repo.DepositRequest, error)
	ListDeposits(ctx context.Context, f repo.ListFilter) ([]repo.DepositRequest, error)
	ModerateDeposit(ctx context.Context, m repo.Moderation) (*repo.DepositChange, error)
	ActiveExchangeRate(ctx context.Context) (*repo.ExchangeRate, error)
	ReplaceExchangeRate(ctx context.Context, rate decimal.Decimal, setBy string) (*repo.ExchangeRate, error)
}

// ObjectStore holds receipt images.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error
	Remove(ctx context.Context, bucket string, paths []string) error
	PublicURL(bucket, path string) string
}

// Notifier alerts the shop operators about new requests.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Options configures a Service.
type Options struct {
	Store           Store
	Objects         ObjectStore
	Publisher       realtime.Publisher
	Events          events.Sink
	Notifier        Notifier
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	ReceiptsBucket  string
	MaxReceiptBytes int64
	NotifyTimeout   time.Duration
}

// Service owns every write to orders, deposit requests and exchange rates.
type Service struct {
	store     Store
	objects   ObjectStore
	publisher realtime.Publisher
	events    events.Sink
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics

	bucket        string
	maxReceipt    int64
	notifyTimeout time.Duration
	now           func() time.Time

	wg sync.WaitGroup
}

// NewService validates opts and returns a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("lifecycle: store is required")
	}
	if opts.Objects == nil {
		return nil, errors.New("lifecycle: object store is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("lifecycle: publisher is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Events == nil {
		opts.Events = events.Discard{}
	}
	if opts.ReceiptsBucket == "" {
		opts.ReceiptsBucket = "receipts"
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Service{
		store:         opts.Store,
		objects:       opts.Objects,
		publisher:     opts.Publisher,
		events:        opts.Events,
		notifier:      opts.Notifier,
		logger:        opts.Logger.With("component", "lifecycle"),
		metrics:       opts.Metrics,
		bucket:        opts.ReceiptsBucket,
		maxReceipt:    opts.MaxReceiptBytes,
		notifyTimeout: opts.NotifyTimeout,
		now:           time.Now,
	}, nil
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() { s.wg.Wait() }

// CreateOrder validates in and stores a pending order owned by userID.
func (s *Service) CreateOrder(ctx context.Context, userID string, in OrderInput) (*repo.Order, error) {
	o, err := ValidateOrder(userID, in)
	if err != nil {
		return nil, err
	}
	created, err := s.store.InsertOrder(ctx, o)
	if err != nil {
		s.metrics.IncError("lifecycle")
		return nil, fmt.Errorf("insert order: %w", err)
	}
	s.logger.Info("order submitted", "order_id", created.ID, "user_id", userID, "category", created.CategoryType)
	s.countTransition("order", created.Status)

	s.announce(ctx, realtime.OrdersChannel(userID), realtime.EventInsert, created, nil)
	s.emit(ctx, events.EventOrderSubmitted, created.ID, created)
	s.notify(orderMessage(created))
	return created, nil
}

// CreateDeposit validates in, uploads the receipt and stores a pending deposit.
// The uploaded object is removed again when the insert fails.
func (s *Service) CreateDeposit(ctx context.Context, userID string, in DepositInput) (*repo.DepositRequest, error) {
	d, err := ValidateDeposit(userID, in, s.maxReceipt)
	if err != nil {
		return nil, err
	}

	objectPath := fmt.Sprintf("%s/%d.%s", userID, s.now().UnixMilli(), receiptExt(in.Receipt))
	if err := s.objects.Upload(ctx, s.bucket, objectPath, in.Receipt.Body, in.Receipt.ContentType); err != nil {
		s.metrics.IncError("storage")
		return nil, fmt.Errorf("upload receipt: %w", err)
	}
	d.ReceiptURL = s.objects.PublicURL(s.bucket, objectPath)

	created, err := s.store.InsertDeposit(ctx, d)
	if err != nil {
		s.metrics.IncError("lifecycle")
		if rmErr := s.objects.Remove(context.WithoutCancel(ctx), s.bucket, []string{objectPath}); rmErr != nil {
			s.logger.Warn("orphaned receipt left for sweeper", "path", objectPath, "error", rmErr)
		}
		return nil, fmt.Errorf("insert deposit: %w", err)
	}
	s.logger.Info("deposit submitted", "deposit_id", created.ID, "user_id", userID,
		"amount", created.Amount.String(), "currency", created.Currency)
	s.countTransition("deposit", created.Status)

	s.announce(ctx, realtime.DepositsChannel(userID), realtime.EventInsert, created, nil)
	s.emit(ctx, events.EventDepositSubmitted, created.ID, created)
	s.notify(depositMessage(created))
	return created, nil
}

// ListOrders returns orders newest first.
func (s *Service) ListOrders(ctx context.Context, f repo.ListFilter) ([]repo.Order, error) {
	out, err := s.store.ListOrders(ctx, f)
	if err != nil {
		s.metrics.IncError("lifecycle")
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// ListDeposits returns deposit requests newest first.
func (s *Service) ListDeposits(ctx context.Context, f repo.ListFilter) ([]repo.DepositRequest, error) {
	out, err := s.store.ListDeposits(ctx, f)
	if err != nil {
		s.metrics.IncError("lifecycle")
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	return out, nil
}

// OwnOrder returns the order only when userID owns it.
func (s *Service) OwnOrder(ctx context.Context, userID, id string) (*repo.Order, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ModerateOrder applies an admin decision to a pending order.
func (s *Service) ModerateOrder(ctx context.Context, adminID, id string, to repo.Status, note string) (*repo.Order, error) {
	m, err := s.moderation(adminID, id, to, note)
	if err != nil {
		return nil, err
	}
	change, err := s.store.ModerateOrder(ctx, m)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNotPending) {
			s.metrics.IncError("lifecycle")
		}
		return nil, fmt.Errorf("moderate order %s: %w", id, err)
	}
	s.logger.Info("order moderated", "order_id", id, "status", change.New.Status, "admin_id", adminID)
	s.countTransition("order", change.New.Status)

	s.announce(ctx, realtime.OrdersChannel(change.New.UserID), realtime.EventUpdate, change.New, change.Old)
	s.emit(ctx, events.EventOrderModerated, id, change.New)
	return &change.New, nil
}

// ModerateDeposit applies an admin decision to a pending deposit. Approval
// credits the owner's wallet in the same store transaction.
func (s *Service) ModerateDeposit(ctx context.Context, adminID, id string, to repo.Status, note string) (*repo.DepositRequest, error) {
	m, err := s.moderation(adminID, id, to, note)
	if err != nil {
		return nil, err
	}
	change, err := s.store.ModerateDeposit(ctx, m)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNotPending) {
			s.metrics.IncError("lifecycle")
		}
		return nil, fmt.Errorf("moderate deposit %s: %w", id, err)
	}
	s.logger.Info("deposit moderated", "deposit_id", id, "status", change.New.Status, "admin_id", adminID)
	s.countTransition("deposit", change.New.Status)

	s.announce(ctx, realtime.DepositsChannel(change.New.UserID), realtime.EventUpdate, change.New, change.Old)
	s.emit(ctx, events.EventDepositModerated, id, change.New)
	return &change.New, nil
}

func (s *Service) moderation(adminID, id string, to repo.Status, note string) (repo.Moderation, error) {
	if !CanTransition(repo.StatusPending, to) {
		return repo.Moderation{}, fmt.Errorf("%w: %s", ErrInvalidTransition, to)
	}
	if !validID(id) {
		return repo.Moderation{}, ErrNotFound
	}
	return repo.Moderation{
		ID:      id,
		Status:  to,
		AdminID: adminID,
		Note:    optional(note),
		At:      s.now().UTC(),
	}, nil
}

// ActiveRate returns the active THB to MMK rate, or DefaultExchangeRate on a fresh store.
func (s *Service) ActiveRate(ctx context.Context) (decimal.Decimal, error) {
	r, err := s.store.ActiveExchangeRate(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return DefaultExchangeRate, nil
	}
	if err != nil {
		s.metrics.IncError("lifecycle")
		return decimal.Zero, fmt.Errorf("active exchange rate: %w", err)
	}
	return r.THBToMMK, nil
}

// UpdateExchangeRate replaces the active rate in one transaction.
func (s *Service) UpdateExchangeRate(ctx context.Context, adminID, raw string) (*repo.ExchangeRate, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !rate.IsPositive() {
		return nil, invalid("invalid_rate", "exchange rate must be a positive number")
	}
	if !FitsNumeric(rate, 12, 4) {
		return nil, invalid("invalid_rate", "exchange rate must have at most 4 decimal places and 8 integer digits")
	}
	r, err := s.store.ReplaceExchangeRate(ctx, rate, adminID)
	if err != nil {
		s.metrics.IncError("lifecycle")
		return nil, fmt.Errorf("replace exchange rate: %w", err)
	}
	s.logger.Info("exchange rate replaced", "rate", r.THBToMMK.String(), "admin_id", adminID)
	s.emit(ctx, events.EventRateReplaced, r.ID, r)
	return r, nil
}

// announce publishes after commit. Failures are logged; the write already happened.
func (s *Service) announce(ctx context.Context, channel, eventType string, newRow, oldRow any) {
	c, err := realtime.NewChange(eventType, newRow, oldRow)
	if err == nil {
		err = s.publisher.Publish(context.WithoutCancel(ctx), channel, c)
	}
	if err != nil {
		s.metrics.IncError("realtime")
		s.logger.Warn("realtime publish failed", "channel", channel, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, eventType, id string, payload any) {
	env, err := events.NewEnvelope(eventType, id, payload)
	if err != nil {
		s.logger.Warn("event envelope failed", "event_type", eventType, "error", err)
		return
	}
	s.events.Emit(context.WithoutCancel(ctx), env)
}

func (s *Service) notify(text string) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, text); err != nil {
			s.metrics.IncError("notify")
			s.logger.Warn("admin notification failed", "error", err)
		}
	}()
}

func (s *Service) countTransition(kind string, st repo.Status) {
	if s.metrics == nil {
		return
	}
	s.metrics.LifecycleTransitions.WithLabelValues(kind, string(st)).Inc()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func orderMessage(o *repo.Order) string {
	var b strings.Builder
	b.WriteString("🔔 New order\n")
	fmt.Fprintf(&b, "Category: %s\n", o.CategoryType)
	if o.PhoneNumber != nil {
		fmt.Fprintf(&b, "Phone: %s\n", *o.PhoneNumber)
	}
	if o.PlayerID != nil {
		fmt.Fprintf(&b, "Player ID: %s\n", *o.PlayerID)
	}
	fmt.Fprintf(&b, "Amount: %s %s\n", o.Amount.String(), o.Currency)
	fmt.Fprintf(&b, "Order: %s", o.ID)
	return b.String()
}

func depositMessage(d *repo.DepositRequest) string {
	return fmt.Sprintf("💰 New deposit\nAmount: %s %s\nReceipt: %s\nDeposit: %s",
		d.Amount.String(), d.Currency, d.ReceiptURL, d.ID)
}
