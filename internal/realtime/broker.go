package realtime

import (
	"context"
	"log/slog"
	"sync"

	"topup-store/internal/metrics"
)

// Publisher sends a change to every subscriber of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, c Change) error
}

// Broker is a Publisher that also hands out subscriptions.
type Broker interface {
	Publisher
	Subscribe(channels ...string) *Subscription
}

// Subscription receives messages for a fixed set of channels. C is closed
// when the subscription is cancelled or dropped for falling behind.
type Subscription struct {
	C        <-chan Message
	ch       chan Message
	channels []string
	broker   *MemoryBroker
	once     sync.Once
	dropped  bool
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s)
}

// Dropped reports whether the broker disconnected the subscriber for being slow.
func (s *Subscription) Dropped() bool {
	s.broker.mu.RLock()
	defer s.broker.mu.RUnlock()
	return s.dropped
}

// MemoryBroker delivers changes to subscribers in this process.
type MemoryBroker struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ Broker = (*MemoryBroker)(nil)

// NewMemoryBroker builds a broker with buffer messages of slack per subscriber.
func NewMemoryBroker(buffer int, logger *slog.Logger, m *metrics.Metrics) *MemoryBroker {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBroker{
		subs:    make(map[string]map[*Subscription]struct{}),
		buffer:  buffer,
		logger:  logger.With("component", "realtime"),
		metrics: m,
	}
}

// Subscribe registers interest in channels.
func (b *MemoryBroker) Subscribe(channels ...string) *Subscription {
	ch := make(chan Message, b.buffer)
	s := &Subscription{C: ch, ch: ch, channels: channels, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range channels {
		set, ok := b.subs[name]
		if !ok {
			set = make(map[*Subscription]struct{})
			b.subs[name] = set
		}
		set[s] = struct{}{}
	}
	if b.metrics != nil {
		b.metrics.RealtimeSubscribers.Inc()
	}
	return s
}

// Publish delivers c to local subscribers of channel. A subscriber whose
// buffer is full is disconnected rather than allowed to stall the others.
func (b *MemoryBroker) Publish(_ context.Context, channel string, c Change) error {
	b.deliver(channel, c)
	if b.metrics != nil {
		b.metrics.RealtimePublished.WithLabelValues(c.EventType).Inc()
	}
	return nil
}

func (b *MemoryBroker) deliver(channel string, c Change) {
	msg := Message{Channel: channel, Payload: c}
	var slow []*Subscription

	b.mu.RLock()
	for s := range b.subs[channel] {
		select {
		case s.ch <- msg:
		default:
			slow = append(slow, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range slow {
		b.logger.Warn("dropping slow realtime subscriber", "channel", channel)
		b.drop(s)
	}
}

func (b *MemoryBroker) drop(s *Subscription) {
	b.mu.Lock()
	s.dropped = true
	b.mu.Unlock()
	b.remove(s)
}

func (b *MemoryBroker) remove(s *Subscription) {
	s.once.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, name := range s.channels {
			if set, ok := b.subs[name]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(b.subs, name)
				}
			}
		}
		close(s.ch)
		if b.metrics != nil {
			b.metrics.RealtimeSubscribers.Dec()
		}
	})
}
