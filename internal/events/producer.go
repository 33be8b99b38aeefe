package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"topup-store/internal/metrics"
)

// Sink receives lifecycle envelopes.
type Sink interface {
	Emit(ctx context.Context, env Envelope)
}

// Producer is an asynchronous Kafka sink. Emit never blocks: when the inbox
// is full the event is dropped and counted. A background loop drains the inbox.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProducer builds a producer for topic on brokers with an inbox of buf messages.
func NewProducer(brokers []string, topic string, buf int, logger *slog.Logger, m *metrics.Metrics) *Producer {
	if buf <= 0 {
		buf = 256
	}
	p := &Producer{
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logger:  logger.With("component", "kafka"),
		metrics: m,
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.logger.Error("kafka write failed", "messages", len(messages), "error", err)
				p.metrics.IncError("kafka")
			}
		},
	}
	return p
}

// Start runs the delivery loop until ctx is cancelled or Close is called.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	p.Close()
	for m := range p.inbox {
		p.write(m)
	}
	_ = p.w.Close()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.logger.Error("kafka enqueue failed", "key", string(m.Key), "error", err)
		p.metrics.IncError("kafka")
	}
}

// Emit queues env keyed by its correlation id, or drops it when the inbox is full.
func (p *Producer) Emit(_ context.Context, env Envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("marshal envelope failed", "event_type", env.EventType, "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("kafka producer closed, event dropped", "event_type", env.EventType)
		p.metrics.IncEventDropped("closed")
		return
	}
	select {
	case p.inbox <- msg:
	default:
		p.logger.Warn("kafka inbox saturated, event dropped", "event_type", env.EventType, "correlation_id", env.CorrelationID)
		p.metrics.IncEventDropped("full")
	}
}

// Close stops accepting events; the loop flushes what is queued and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the delivery loop has exited.
func (p *Producer) WaitClosed() { <-p.closeCh }

// Discard is a Sink that drops everything, used when no brokers are configured.
type Discard struct{}

func (Discard) Emit(context.Context, Envelope) {}

// Recorder keeps envelopes in memory. Tests use it to assert on emitted events.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Emit(_ context.Context, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
}

// Events returns a copy of what was emitted so far.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}
