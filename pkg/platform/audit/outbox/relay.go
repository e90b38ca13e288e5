// Package outbox publishes audit outbox rows to Kafka.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

type Store interface {
	Claim(ctx context.Context, limit int, publish func(ctx context.Context, entries []Entry) ([]uuid.UUID, error)) (int, error)
}

// Producer is the subset of *kgo.Client the relay needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Metrics interface {
	AddOutboxPublished(n int)
	IncrementOutboxFailure()
}

// Relay polls the outbox and produces each row as a Kafka record keyed by
// its aggregate id, so entries for one user stay ordered within a partition.
type Relay struct {
	store     Store
	producer  Producer
	logger    *slog.Logger
	metrics   Metrics
	interval  time.Duration
	batchSize int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(store Store, producer Producer, opts ...Option) (*Relay, error) {
	if store == nil {
		return nil, errors.New("outbox store is required")
	}
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	r := &Relay{
		store:     store,
		producer:  producer,
		logger:    slog.Default(),
		interval:  2 * time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for ctx.Err() == nil {
		n, err := r.Tick(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "outbox relay tick failed", "error", err)
		}
		if n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// Tick publishes one batch and returns how many rows were marked published.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	n, err := r.store.Claim(ctx, r.batchSize, r.publish)
	if err != nil {
		r.incFailure()
		return n, err
	}
	if n > 0 {
		r.logger.DebugContext(ctx, "outbox batch published", "count", n)
		if r.metrics != nil {
			r.metrics.AddOutboxPublished(n)
		}
	}
	return n, nil
}

func (r *Relay) publish(ctx context.Context, entries []Entry) ([]uuid.UUID, error) {
	records := make([]*kgo.Record, len(entries))
	byRecord := make(map[*kgo.Record]uuid.UUID, len(entries))
	for i, e := range entries {
		rec := &kgo.Record{
			Key:       []byte(e.AggregateID),
			Value:     e.Payload,
			Timestamp: e.CreatedAt,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "aggregate_type", Value: []byte(e.AggregateType)},
				{Key: "event_id", Value: []byte(e.ID.String())},
			},
		}
		records[i] = rec
		byRecord[rec] = e.ID
	}

	results := r.producer.ProduceSync(ctx, records...)
	var (
		ok       []uuid.UUID
		firstErr error
	)
	for _, res := range results {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		ok = append(ok, byRecord[res.Record])
	}
	if firstErr != nil {
		r.logger.WarnContext(ctx, "some outbox records failed to publish",
			"failed", len(entries)-len(ok),
			"error", firstErr,
		)
	}
	return ok, firstErr
}

func (r *Relay) incFailure() {
	if r.metrics != nil {
		r.metrics.IncrementOutboxFailure()
	}
}
