package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeStore struct {
	entries   []Entry
	published []uuid.UUID
	claimErr  error
}

func (f *fakeStore) Claim(ctx context.Context, limit int, publish func(ctx context.Context, entries []Entry) ([]uuid.UUID, error)) (int, error) {
	if f.claimErr != nil {
		return 0, f.claimErr
	}
	batch := f.entries
	if len(batch) > limit {
		batch = batch[:limit]
	}
	if len(batch) == 0 {
		return 0, nil
	}
	ids, err := publish(ctx, batch)
	f.published = append(f.published, ids...)
	if err != nil && len(ids) == 0 {
		return 0, err
	}
	return len(ids), nil
}

type fakeProducer struct {
	failKeys map[string]bool
	records  []*kgo.Record
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		var err error
		if f.failKeys[string(r.Key)] {
			err = errors.New("broker unavailable")
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: err})
	}
	return results
}

type countingMetrics struct {
	published int
	failures  int
}

func (m *countingMetrics) AddOutboxPublished(n int) { m.published += n }
func (m *countingMetrics) IncrementOutboxFailure()  { m.failures++ }

type RelaySuite struct {
	suite.Suite
	store    *fakeStore
	producer *fakeProducer
	metrics  *countingMetrics
	relay    *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.store = &fakeStore{}
	s.producer = &fakeProducer{failKeys: map[string]bool{}}
	s.metrics = &countingMetrics{}
	relay, err := NewRelay(s.store, s.producer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithBatchSize(2),
	)
	s.Require().NoError(err)
	s.relay = relay
}

func entry(key string) Entry {
	return Entry{
		ID:            uuid.New(),
		AggregateType: "user",
		AggregateID:   key,
		EventType:     "VERIFICATION_ATTEMPT",
		Payload:       []byte(`{"kind":"attempt"}`),
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *RelaySuite) TestNewRequiresCollaborators() {
	_, err := NewRelay(nil, s.producer)
	s.Require().EqualError(err, "outbox store is required")
	_, err = NewRelay(s.store, nil)
	s.Require().EqualError(err, "producer is required")
}

func (s *RelaySuite) TestTickPublishesBatch() {
	s.store.entries = []Entry{entry("1"), entry("2"), entry("3")}

	n, err := s.relay.Tick(context.Background())
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(2, s.metrics.published)
	s.Require().Len(s.producer.records, 2)

	rec := s.producer.records[0]
	s.Equal("1", string(rec.Key))
	s.Equal(`{"kind":"attempt"}`, string(rec.Value))
	s.Equal("event_type", rec.Headers[0].Key)
	s.Equal("VERIFICATION_ATTEMPT", string(rec.Headers[0].Value))
}

func (s *RelaySuite) TestPartialFailureMarksOnlyDelivered() {
	ok, bad := entry("1"), entry("2")
	s.store.entries = []Entry{ok, bad}
	s.producer.failKeys["2"] = true

	n, err := s.relay.Tick(context.Background())
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal([]uuid.UUID{ok.ID}, s.store.published)
}

func (s *RelaySuite) TestTotalFailureIsReported() {
	s.store.entries = []Entry{entry("2")}
	s.producer.failKeys["2"] = true

	n, err := s.relay.Tick(context.Background())
	s.Require().Error(err)
	s.Zero(n)
	s.Equal(1, s.metrics.failures)
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("relay did not stop")
	}
}
