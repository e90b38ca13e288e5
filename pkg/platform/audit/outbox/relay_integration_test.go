//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/platform/config"
	"warden/internal/platform/kafka"
	audit "warden/pkg/platform/audit"
	"warden/pkg/platform/audit/outbox"
	auditpostgres "warden/pkg/platform/audit/store/postgres"
	"warden/pkg/testutil/containers"
)

const topic = "warden.audit.test"

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	producer *kgo.Client
	audit    *auditpostgres.Store
	store    *outbox.PostgresStore
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())

	cfg := config.KafkaConfig{Brokers: []string{s.redpanda.Broker}, Topic: topic, Partitions: 1, Replication: 1}
	producer, err := kafka.NewClient(cfg)
	s.Require().NoError(err)
	s.Require().NoError(kafka.EnsureTopic(context.Background(), producer, cfg))
	s.producer = producer

	s.audit = auditpostgres.New(s.postgres.DB)
	s.store = outbox.NewPostgresStore(s.postgres.DB)
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_attempts", "audit_actions", "outbox"))
}

func (s *RelaySuite) TestTickPublishesAndMarks() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Require().NoError(s.audit.AppendAttempt(ctx, audit.Attempt{
		UserID: "100000000000000001", GroupID: "200000000000000001", Reason: "declined", Timestamp: now,
	}))

	relay, err := outbox.NewRelay(s.store, s.producer, outbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	n, err := relay.Tick(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, err := s.store.Pending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	var records []*kgo.Record
	for len(records) == 0 && fetchCtx.Err() == nil {
		fetches := consumer.PollFetches(fetchCtx)
		records = append(records, fetches.Records()...)
	}
	s.Require().NotEmpty(records)

	rec := records[len(records)-1]
	s.Equal("100000000000000001", string(rec.Key))
	var payload auditpostgres.OutboxPayload
	s.Require().NoError(json.Unmarshal(rec.Value, &payload))
	s.Equal(audit.AttemptAction, payload.Action)
	s.Equal("declined", payload.Details)
	s.Equal(string(audit.CategorySecurity), payload.Category)
}

func (s *RelaySuite) TestTickWithNothingPending() {
	relay, err := outbox.NewRelay(s.store, s.producer)
	s.Require().NoError(err)

	n, err := relay.Tick(context.Background())
	s.Require().NoError(err)
	s.Zero(n)
}
