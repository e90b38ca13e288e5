package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"warden/internal/admin"
	groupservice "warden/internal/group/service"
	groupstore "warden/internal/group/store"
	jwttoken "warden/internal/jwt_token"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/kafka"
	"warden/internal/platform/logger"
	"warden/internal/platform/metrics"
	"warden/internal/platform/observability"
	"warden/internal/platform/postgres"
	"warden/internal/platform/redis"
	"warden/internal/propagation"
	propagationmetrics "warden/internal/propagation/metrics"
	ratelimitmetrics "warden/internal/ratelimit/metrics"
	ratelimitmw "warden/internal/ratelimit/middleware"
	ratelimitservice "warden/internal/ratelimit/service"
	"warden/internal/ratelimit/store/window"
	"warden/internal/transport/discord"
	httptransport "warden/internal/transport/http"
	"warden/internal/verification"
	verificationmetrics "warden/internal/verification/metrics"
	"warden/pkg/domain"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/audit/outbox"
	auditmemory "warden/pkg/platform/audit/store/memory"
	auditpostgres "warden/pkg/platform/audit/store/postgres"
	"warden/pkg/platform/keylock"
	"warden/pkg/platform/pseudoid"
)

var release = "dev"

// main loads configuration, wires every component and runs them until the
// process is signalled. Business logic lives in internal packages.
func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("warden stopped", "error", err)
		os.Exit(1)
	}
	log.Info("warden stopped cleanly")
}

// infra holds the optional backing services and the stores built on them.
type infra struct {
	db      *sql.DB
	redis   *redis.Client
	kafka   *kgo.Client
	audit   audit.Store
	groups  groupservice.Store
	outbox  *outbox.PostgresStore
	windows window.Store
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}

func openInfra(ctx context.Context, cfg *config.Config, log *slog.Logger, rlMetrics *ratelimitmetrics.Metrics) (*infra, error) {
	in := &infra{}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		in.db = db
		in.audit = auditpostgres.New(db)
		in.groups = groupstore.NewPostgres(db)
		in.outbox = outbox.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		in.audit = auditmemory.NewInMemoryStore()
		in.groups = groupstore.NewInMemory()
		log.Warn("DATABASE_URL not set, audit history is kept in memory")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close(log)
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.windows = window.NewFallback(window.NewRedis(rc.Client),
			window.WithFallbackLogger(log),
			window.WithDegradedObserver(rlMetrics),
		)
		log.Info("using redis rate-limit windows")
	} else {
		in.windows = window.NewInMemory()
	}

	if in.outbox != nil {
		kc, err := kafka.NewClient(cfg.Kafka)
		if err != nil {
			in.close(log)
			return nil, err
		}
		if kc != nil {
			if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka); err != nil {
				log.Warn("failed to ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
			}
			in.kafka = kc
		}
	}
	return in, nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := observability.InitSentry(cfg.SentryDSN, cfg.Server.Environment, release); err != nil {
		log.Warn("error reporting disabled", "error", err)
	}
	defer observability.Flush(2 * time.Second)

	appMetrics := metrics.New()
	rlMetrics := ratelimitmetrics.New()

	in, err := openInfra(ctx, cfg, log, rlMetrics)
	if err != nil {
		return err
	}
	defer in.close(log)

	limiter, err := ratelimitservice.New(in.windows,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(rlMetrics),
	)
	if err != nil {
		return err
	}
	groups, err := groupservice.New(in.groups, in.audit, groupservice.WithLogger(log))
	if err != nil {
		return err
	}

	session, err := discord.Dial(cfg.Discord.Token)
	if err != nil {
		return err
	}
	gateway := discord.NewGateway(session)
	propagator, err := propagation.New(gateway, groups, gateway,
		propagation.WithLogger(log),
		propagation.WithMetrics(propagationmetrics.New()),
		propagation.WithCallTimeout(cfg.Verification.PropagationTimeout),
		propagation.WithConcurrency(cfg.Verification.PropagationWorkers),
		propagation.WithPrimaryGroup(domain.GroupID(cfg.Discord.PrimaryGroupID)),
		propagation.WithInviteTTL(cfg.Verification.InviteTTL),
	)
	if err != nil {
		return err
	}
	notifier, err := discord.NewNotifier(session, discord.WithNotifierLogger(log))
	if err != nil {
		return err
	}

	pseudo, err := pseudoid.New(cfg.Verification.PseudoIDPepper)
	if err != nil {
		return err
	}
	manager, err := verification.New(in.audit, limiter, groups, propagator, notifier,
		verification.WithLogger(log),
		verification.WithMetrics(verificationmetrics.New()),
		verification.WithLocks(keylock.New(cfg.Verification.LockStripes)),
		verification.WithPseudoID(pseudo),
		verification.WithErrorReporter(observability.CaptureError),
	)
	if err != nil {
		return err
	}

	commands, err := discord.NewCommands(manager, groups, in.audit,
		discord.WithCommandsLogger(log),
		discord.WithCommandsMetrics(appMetrics),
		discord.WithLatency(session.HeartbeatLatency),
	)
	if err != nil {
		return err
	}
	bot, err := discord.NewBot(session, commands, manager, groups, notifier,
		discord.WithPrefix(cfg.Discord.Prefix),
		discord.WithAppID(cfg.Discord.AppID),
		discord.WithBotLogger(log),
	)
	if err != nil {
		return err
	}

	httpLimiter := ratelimitmw.New(cfg.Limiter.RPS, cfg.Limiter.Burst, log)
	sweeper := verification.NewSweeper(map[string]verification.Sweepable{
		"sessions":     manager,
		"windows":      limiter,
		"prompts":      notifier,
		"http_clients": httpLimiter,
	},
		verification.WithSweepInterval(cfg.Verification.SweepInterval),
		verification.WithSweepLogger(log),
	)

	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	router := httptransport.NewRouter(httptransport.Deps{
		Admin:          admin.New(manager, groups, log),
		Validator:      jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer),
		Limiter:        httpLimiter,
		Metrics:        appMetrics,
		Logger:         log,
		Checks:         checks,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("admin api listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return bot.Run(gctx) })

	if in.kafka != nil {
		relay, err := outbox.NewRelay(in.outbox, in.kafka,
			outbox.WithLogger(log),
			outbox.WithMetrics(appMetrics),
			outbox.WithInterval(cfg.Kafka.PollInterval),
			outbox.WithBatchSize(cfg.Kafka.BatchSize),
		)
		if err != nil {
			return err
		}
		g.Go(func() error { return relay.Run(gctx) })
	}

	return g.Wait()
}
