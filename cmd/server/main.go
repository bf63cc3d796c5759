// main wires high-level dependencies and keeps the server lifecycle small:
// HTTP listener, stream dispatcher, and Kafka relay run under one errgroup
// with signal-driven graceful shutdown. Business logic lives in internal
// packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"syncline/internal/activity"
	activitymetrics "syncline/internal/activity/metrics"
	"syncline/internal/activity/relay"
	"syncline/internal/cdc"
	"syncline/internal/entity"
	entityhandler "syncline/internal/entity/handler"
	httptransport "syncline/internal/http"
	jwttoken "syncline/internal/jwt_token"
	"syncline/internal/notification"
	"syncline/internal/platform/config"
	"syncline/internal/platform/httpserver"
	"syncline/internal/platform/logger"
	platformredis "syncline/internal/platform/redis"
	"syncline/internal/stream"
	streammetrics "syncline/internal/stream/metrics"
	"syncline/internal/tenant"
	"syncline/pkg/platform/circuit"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	var db *sql.DB
	if cfg.Postgres.URL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		activityStore   activity.Store
		entityStore     entity.Store
		membershipStore tenant.MembershipStore
	)
	if db != nil {
		activityStore = activity.NewPostgresStore(db)
		entityStore = entity.NewPostgresStore(db)
		membershipStore = tenant.NewPostgresMembershipStore(db)
	} else {
		activityStore = activity.NewInMemoryStore()
		entityStore = entity.NewInMemoryStore()
		memberships := tenant.NewInMemoryMembershipStore()
		devUser, devTenant := tenant.SeedDevMemberships(memberships)
		log.Info("seeded development membership", "user_id", devUser, "tenant_id", devTenant)
		membershipStore = memberships
	}

	actMetrics := activitymetrics.New()
	strMetrics := streammetrics.New()

	bus := activity.NewBus(log)
	publisher := activity.NewPublisher(activityStore, bus, log, activity.WithMetrics(actMetrics))

	tokens := notification.NewTokenIssuer(cfg.Tokens.SigningKey, cfg.Tokens.TTL)
	builder := notification.NewBuilder(tokens, "record")

	resolver := tenant.NewResolver(membershipStore)
	scope := tenant.NewScope(db)

	manager := stream.NewManager(activityStore, builder, resolver, log,
		stream.WithMetrics(strMetrics),
		stream.WithBufferSize(cfg.Stream.BufferSize),
		stream.WithCatchUpLimit(cfg.Stream.CatchUpLimit),
	)

	entityService := entity.NewService(entityStore, publisher)

	var entityOpts []entityhandler.Option
	if redisClient != nil {
		entityOpts = append(entityOpts, entityhandler.WithCachedReads(tokens, notification.NewSharedCache(redisClient.Client)))
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "syncline", "syncline-api")

	var cdcHandler *cdc.Handler
	if cfg.CDC.UpstreamURL != "" {
		proxy, err := cdc.New(cfg.CDC.UpstreamURL, cfg.CDC.Secret, circuit.New("cdc-upstream", 5, 30*time.Second))
		if err != nil {
			log.Error("configure cdc proxy", "error", err)
			os.Exit(1)
		}
		cdcHandler = cdc.NewHandler(proxy, log)
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		Validator:      jwttoken.NewMiddlewareAdapter(jwtService),
		TenantResolver: resolver,
		StreamHandler:  stream.NewHandler(manager, cfg.Stream.KeepAliveInterval, log),
		CDCHandler:     cdcHandler,
		EntityHandler:  entityhandler.New(entityService, scope, log, entityOpts...),
		HealthCheck: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	dispatchInbox, cancelDispatch := bus.Subscribe(cfg.Stream.BufferSize * 4)
	g.Go(func() error {
		defer cancelDispatch()
		err := manager.Run(ctx, dispatchInbox)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if len(cfg.Kafka.Brokers) > 0 {
		emitter, err := relay.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect kafka relay", "error", err)
			os.Exit(1)
		}
		defer emitter.Close()

		relayInbox, cancelRelay := bus.Subscribe(1024)
		worker := relay.NewWorker(emitter, relayInbox, circuit.New("kafka-relay", 5, time.Minute), log, relay.WithMetrics(actMetrics))
		g.Go(func() error {
			defer cancelRelay()
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		log.Info("starting syncline", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		// Subscribers see a clean close before the listener stops accepting.
		manager.Close()
		bus.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
