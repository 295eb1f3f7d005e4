package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/clashroyale"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/config"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/duel"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/monitor"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/middleware"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/pubsub"
	pkgws "github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/ws"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/reconcile"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/ws"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupZerolog(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := setupRepository(cfg)
	hub := pkgws.NewNotificationHub()
	publisher, closePublisher := setupPublisher(ctx, cfg, hub)
	defer closePublisher()

	crClient := clashroyale.NewClient(cfg.ClashRoyaleApiKey,
		clashroyale.WithBaseUrl(cfg.ClashRoyaleApiUrl),
		clashroyale.WithTimeout(cfg.ClashRoyaleTimeout),
		clashroyale.WithRetry(cfg.ClashRoyaleRetries),
	)
	reconciler := reconcile.New(crClient)

	mon, err := monitor.New(reconciler, setupLease(cfg), monitor.Config{
		PollInterval: cfg.MonitorPollInterval,
		Deadline:     cfg.MonitorDeadline,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize battle monitor")
	}

	service := duel.NewService(repo, crClient, reconciler, mon, publisher, duel.ServiceConfig{
		MonitorDeadline: cfg.MonitorDeadline,
	})
	mon.Start(service)
	if _, _, err := service.Rehydrate(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to rehydrate battle monitors")
	}

	server := &http.Server{
		Addr:         cfg.Port,
		Handler:      setupApiRouter(service, hub, cfg.BaseUrl),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Port).Msg("Starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Http server shutdown incomplete")
	}
	if err := mon.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("Battle monitor shutdown incomplete")
	}
}

func setupRepository(cfg config.Config) duel.Repository {
	if cfg.Store == config.StoreMemory {
		log.Warn().Msg("Using in-memory duel store, state is lost on restart")
		return duel.NewMemoryRepository()
	}

	repo := duel.NewGormRepository(setupDb(cfg.DbUrl))
	if cfg.DbAutoMigrate {
		if err := repo.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}
	return repo
}

func setupDb(dbUrl string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dbUrl), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	sqlDb, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to access database pool")
	}
	sqlDb.SetMaxOpenConns(50)
	sqlDb.SetConnMaxLifetime(time.Minute * 10)

	return db
}

// setupPublisher picks where duel events go. With Pub/Sub and a subscription
// every instance relays the shared stream to its own websocket listeners.
func setupPublisher(ctx context.Context, cfg config.Config, hub *pkgws.WebSocketNotificationHub) (pubsub.Publisher, func()) {
	var publishers pubsub.FanOut
	var closers []func() error

	relayed := false
	if cfg.GoogleProjectId != "" {
		google, err := pubsub.NewGooglePublisher(ctx, cfg.GoogleProjectId)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize pubsub")
		}
		publishers = append(publishers, google)
		closers = append(closers, google.Close)

		if cfg.EventsSubscription != "" {
			go google.Subscribe(ctx, ws.EventRelay(cfg.EventsSubscription, hub))
			relayed = true
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := pubsub.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize kafka")
		}
		publishers = append(publishers, kafka)
		closers = append(closers, kafka.Close)
	}
	if !relayed {
		publishers = append(publishers, ws.NewHubPublisher(hub))
	}

	return publishers, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warn().Err(err).Msg("Event publisher close failed")
			}
		}
	}
}

func setupLease(cfg config.Config) monitor.Lease {
	if cfg.RedisUrl == "" {
		return monitor.LocalLease{}
	}
	opts, err := redis.ParseURL(cfg.RedisUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}
	return monitor.NewRedisLease(redis.NewClient(opts))
}

func setupApiRouter(service *duel.Service, hub *pkgws.WebSocketNotificationHub, baseUrl string) *gin.Engine {
	apiRouter := gin.New()
	middleware.RegisterGlobalMiddleware(apiRouter)

	routerGroup := apiRouter.Group("/api")
	duel.RegisterRoutes(routerGroup, service, baseUrl)
	ws.RegisterRoutes(routerGroup, hub, service)

	return apiRouter
}

func setupZerolog(cfg config.Config) {
	zerolog.LevelFieldName = "severity"
	zerolog.TimestampFieldName = "time"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
