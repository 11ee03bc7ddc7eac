package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skybooking/api"
	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/auth"
	"github.com/Domenick1991/skybooking/internal/bootstrap"
	"github.com/Domenick1991/skybooking/internal/cache"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logger"
	"github.com/Domenick1991/skybooking/internal/markdown"
	"github.com/Domenick1991/skybooking/internal/metrics"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/service/accounts"
	"github.com/Domenick1991/skybooking/internal/service/companies"
	"github.com/Domenick1991/skybooking/internal/service/content"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/stats"
	"github.com/Domenick1991/skybooking/internal/service/tickets"
	"github.com/Domenick1991/skybooking/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

const idempotencyLockTTL = 30 * time.Second

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, cfg.Database.DSN(), "up"); err != nil {
			logg.Error("apply migrations", "error", err)
			os.Exit(1)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logg.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.SearchCacheDuration(), cfg.Booking.AirlinesCacheDuration())
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logg.Warn("redis unavailable, caches will miss", "error", err)
	}
	idempotency := cache.NewIdempotencyStore(redisCache.Client(), idempotencyLockTTL, cfg.Booking.IdempotencyDuration())

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logg)
	defer producer.Close()

	m := metrics.New()
	uploads := storage.NewUploads(cfg.Uploads.Dir, cfg.Uploads.PublicPath, cfg.Uploads.MaxBytes)

	userRepo := repository.NewUserRepository(pool)
	companyRepo := repository.NewCompanyRepository(pool)
	flightRepo := repository.NewFlightRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	accountService := accounts.NewAccountService(
		userRepo,
		ticketRepo,
		auth.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour),
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		uploads,
		storage.AvatarTypes,
		accounts.WithLogger(logg),
	)
	flightService := flights.NewFlightService(flightRepo, companyRepo, ticketRepo,
		flights.WithCache(redisCache),
		flights.WithMetrics(m),
		flights.WithLogger(logg),
	)
	ticketService := tickets.NewTicketService(
		ticketRepo,
		flightRepo,
		userRepo,
		repository.NewTxManager(pool),
		producer,
		cfg.Kafka.TicketsTopic,
		tickets.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		tickets.WithCache(redisCache),
		tickets.WithMetrics(m),
		tickets.WithLogger(logg),
	)
	companyService := companies.NewCompanyService(companyRepo, userRepo,
		companies.WithCache(redisCache),
		companies.WithLogger(logg),
	)
	contentService := content.NewContentService(contentRepo, flightRepo, markdown.NewRenderer(), uploads, storage.BannerTypes,
		content.WithLogger(logg),
	)
	statsService := stats.NewStatsService(statsRepo, companyRepo, flightRepo, stats.WithLogger(logg))

	if email := cfg.Auth.BootstrapAdmin; email != "" {
		if err := accountService.PromoteAdmin(ctx, email); err != nil {
			logg.Warn("bootstrap admin not promoted", "error", err)
		}
	}

	router := api.NewRouter(
		api.RouterConfig{
			Mode:        cfg.HTTP.Mode,
			UploadsDir:  uploads.Dir(),
			UploadsPath: cfg.Uploads.PublicPath,
			SwaggerDir:  cfg.HTTP.SwaggerDir,
		},
		api.Services{
			Flights:   flightService,
			Tickets:   ticketService,
			Accounts:  accountService,
			Companies: companyService,
			Content:   contentService,
			Stats:     statsService,
		},
		idempotency,
		m,
		logg,
	)

	if err := bootstrap.Run(ctx, cfg.HTTP, router, logg); err != nil {
		logg.Error("server error", "error", err)
		os.Exit(1)
	}
}
