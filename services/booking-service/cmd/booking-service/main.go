package main

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

//go:embed assets/booking.v1.yaml
var openAPISpec embed.FS

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	loc, err := config.Location("TIMEZONE", "UTC")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	maxConns, _ := config.Int("DB_MAX_CONNS", 10)
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE", false) {
		if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
			logger.Error("migration failed", "err", err)
			panic(err)
		}
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB, _ := config.Int("REDIS_DB", 0)
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if strings.TrimSpace(brokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	outboxRepo := outbox.NewRepository()
	slotRepo := storage.NewSlotRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo)
	userRepo := storage.NewUserRepository(pool)
	recipientRepo := storage.NewRecipientRepository(pool)
	validator := validation.New()

	calcOpts := []availability.Option{}
	if rdb != nil {
		cacheTTL, err := config.Duration("AVAILABILITY_CACHE_TTL", 30*time.Second)
		if err != nil {
			panic(err)
		}
		calcOpts = append(calcOpts, availability.WithCache(availability.NewRedisCache(rdb, cacheTTL, "availability")))
	}
	calculator := availability.NewCalculator(slotRepo, apptRepo, loc, logger, calcOpts...)

	dispatcher := newDispatcher(pool, userRepo, recipientRepo, loc, logger)

	bookingOpts := []booking.Option{booking.WithContacts(userRepo)}
	if strings.TrimSpace(brokers) == "" {
		notifyTimeout, err := config.Duration("NOTIFY_TIMEOUT", 10*time.Second)
		if err != nil {
			panic(err)
		}
		bookingOpts = append(bookingOpts, booking.WithNotifier(dispatcher, notifyTimeout))
		logger.Info("kafka not configured; notifications are sent in-process")
	} else {
		startEventPipeline(ctx, pool, outboxRepo, brokers, dispatcher, logger)
	}
	bookingSvc := booking.NewService(slotRepo, apptRepo, calculator, validator, logger, bookingOpts...)

	sessionTTL, err := config.Duration("BOOKING_SESSION_TTL", 30*time.Minute)
	if err != nil {
		panic(err)
	}
	var sessions booking.SessionStore
	if rdb != nil {
		sessions = booking.NewRedisSessionStore(rdb, sessionTTL, "booking:session")
	} else {
		logger.Warn("redis not configured; booking sessions are kept in memory")
		sessions = booking.NewMemorySessionStore(sessionTTL)
	}
	wizard := booking.NewWizard(sessions, calculator, bookingSvc, logger)

	var keys auth.KeySource
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwksTTL, err := config.Duration("JWKS_CACHE_TTL", 5*time.Minute)
		if err != nil {
			panic(err)
		}
		keys = auth.NewJWKSClient(jwksURL, jwksTTL)
	}
	verifier := auth.NewVerifier(config.String("JWT_SECRET", "dev-secret"), keys)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.Routes{
		Booking:      handlers.NewBookingHandler(calculator, bookingSvc, wizard, logger),
		Appointments: handlers.NewAppointmentHandler(appointments.NewService(apptRepo, calculator, loc, logger), logger),
		Slots:        handlers.NewSlotAdminHandler(slots.NewService(slotRepo, calculator, loc, validator, logger), loc, logger),
		Recipients:   handlers.NewRecipientHandler(recipientRepo, validator, logger),
		Authenticate: httpx.RequireAuth(verifier),
	}.Register(mux)
	mux.HandleFunc("GET /openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/booking.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})

	bodyLimit, _ := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		panic(err)
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRecovery(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
		httpx.WithRateLimit(newLimiter(rdb, logger), logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, healthSrv := grpcx.NewServer(logger)
	go func() {
		lis, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			return
		}
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go watchHealth(ctx, healthSrv, readyChecks)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
}

func newDispatcher(pool *db.Pool, users *storage.UserRepository, recipients *storage.RecipientRepository, loc *time.Location, logger *slog.Logger) *notify.Dispatcher {
	email := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     config.String("SMTP_HOST", "localhost"),
		Port:     config.String("SMTP_PORT", "1025"),
		From:     config.String("SMTP_FROM", "no-reply@slotbook.local"),
		Username: config.String("SMTP_USERNAME", ""),
		Password: config.String("SMTP_PASSWORD", ""),
	})
	opts := []notify.Option{notify.WithDeliveryLog(storage.NewNotificationRepository(pool))}
	if url := config.String("ADMIN_WEBHOOK_URL", ""); url != "" {
		opts = append(opts, notify.WithWebhook(notify.NewWebhookSender(url, config.String("ADMIN_WEBHOOK_TOKEN", ""))))
	}
	return notify.NewDispatcher(email, users, recipients, loc, logger, opts...)
}

// startEventPipeline ships committed booking events to Kafka and consumes
// them back to send notifications once per event.
func startEventPipeline(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, brokers string, dispatcher *notify.Dispatcher, logger *slog.Logger) {
	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		panic(err)
	}
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: pollEvery,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "booking-notifications"),
		Topic:   outbox.EventAppointmentBooked,
	}, consumer.AppointmentBookedHandler(dispatcher, logger))
	go eventConsumer.Run(ctx)
}

func newLimiter(rdb *redis.Client, logger *slog.Logger) httpx.Limiter {
	perMinute, _ := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if perMinute <= 0 {
		perMinute = 120
	}
	if rdb != nil {
		logger.Info("rate limiting enabled (redis)", "per_minute", perMinute)
		return httpx.NewRedisLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:booking"))
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", perMinute)
	return httpx.NewMemoryLimiter(perMinute, time.Minute)
}

// watchHealth mirrors the readiness checks into the gRPC health service.
func watchHealth(ctx context.Context, hs *health.Server, checks []runtime.ReadyCheck) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if failed := runtime.RunReadyChecks(checkCtx, checks); len(failed) > 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		hs.SetServingStatus("", status)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
