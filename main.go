package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homeserve/config"
	"homeserve/cron"
	"homeserve/database"
	bookingRepo "homeserve/database/repository/booking"
	workerRepo "homeserve/database/repository/worker"
	"homeserve/handlers"
	"homeserve/routes"
	"homeserve/services/booking"
	"homeserve/services/events"
	"homeserve/services/pricing"
	"homeserve/services/tasks"
	"homeserve/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// buildStores opens the configured booking store and worker directory.
func buildStores(ctx context.Context, logger *zap.Logger) (bookingRepo.BookingRepository, workerRepo.WorkerRepository) {
	switch config.AppConfig.StoreDriver {
	case "postgres":
		if err := database.InitPostgres(); err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		store := bookingRepo.NewGormBookingRepo(database.PostgresDB)
		if err := store.Migrate(); err != nil {
			logger.Sugar().Fatalf("main: booking migration failed: %v", err)
		}
		workers := workerRepo.NewGormWorkerRepo(database.PostgresDB)
		if err := workers.Migrate(); err != nil {
			logger.Sugar().Fatalf("main: worker migration failed: %v", err)
		}
		return store, workers
	case "memory":
		logger.Warn("using in-memory booking store; data is lost on restart")
		return bookingRepo.NewMemoryBookingRepo(), workerRepo.NewMemoryWorkerRepo()
	default:
		database.InitDB()
		store := bookingRepo.NewMongoBookingRepoFor(database.MongoDatabase())
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		workers := workerRepo.NewMongoWorkerRepo()
		if mw, ok := workers.(*workerRepo.MongoWorkerRepo); ok {
			if err := mw.EnsureIndexes(ctx); err != nil {
				logger.Sugar().Fatalf("main: %v", err)
			}
		}
		return store, workers
	}
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(config.AppConfig.Timezone)
	if err != nil {
		logger.Sugar().Fatalf("main: invalid TIMEZONE %q: %v", config.AppConfig.Timezone, err)
	}

	store, workers := buildStores(ctx, logger)
	// The memory driver runs self-contained, without Redis.
	useRedis := config.AppConfig.RedisAddr != "" && config.AppConfig.StoreDriver != "memory"

	var locker booking.Locker = booking.NewMemoryLocker()
	var redisClients []*redis.Client
	if useRedis {
		cache := utils.GetCacheClient()
		lockClient := utils.GetLockClient()
		redisClients = append(redisClients, cache, lockClient)
		workers = workerRepo.NewCachedWorkerRepo(workers, cache, 5*time.Minute, logger)
		locker = utils.NewRedisLocker(lockClient, time.Duration(config.AppConfig.LockTTLSeconds)*time.Second)
	} else {
		logger.Warn("Redis disabled; using in-process leases and no reminders")
	}

	// Event delivery: log every event, publish to RabbitMQ and schedule
	// reminders when those are configured.
	sinks := events.MultiSink{events.LogSink{Logger: logger}}
	if url := config.AppConfig.RabbitMQURL; url != "" {
		rabbit, err := events.NewRabbitSink(url, config.AppConfig.RabbitMQExchange)
		if err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		defer rabbit.Close()
		sinks = append(sinks, rabbit)
	}
	if useRedis {
		queue := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     config.AppConfig.RedisAddr,
			Password: config.AppConfig.RedisPassword,
			DB:       config.AppConfig.RedisReminderQueueDB,
		})
		defer queue.Close()
		lead := time.Duration(config.AppConfig.ReminderLeadMinutes) * time.Minute
		sinks = append(sinks, tasks.NewReminderScheduler(queue, lead, loc))
		cron.InitReminderWorker(ctx, store, sinks)
	}

	relay := events.NewRelay(store, sinks, time.Duration(config.AppConfig.OutboxPollSeconds)*time.Second)
	go relay.Run(ctx)

	utils.StartHealthMonitor(ctx, redisClients, store.Ping)

	bookingService := &booking.DefaultBookingService{
		Store:    store,
		Workers:  workers,
		Pricing:  pricing.NewCalculator(config.AppConfig.Pricing),
		Identity: booking.NewContextIdentity(config.AdminIDList()),
		Locker:   locker,
		Outbox:   relay,
		Location: loc,
		Logger:   logger,
	}

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	routes.RegisterRoutes(router, handlers.NewHandlerBundle(bookingService), config.AppConfig.MaxRequestsPerMin)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	// Flush whatever committed while shutting down.
	if _, err := relay.Drain(shutdownCtx); err != nil {
		logger.Warn("main: outbox not fully drained", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
