package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/podium-scheduler/internal/booking"
	"github.com/iliyamo/podium-scheduler/internal/config"
	"github.com/iliyamo/podium-scheduler/internal/database"
	"github.com/iliyamo/podium-scheduler/internal/handler"
	"github.com/iliyamo/podium-scheduler/internal/middleware"
	"github.com/iliyamo/podium-scheduler/internal/queue"
	"github.com/iliyamo/podium-scheduler/internal/repository"
	"github.com/iliyamo/podium-scheduler/internal/router"
	"github.com/iliyamo/podium-scheduler/internal/service"
)

func main() {
	cfg := config.Load()
	qcfg := config.LoadQueueConfig()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(database.Options{
		User:         cfg.DBUser,
		Password:     cfg.DBPass,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		Name:         cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		log.Fatalf("store: open: %v", err)
	}
	defer db.Close()
	store := repository.NewStore(db)

	// nil when Redis is unreachable; cache and rate limit then pass through
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	schedule := service.NewScheduleService(store, store.SessionTypes, store.Slots, service.ScheduleOptions{
		Location:     cfg.Location,
		DefaultWeeks: cfg.DefaultRecurrenceWeeks,
	})
	bookings := service.NewBookingService(store, store.Bookings, store.Slots, service.BookingOptions{
		Policy: booking.Policy{CancellationWindow: cfg.CancellationWindow},
	})
	children := service.NewChildService(store.Children)

	pub := queue.NewPublisher(qcfg.URL, qcfg.Exchange, qcfg.ConsumerQueue)
	defer pub.Close()
	relay := service.NewOutboxRelay(store.Outbox, pub, qcfg.RelayBatchSize, qcfg.PublishTimeout)
	if err := relay.Start(qcfg.RelayInterval); err != nil {
		log.Fatalf("outbox: start relay: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if qcfg.ConsumerEnabled {
		consumer := queue.NewConsumer(qcfg.URL, qcfg.Exchange, qcfg.ConsumerQueue, qcfg.BookingLogPath)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	mw := router.Middlewares{
		Timeout:   router.NewTimeout(cfg.RequestTimeout),
		RateLimit: middleware.NewTokenBucket(rlCfg, rdb),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
		Purge:     middleware.PurgeOnWrite(cacheCfg, rdb),
	}
	sched := handler.NewScheduleHandler(schedule)
	book := handler.NewBookingHandler(bookings)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, store.Users, store.Tokens), cfg.JWTSecret, mw)
	router.RegisterPublic(e, sched, mw)
	router.RegisterTrainer(e, sched, book, cfg.JWTSecret, mw)
	router.RegisterParent(e, book, handler.NewChildHandler(children), cfg.JWTSecret, mw)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, tz=%s)", addr, cfg.Env, cfg.Location)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := relay.Stop(); err != nil {
		log.Printf("outbox: stop relay: %v", err)
	}
}
