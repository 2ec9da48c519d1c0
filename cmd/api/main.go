package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-barter-market/internal/config"
	"github.com/ariefcatur/go-barter-market/internal/httpx"
	kafkax "github.com/ariefcatur/go-barter-market/internal/kafka"
	"github.com/ariefcatur/go-barter-market/internal/listings"
	"github.com/ariefcatur/go-barter-market/internal/notify"
	"github.com/ariefcatur/go-barter-market/internal/orders"
	"github.com/ariefcatur/go-barter-market/internal/postgres"
	"github.com/ariefcatur/go-barter-market/internal/redisx"
	"github.com/ariefcatur/go-barter-market/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("config: JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, migrations.Init); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	store := &postgres.Store{DB: db}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer: satu writer, topic per event
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start()

	orderSvc := &orders.Service{
		Store:       store,
		TTL:         cfg.ReservationTTL(),
		MaxAttempts: cfg.TxMaxAttempts,
		Events:      prod,
		ServiceName: cfg.ServiceName,
	}
	listingSvc := &listings.Service{
		Store:       store,
		Notifier:    &notify.Publisher{Events: prod, ServiceName: cfg.ServiceName},
		TTL:         cfg.ReservationTTL(),
		MaxAttempts: cfg.TxMaxAttempts,
	}
	router := httpx.NewAPI([]byte(cfg.JWTSecret),
		&httpx.OrdersHandler{
			Service: orderSvc,
			Idem:    &redisx.Idempotency{RDB: rdb},
			Cache:   &redisx.StatusCache{RDB: rdb},
		},
		&httpx.ListingsHandler{Service: listingSvc},
	)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
