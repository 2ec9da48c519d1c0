package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-barter-market/internal/config"
	"github.com/ariefcatur/go-barter-market/internal/events"
	kafkax "github.com/ariefcatur/go-barter-market/internal/kafka"
	"github.com/ariefcatur/go-barter-market/internal/notify"
	"github.com/ariefcatur/go-barter-market/internal/postgres"
	"github.com/ariefcatur/go-barter-market/internal/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Holders:   &postgres.Store{DB: db},
		Dedup:     &redisx.Deduper{RDB: rdb, Service: cfg.NotifierGroup},
		Deliverer: notify.LogDeliverer{},
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, events.TopicListingChanged, cfg.NotifierWorkers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d",
			cfg.NotifierGroup, events.TopicListingChanged, cfg.NotifierWorkers)
		return cons.Start(gctx, svc.HandleListingChanged)
	})
	if err := g.Wait(); err != nil {
		log.Printf("consumer exit: %v", err)
	}
	log.Println("notifier stopped")
}
