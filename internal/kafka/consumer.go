package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r         messageReader
	workers   int
	maxTries  uint
	retryBase time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	}), workers)
}

func newConsumer(r messageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, maxTries: 5, retryBase: 200 * time.Millisecond}
}

// Start dispatches messages to workers until ctx is done. Every partition
// is served by exactly one worker, so offsets are handled and committed in
// order. A message is committed only after its handler succeeds; when it
// still fails after the retries, Start stops and returns that error with
// the offset left uncommitted for the next run.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					continue // drain; tidak commit setelah berhenti
				}
				if err := c.process(ctx, h, m); err != nil {
					cancel(err)
				}
			}
		}(lanes[i])
	}
	stop := func(err error) error {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
		if cause := context.Cause(ctx); cause != nil {
			// kecilkan noise saat shutdown
			if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
				return nil
			}
			return cause
		}
		return err
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return stop(err)
		}
		select {
		case lanes[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return stop(nil)
		}
	}
}

func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := h(ctx, m); err != nil {
			log.Printf("consumer: handle topic=%s partition=%d offset=%d: %v", m.Topic, m.Partition, m.Offset, err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return fmt.Errorf("consumer: partition=%d offset=%d: %w", m.Partition, m.Offset, err)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("consumer: commit partition=%d offset=%d: %w", m.Partition, m.Offset, err)
	}
	return nil
}
