package kafka

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-barter-market/internal/events"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes from an in-memory inbox on a background goroutine.
// Publishing never blocks the caller: when the inbox is full the message
// is dropped and logged.
type Producer struct {
	w       messageWriter
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex // guards closed against sends on a closed inbox
	closed bool
}

func NewProducer(brokers []string, buf int) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		// topic per message, lihat events.TopicFor
	}, buf)
}

func newProducer(w messageWriter, buf int) *Producer {
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the write loop until Close is called; remaining messages are
// flushed before the writer closes.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			log.Printf("producer: close writer: %v", err)
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		log.Printf("producer: write topic=%s key=%s: %v", m.Topic, m.Key, err)
	}
}

// TryPublish enqueues a message and reports whether it was accepted.
func (p *Producer) TryPublish(topic string, key, value []byte, headers ...kafka.Header) bool {
	m := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("producer: closed, dropped message topic=%s key=%s", topic, key)
		return false
	}
	select {
	case p.inbox <- m:
		return true
	default:
		log.Printf("producer: inbox full, dropped message topic=%s key=%s", topic, key)
		return false
	}
}

// Emit publishes env on the topic of its event type, keyed by its
// correlation id.
func (p *Producer) Emit(env events.Envelope) bool {
	topic := events.TopicFor(env.EventType)
	if topic == "" {
		log.Printf("producer: no topic for event type %q", env.EventType)
		return false
	}
	b, err := Marshal(env)
	if err != nil {
		log.Printf("producer: marshal %s: %v", env.EventType, err)
		return false
	}
	return p.TryPublish(topic, events.PartitionKey(env.CorrelationID), b,
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

// Tutup inbox supaya goroutine nge-flush sisa pesan lalu exit rapi.
// Publish setelah Close dibuang, tidak panic.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// Tunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
