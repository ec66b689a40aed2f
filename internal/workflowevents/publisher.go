// Package workflowevents publishes workflow transitions to Kafka.
package workflowevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

type Config struct {
	Brokers   []string
	Topic     string
	QueueSize int
}

// Publisher forwards transitions to Kafka through a bounded queue. Observe
// never blocks; transitions are dropped when the queue is full.
type Publisher struct {
	topic   string
	logger  *slog.Logger
	events  chan workflow.Transition
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errsWG  sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_5_0_0
	sc.Producer.Return.Errors = true
	sc.Producer.Return.Successes = false
	sc.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("workflowevents: create async producer: %w", err)
	}
	return newPublisher(prod, cfg.Topic, cfg.QueueSize, logger), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		logger:  logger,
		events:  make(chan workflow.Transition, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for tr := range p.events {
			b, err := json.Marshal(tr)
			if err != nil {
				p.logger.Error("workflowevents: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(tr.Session),
				Value: sarama.ByteEncoder(b),
			}
			observability.IncEvent("published")
		}
	}()

	p.errsWG.Add(1)
	go func() {
		defer p.errsWG.Done()
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncEvent("error")
				p.logger.Warn("workflowevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Observe implements workflow.Observer.
func (p *Publisher) Observe(tr workflow.Transition) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- tr:
	default:
		observability.IncEvent("dropped")
	}
}

// Close flushes queued transitions and closes the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	err := p.prod.Close()
	p.errsWG.Wait()
	if err != nil {
		return fmt.Errorf("workflowevents: close producer: %w", err)
	}
	return nil
}
