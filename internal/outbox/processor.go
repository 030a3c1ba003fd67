package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nvoronin/ledger-service/internal/models"
)

const pollBatchSize = 10

// Publisher writes messages to the broker. *kafka.Writer satisfies it.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Queue is the outbox read side. repository.Store satisfies it.
type Queue interface {
	PendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id string) error
}

// Processor polls the outbox table and publishes pending rows. Publishing is
// at-least-once: a row is marked sent only after the broker acknowledged it.
type Processor struct {
	queue     Queue
	publisher Publisher
	interval  time.Duration
	log       *logrus.Logger
}

// NewProcessor initializes a new outbox processor
func NewProcessor(queue Queue, publisher Publisher, interval time.Duration, log *logrus.Logger) *Processor {
	return &Processor{queue: queue, publisher: publisher, interval: interval, log: log}
}

// Run polls until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.log.Infof("Starting outbox processor, poll interval %s", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Processor) drain(ctx context.Context) {
	messages, err := p.queue.PendingOutbox(ctx, pollBatchSize)
	if err != nil {
		p.log.Errorf("Failed to fetch pending outbox messages: %v", err)
		return
	}

	for _, msg := range messages {
		err := p.publisher.WriteMessages(ctx, kafka.Message{
			Topic: msg.Topic,
			Key:   []byte(msg.Key),
			Value: msg.Payload,
		})
		if err != nil {
			p.log.Errorf("Failed to publish outbox message %s: %v", msg.ID, err)
			continue
		}
		if err := p.queue.MarkOutboxSent(ctx, msg.ID); err != nil {
			// The message will be republished on the next poll; consumers
			// must tolerate duplicates.
			p.log.Errorf("Failed to mark outbox message %s as sent: %v", msg.ID, err)
			continue
		}
		p.log.Debugf("Published outbox message %s to %s", msg.ID, msg.Topic)
	}
}
