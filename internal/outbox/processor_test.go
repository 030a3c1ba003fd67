package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoronin/ledger-service/internal/models"
)

type fakeQueue struct {
	pending []models.OutboxMessage
	sent    []string
}

func (q *fakeQueue) PendingOutbox(_ context.Context, limit int) ([]models.OutboxMessage, error) {
	out := append([]models.OutboxMessage(nil), q.pending...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *fakeQueue) MarkOutboxSent(_ context.Context, id string) error {
	q.sent = append(q.sent, id)
	for i, msg := range q.pending {
		if msg.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return nil
}

type fakePublisher struct {
	written []kafka.Message
	err     error
}

func (p *fakePublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.written = append(p.written, msgs...)
	return nil
}

func pendingMessage(topic, key string) models.OutboxMessage {
	return models.OutboxMessage{
		ID:      uuid.NewString(),
		Topic:   topic,
		Key:     key,
		Payload: []byte(`{"amount":40}`),
		Status:  models.OutboxPending,
	}
}

func newTestProcessor(queue Queue, publisher Publisher) *Processor {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewProcessor(queue, publisher, 0, log)
}

func TestDrainPublishesAndMarksSent(t *testing.T) {
	first := pendingMessage("ledger.transactions", "txn-1")
	second := pendingMessage("ledger.transactions", "txn-2")
	queue := &fakeQueue{pending: []models.OutboxMessage{first, second}}
	publisher := &fakePublisher{}

	newTestProcessor(queue, publisher).drain(context.Background())

	require.Len(t, publisher.written, 2)
	assert.Equal(t, "ledger.transactions", publisher.written[0].Topic)
	assert.Equal(t, []byte("txn-1"), publisher.written[0].Key)
	assert.Equal(t, []byte(`{"amount":40}`), publisher.written[0].Value)
	assert.Equal(t, []string{first.ID, second.ID}, queue.sent)
	assert.Empty(t, queue.pending)
}

func TestDrainKeepsMessageOnPublishFailure(t *testing.T) {
	msg := pendingMessage("ledger.transactions", "txn-1")
	queue := &fakeQueue{pending: []models.OutboxMessage{msg}}
	publisher := &fakePublisher{err: errors.New("broker unreachable")}

	newTestProcessor(queue, publisher).drain(context.Background())

	// The message stays pending and will be retried on the next poll.
	assert.Empty(t, queue.sent)
	assert.Len(t, queue.pending, 1)
}

func TestTransactionMessage(t *testing.T) {
	from := uuid.NewString()
	txn := &models.Transaction{
		ID:          uuid.NewString(),
		FromAccount: &from,
		ToAccount:   uuid.NewString(),
		Amount:      40,
		Status:      models.TransactionCompleted,
	}

	msg, err := TransactionMessage("ledger.transactions", txn)
	require.NoError(t, err)
	assert.Equal(t, "ledger.transactions", msg.Topic)
	assert.Equal(t, txn.ID, msg.Key)
	assert.Equal(t, models.OutboxPending, msg.Status)

	var event TransactionEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, txn.ID, event.TransactionID)
	require.NotNil(t, event.FromAccount)
	assert.Equal(t, from, *event.FromAccount)
	assert.EqualValues(t, 40, event.Amount)
	assert.Equal(t, models.TransactionCompleted, event.Status)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestTransactionMessageFailedTransaction(t *testing.T) {
	txn := &models.Transaction{
		ID:            uuid.NewString(),
		ToAccount:     uuid.NewString(),
		Amount:        1000,
		Status:        models.TransactionFailed,
		FailureReason: models.ReasonInsufficientFunds,
	}

	msg, err := TransactionMessage("ledger.transactions", txn)
	require.NoError(t, err)

	var event TransactionEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Nil(t, event.FromAccount)
	assert.Equal(t, models.ReasonInsufficientFunds, event.FailureReason)
}
