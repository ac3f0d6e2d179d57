package services

import (
	"context"
	"encoding/json"
	"time"

	"payment-webhooks/internal/models"
	"payment-webhooks/pkg/logging"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TransactionEvent is the message published for every lifecycle change
type TransactionEvent struct {
	Kind                  HookKind                `json:"kind"`
	Provider              models.Provider         `json:"provider"`
	ProviderTransactionID string                  `json:"provider_transaction_id"`
	AccountReference      string                  `json:"account_reference"`
	Amount                string                  `json:"amount"`
	State                 models.TransactionState `json:"state"`
	OccurredAt            time.Time               `json:"occurred_at"`
}

// EventPublisher streams transaction lifecycle events to Kafka
type EventPublisher struct {
	*EventHooks
	writer messageWriter
}

// NewKafkaWriter builds the writer used by EventPublisher
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: publishBudget,
		MaxAttempts:  3,
		ErrorLogger:  kafka.LoggerFunc(logging.Errorf),
	}
}

// NewEventPublisher creates a publisher writing through w
func NewEventPublisher(w messageWriter) *EventPublisher {
	p := &EventPublisher{writer: w}
	p.EventHooks = NewEventHooks(p.publish)
	return p
}

func (p *EventPublisher) publish(ctx context.Context, kind HookKind, e HookEvent) {
	switch kind {
	case HookTransactionCreated, HookPaymentSucceeded, HookPaymentCancelled:
	default:
		return
	}
	t := e.Transaction
	if t == nil {
		return
	}

	value, err := json.Marshal(TransactionEvent{
		Kind:                  kind,
		Provider:              e.Provider,
		ProviderTransactionID: t.ProviderTransactionID,
		AccountReference:      t.AccountReference,
		Amount:                t.Amount.StringFixed(2),
		State:                 t.State,
		OccurredAt:            time.Now().UTC(),
	})
	if err != nil {
		logging.Errorf("Failed to encode transaction event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishBudget)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(lockKey(e.Provider, t.ProviderTransactionID)),
		Value: value,
	})
	if err != nil {
		logging.Errorf("Failed to publish %s event - transaction: %s, error: %v", kind, t.ProviderTransactionID, err)
		return
	}
	logging.Debugf("Published %s event - transaction: %s", kind, t.ProviderTransactionID)
}
