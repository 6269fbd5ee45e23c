package propagator

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ideal-world/bios/internal/obs/mlog"
)

// ExchangeChanges is the fanout exchange every gateway replica binds
// an exclusive queue to, so a change applied on one instance reaches
// every other instance's in-process cache mirror (spec.md §4.6,
// "notifies remote in-process caches when sharded").
const ExchangeChanges = "bios.policy.changes"

// changeMessage is the wire payload published to ExchangeChanges.
type changeMessage struct {
	TsNs        int64  `json:"ts_ns"`
	Fingerprint string `json:"fingerprint"`
}

// AmqpChannel is the narrow slice of *amqp.Channel the fan-out
// publisher needs, kept as an interface so it can be faked in tests
// without a live broker.
type AmqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitFanout publishes change notifications to ExchangeChanges,
// grounded on the teacher's ProducerRabbitMQRepository.ProducerDefault.
type RabbitFanout struct {
	Channel AmqpChannel
	Logger  mlog.Logger
}

// NewRabbitFanout builds a RabbitFanout over an already-connected
// channel, declaring the fanout exchange the way the teacher declares
// its queues in RabbitMQConnection.Connect.
func NewRabbitFanout(ch *amqp.Channel, logger mlog.Logger) (*RabbitFanout, error) {
	if err := ch.ExchangeDeclare(ExchangeChanges, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("propagator: declare exchange %q: %w", ExchangeChanges, err)
	}

	return &RabbitFanout{Channel: ch, Logger: logger}, nil
}

// NotifyChange publishes a changeMessage to ExchangeChanges.
func (f *RabbitFanout) NotifyChange(ctx context.Context, changeTsNs int64, fingerprint string) error {
	body, err := json.Marshal(changeMessage{TsNs: changeTsNs, Fingerprint: fingerprint})
	if err != nil {
		return err
	}

	if err := f.Channel.PublishWithContext(ctx, ExchangeChanges, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}); err != nil {
		if f.Logger != nil {
			f.Logger.Errorf("propagator: publish change notification: %v", err)
		}

		return err
	}

	return nil
}
