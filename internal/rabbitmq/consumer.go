package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/rs/zerolog/log"

	"github.com/rabbitmq/amqp091-go"
)

type consumerHandler func(ctx context.Context, msg amqp091.Delivery)

type consumerMapping struct {
	Mu   sync.Mutex
	Data map[string]consumerHandler
}

var cm = &consumerMapping{Mu: sync.Mutex{}, Data: map[string]consumerHandler{}}

func RegisterConsumer(h consumerHandler, routingKey string) {
	cm.Mu.Lock()
	defer cm.Mu.Unlock()
	cm.Data[routingKey] = h
}

func routingKeys() []string {
	cm.Mu.Lock()
	defer cm.Mu.Unlock()

	keys := make([]string, 0, len(cm.Data))
	for k := range cm.Data {
		keys = append(keys, k)
	}

	return keys
}

// dispatch hands msg to the handler of its routing key. It reports false when
// nothing is registered for it.
func dispatch(ctx context.Context, msg amqp091.Delivery) bool {
	cm.Mu.Lock()
	handler, ok := cm.Data[msg.RoutingKey]
	cm.Mu.Unlock()

	if !ok {
		log.Debug().Msgf("No handler registered for routing key %s. Message acknowledge but no action taken", msg.RoutingKey)

		return false
	}

	handler(ctx, msg)

	return true
}

func initializeConsumers(ctx context.Context, channel *amqp091.Channel) error {
	q, err := channel.QueueDeclare(
		fmt.Sprintf("mediapire-offline-%s", app.GetApp().Config.Name), // name
		true,  // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	for _, routingKey := range routingKeys() {
		log.Debug().Msgf("Setting up consumer for routing key %s", routingKey)

		err = channel.QueueBind(
			q.Name,       // queue name
			routingKey,   // routing key
			env.Exchange, // exchange
			false,
			nil)
		if err != nil {
			return err
		}
	}

	msgs, err := channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto ack
		false,  // exclusive
		false,  // no local
		false,  // no wait
		nil,    // args
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			log.Debug().Msgf("Handling message for routing key %s", msg.RoutingKey)

			go func(m amqp091.Delivery) {
				if !dispatch(context.Background(), m) {
					m.Ack(false)
				}
			}(msg)
		}
	}()

	return nil
}
