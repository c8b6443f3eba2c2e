package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type connectionEnv struct {
	Connection *amqp091.Connection
	Channel    *amqp091.Channel
	Exchange   string
}

const (
	connectionString = "amqp://%s:%s@%s:%d/"

	// TopicDownloadAbort asks the service to abort its running save.
	TopicDownloadAbort = "offline.download.abort"
)

var (
	env = connectionEnv{}

	ErrNotConnected = errors.New("not connected to rabbitmq")
)

func Setup(ctx context.Context) error {
	rabbitCfg := app.GetApp().Config.Rabbit
	var err error
	env.Connection, err = amqp091.Dial(fmt.Sprintf(connectionString, rabbitCfg.Username, rabbitCfg.Password, rabbitCfg.Address, rabbitCfg.Port))
	if err != nil {
		return err
	}

	env.Channel, err = env.Connection.Channel()
	if err != nil {
		return err
	}

	env.Exchange = rabbitCfg.Exchange

	err = env.Channel.ExchangeDeclare(
		env.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)

	if err != nil {
		return err
	}

	log.Info().Msgf("Connected to rabbitmq at %s:%d", rabbitCfg.Address, rabbitCfg.Port)

	return initializeConsumers(ctx, env.Channel)
}

func IsConnected() bool {
	return env.Channel != nil && !env.Channel.IsClosed()
}

func PublishMessage(ctx context.Context, routingKey string, messageBody interface{}) error {
	if !IsConnected() {
		return ErrNotConnected
	}

	body, err := json.Marshal(messageBody)
	if err != nil {
		return err
	}

	return env.Channel.PublishWithContext(ctx, env.Exchange, routingKey, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func Cleanup() {
	if env.Channel != nil {
		env.Channel.Close()
	}

	if env.Connection != nil {
		env.Connection.Close()
	}
}
