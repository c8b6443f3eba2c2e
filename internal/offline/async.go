package offline

import (
	"context"
	"encoding/json"

	"github.com/egfanboy/mediapire-offline/internal/events"
	"github.com/egfanboy/mediapire-offline/internal/rabbitmq"
	"github.com/egfanboy/mediapire-offline/pkg/types"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type publishFunc func(ctx context.Context, routingKey string, messageBody interface{}) error

func handleAbortMessage(ctx context.Context, msg amqp091.Delivery) {
	msg.Ack(false)

	var abortMsg types.AbortDownloadRequest

	log.Info().Msg("Received download abort message")

	// an empty body aborts whatever is running
	if len(msg.Body) > 0 {
		err := json.Unmarshal(msg.Body, &abortMsg)
		if err != nil {
			log.Err(err).Msg("failed to unmarshal download abort message")

			return
		}
	}

	err := GetService().AbortDownload(ctx, abortMsg.SessionId)
	if err != nil {
		log.Err(err).Msg("failed to abort download")
	}
}

// StartEventBridge forwards every hub event to the message broker, using the
// event type as routing key, until ctx is done.
func StartEventBridge(ctx context.Context, hub *events.Hub, publish publishFunc) {
	ch := hub.Subscribe()

	go func() {
		defer hub.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}

				err := publish(ctx, evt.Type, evt.Payload)
				if err != nil {
					log.Err(err).Msgf("Failed to publish %s event", evt.Type)
				}
			}
		}
	}()
}

func init() {
	rabbitmq.RegisterConsumer(handleAbortMessage, rabbitmq.TopicDownloadAbort)
}
