package helpers

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

func NatsPublish(nc *nats.Conn, subject string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return nc.Publish(subject, payloadJSON)
}

// NatsSubscribeJSON subscribes to a subject and decodes each message into T
// before invoking the handler. A malformed payload is passed on as decodeErr
// instead of killing the subscription.
func NatsSubscribeJSON[T any](nc *nats.Conn, subject string, handler func(payload T, decodeErr error)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var payload T
		err := json.Unmarshal(msg.Data, &payload)
		handler(payload, err)
	})
}
