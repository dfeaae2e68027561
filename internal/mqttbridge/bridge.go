// Package mqttbridge subscribes to a broker and lands device messages in a
// history table, one row per message.
package mqttbridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rantahar/aware-filter/internal/storage"
)

// HistoryTable is where broker messages land. It is excluded from the
// transform pipeline and from table discovery.
const HistoryTable = "mqtt_history"

// Bridge connects one broker subscription to storage.
type Bridge struct {
	store     storage.Store
	brokerURL string
	topic     string
	clientID  string
	qos       byte
}

// New creates a Bridge for the given topic filter.
func New(store storage.Store, brokerURL, topic, clientID string, qos byte) *Bridge {
	return &Bridge{
		store:     store,
		brokerURL: brokerURL,
		topic:     topic,
		clientID:  clientID,
		qos:       qos,
	}
}

// Run connects, subscribes and blocks until ctx is cancelled. Subscriptions
// are connection state, so the OnConnect hook resubscribes after every
// reconnect.
func (b *Bridge) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.brokerURL)
	opts.SetClientID(b.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(b.topic, b.qos, func(_ mqtt.Client, msg mqtt.Message) {
			b.Handle(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			slog.Error("mqtt subscribe failed", "topic", b.topic, "error", token.Error())
			return
		}
		slog.Info("mqtt subscribed", "topic", b.topic)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

// Handle stores one broker message. Topics follow
// {prefix}/{study}/{device_id}/{sensor}; a shorter topic stores an empty
// device_id rather than dropping the message.
func (b *Bridge) Handle(topic string, payload []byte) {
	rec := storage.Record{
		"device_id": deviceFromTopic(topic),
		"topic":     topic,
		"message":   string(payload),
		"timestamp": time.Now().UnixMicro(),
		"status":    "received",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.store.Insert(ctx, HistoryTable, rec); err != nil {
		slog.Error("mqtt message not stored", "topic", topic, "error", err)
		return
	}
	slog.Debug("mqtt message stored", "topic", topic, "bytes", len(payload))
}

func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return parts[2]
	}
	return ""
}
