package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ponytojas/go-udp-sensor/config"
	"github.com/ponytojas/go-udp-sensor/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher forwards readings to an MQTT broker
type Publisher struct {
	client    mqtt.Client
	brokerURL string
	topic     string
}

// message is the JSON document published for every reading
type message struct {
	Source            string    `json:"source"`
	ReceivedAt        time.Time `json:"received_at"`
	Temperature       float32   `json:"temperature"`
	Humidity          float32   `json:"humidity"`
	DeviceTimestampMs uint32    `json:"device_timestamp_ms"`
}

// NewPublisher creates a new MQTT publisher
func NewPublisher(cfg *config.Config) *Publisher {
	opts := mqtt.NewClientOptions()
	brokerURL := cfg.GetMQTTBrokerURL()
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.MQTT.ClientID)

	if strings.HasPrefix(brokerURL, "ssl://") || strings.HasPrefix(brokerURL, "wss://") {
		log.Printf("Configuring TLS for secure connection to %s", brokerURL)
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("Attempting to reconnect to MQTT broker...")
	})

	return &Publisher{
		client:    mqtt.NewClient(opts),
		brokerURL: brokerURL,
		topic:     cfg.MQTT.Topic,
	}
}

// Connect connects to the MQTT broker
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Printf("Connected to MQTT broker: %s", p.brokerURL)
	return nil
}

// Disconnect disconnects from the MQTT broker
func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
	log.Println("Disconnected from MQTT broker")
}

// Store publishes one reading to the configured topic
func (p *Publisher) Store(ctx context.Context, r models.Reading) error {
	payload, err := encodeMessage(r)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	timeout := time.NewTimer(publishTimeout)
	defer timeout.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout.C:
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	return nil
}

func encodeMessage(r models.Reading) ([]byte, error) {
	payload, err := json.Marshal(message{
		Source:            r.SourceIP(),
		ReceivedAt:        r.ReceivedAt,
		Temperature:       r.Temperature,
		Humidity:          r.Humidity,
		DeviceTimestampMs: r.DeviceTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling reading: %w", err)
	}
	return payload, nil
}
