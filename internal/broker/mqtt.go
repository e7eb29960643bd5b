package broker

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kdimtricp/repcam/internal/models"
)

const (
	DefaultTopicPrefix    = "repcam"
	defaultPublishTimeout = 5 * time.Second
)

type Config struct {
	Broker      string
	Port        int
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	UseTLS      bool
	QoS         byte
	Retain      bool
}

// Client is the subset of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher forwards finalized records and measurements to an MQTT broker
// as JSON messages.
type Publisher struct {
	config Config
	client Client
}

func NewPublisher(config Config, client Client) *Publisher {
	if config.TopicPrefix == "" {
		config.TopicPrefix = DefaultTopicPrefix
	}
	return &Publisher{config: config, client: client}
}

// Connect dials the broker and returns a ready publisher.
func Connect(config Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions()

	protocol := "tcp"
	if config.UseTLS {
		protocol = "tls"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", protocol, config.Broker, config.Port)
	opts.AddBroker(brokerURL)

	clientID := config.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("repcam-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	if config.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		log.Printf("[MQTT] Connected to %s", brokerURL)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v (will auto-reconnect)", err)
	}
	opts.OnReconnecting = func(mqtt.Client, *mqtt.ClientOptions) {
		log.Printf("[MQTT] Reconnecting...")
	}

	client := mqtt.NewClient(opts)
	log.Printf("[MQTT] Connecting to %s as %s...", brokerURL, clientID)

	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("MQTT connect timeout")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	return NewPublisher(config, client), nil
}

func (p *Publisher) Name() string { return "mqtt" }

func (p *Publisher) RecordTopic(exercise string) string {
	return fmt.Sprintf("%s/records/%s", p.config.TopicPrefix, exercise)
}

func (p *Publisher) MeasurementTopic() string {
	return p.config.TopicPrefix + "/measurements"
}

func (p *Publisher) SaveRecord(ctx context.Context, rec *models.SessionRecord) error {
	return p.publish(ctx, p.RecordTopic(rec.Exercise), rec)
}

func (p *Publisher) SaveMeasurement(ctx context.Context, m *models.Measurement) error {
	return p.publish(ctx, p.MeasurementTopic(), m)
}

func (p *Publisher) publish(ctx context.Context, topic string, v interface{}) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("publish %s: not connected", topic)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", topic, err)
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	token := p.client.Publish(topic, p.config.QoS, p.config.Retain, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	log.Printf("[MQTT] Disconnected")
}
