// Package broker wraps the MQTT client connection: connect/reconnect,
// topic subscriptions at the QoS levels spec.md §6 requires, and
// handing every inbound message to a topic.Router. Grounded on
// paho.mqtt.golang's standard connect/subscribe/callback flow, which
// mirrors the reference implementation's on_connect/on_message wiring
// one-for-one (original_source/inference/app/mqtt_handler.py).
package broker

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cardiosense/ingest/internal/logger"
)

// subscriptionTopics and their QoS levels, exactly as spec.md §6:
// meta at QoS 1 (at-least-once, consumer must be idempotent on
// start/end), data and heartbeat at QoS 0 (fire-and-forget).
var subscriptionTopics = []struct {
	filter string
	qos    byte
}{
	{"org/+/device/+/session/+/meta", 1},
	{"org/+/device/+/session/+/pcg", 0},
	{"org/+/device/+/session/+/ecg", 0},
	{"org/+/device/+/session/+/heartbeat", 0},
}

// Handler is invoked for every inbound message with the raw topic
// string, payload bytes, and receipt time. Satisfied by
// (*topic.Router).Handle.
type Handler func(topicStr string, payload []byte, now time.Time)

// Config configures the underlying MQTT connection.
type Config struct {
	Broker   string
	Port     int
	Username string
	Password string
	ClientID string
	Keepalive time.Duration
}

// Client owns the paho MQTT connection and dispatches inbound messages
// to a Handler.
type Client struct {
	cfg     Config
	handler Handler
	log     *logger.Logger
	client  mqtt.Client

	Connected func() bool
}

// New builds a Client. Connect must be called before use.
func New(cfg Config, handler Handler, log *logger.Logger) *Client {
	c := &Client{cfg: cfg, handler: handler, log: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.Keepalive > 0 {
		opts.SetKeepAlive(cfg.Keepalive)
	}
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)
	c.Connected = c.client.IsConnected
	return c
}

// Connect opens the MQTT connection and blocks until it either
// succeeds or the timeout elapses.
func (c *Client) Connect(timeout time.Duration) error {
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("broker: connect timed out after %s", timeout)
	}
	return token.Error()
}

// Disconnect closes the connection, waiting up to quiesceMS for
// in-flight work to settle.
func (c *Client) Disconnect(quiesceMS uint) {
	c.client.Disconnect(quiesceMS)
}

func (c *Client) onConnect(client mqtt.Client) {
	c.log.Info("broker: connected to %s:%d", c.cfg.Broker, c.cfg.Port)
	for _, sub := range subscriptionTopics {
		filter, qos := sub.filter, sub.qos
		token := client.Subscribe(filter, qos, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("broker: subscribe(%s, qos=%d) failed: %v", filter, qos, err)
		}
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("broker: connection lost: %v", err)
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.handler(msg.Topic(), msg.Payload(), time.Now())
}
