package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
)

// Logger is satisfied by logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives the topic (wildcards expanded) and raw payload.
// Handlers run on paho goroutines; returned errors are logged.
type MessageHandler = func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client is the console's broker session. It tracks the connection,
// replays subscriptions after reconnects and announces presence.
//
// All methods are safe for concurrent use.
type Client struct {
	client    pahomqtt.Client
	cfg       config.MQTTConfig
	clientID  string
	startedAt time.Time

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	// mu guards the connection flag, callbacks and logger.
	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Connect opens a session and waits up to the connect timeout for the
// broker to accept it. Presence goes online from the connect handler.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		clientID:      sessionClientID(cfg.Broker.ClientID),
		startedAt:     time.Now().UTC(),
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg, c.clientID)
	configureLWT(opts, c.clientID, c.startedAt)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no answer from %s:%d within %v",
			ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler may not have run yet.
	c.setConnected(true)
	return c, nil
}

// ClientID returns the session client ID presented to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) handleConnect() {
	c.setConnected(true)

	c.subMu.RLock()
	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	c.publishStatus(StatusOnline, "")

	c.mu.RLock()
	onConnect := c.onConnect
	c.mu.RUnlock()
	if onConnect != nil {
		onConnect()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	logger, onDisconnect := c.logger, c.onDisconnect
	c.mu.Unlock()

	if logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
	if onDisconnect != nil {
		onDisconnect(err)
	}
}

// Close marks the console offline and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus(StatusOffline, "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for lost connections and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho. A panicking handler is
// logged and swallowed so one bad announcement cannot kill the session.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		topic := msg.Topic()
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
				}
			}
		}()

		err := handler(topic, msg.Payload())
		if err == nil {
			return
		}
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler failed", "topic", topic, "error", err)
		}
	}
}
