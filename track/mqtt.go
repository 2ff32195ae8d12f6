package track

import (
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// RegenerateHandler is called when a regenerate request arrives. trackID is
// empty when the request names no track.
type RegenerateHandler func(trackID string)

// MQTTClient manages the broker connection used to publish track maps and to
// receive regenerate requests.
type MQTTClient struct {
	client            mqtt.Client
	config            MQTTConfig
	logger            *zap.Logger
	regenerateHandler RegenerateHandler
	isConnected       bool
	mu                sync.RWMutex
}

// ConnectMQTT connects to the configured broker. MQTT_* environment variables
// override the configuration. An empty broker disables MQTT and returns nil.
func ConnectMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTTClient, error) {
	ApplyMQTTEnv(&cfg)
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Broker == "" {
		logger.Info("MQTT disabled: no broker configured")
		return nil, nil
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "trackmesh"
	}
	if cfg.PublishPrefix == "" {
		cfg.PublishPrefix = "trackmesh"
	}

	c := &MQTTClient{config: cfg, logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)
	if err := c.connect(10 * time.Second); err != nil {
		return nil, err
	}
	return c, nil
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client
func newMQTTClientWithMock(client mqtt.Client, cfg MQTTConfig) *MQTTClient {
	if cfg.PublishPrefix == "" {
		cfg.PublishPrefix = "trackmesh"
	}
	return &MQTTClient{client: client, config: cfg, logger: zap.NewNop()}
}

func (c *MQTTClient) connect(timeout time.Duration) error {
	c.logger.Info("connecting to MQTT broker", zap.String("broker", c.config.Broker))
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connecting to MQTT broker %s: timeout after %v", c.config.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker %s: %w", c.config.Broker, err)
	}
	c.setConnected(true)
	return nil
}

// RegenerateTopic is the topic regenerate requests arrive on
func (c *MQTTClient) RegenerateTopic() string {
	return c.config.PublishPrefix + "/regenerate"
}

// onConnect subscribes to the regenerate topic when a handler is registered
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	if c.getRegenerateHandler() == nil {
		return
	}
	c.subscribe(client)
}

func (c *MQTTClient) subscribe(client mqtt.Client) {
	topic := c.RegenerateTopic()
	token := client.Subscribe(topic, 1, c.handleRegenerate)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.logger.Error("subscribing failed", zap.String("topic", topic), zap.Error(token.Error()))
		return
	}
	c.logger.Info("subscribed", zap.String("topic", topic))
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Warn("MQTT connection interrupted, auto-reconnect will retry", zap.Error(err))
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("MQTT reconnecting")
}

// handleRegenerate passes the trimmed payload on as the track id
func (c *MQTTClient) handleRegenerate(client mqtt.Client, msg mqtt.Message) {
	trackID := strings.TrimSpace(string(msg.Payload()))
	c.logger.Info("regenerate requested", zap.String("topic", msg.Topic()), zap.String("trackId", trackID))
	if h := c.getRegenerateHandler(); h != nil {
		h(trackID)
	}
}

// OnRegenerate registers the regenerate handler and subscribes if connected
func (c *MQTTClient) OnRegenerate(handler RegenerateHandler) {
	c.mu.Lock()
	c.regenerateHandler = handler
	c.mu.Unlock()
	if handler != nil && c.IsConnected() {
		c.subscribe(c.client)
	}
}

func (c *MQTTClient) getRegenerateHandler() RegenerateHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.regenerateHandler
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.logger.Info("disconnecting from MQTT broker")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// Client returns the underlying MQTT client for publishing
func (c *MQTTClient) Client() mqtt.Client {
	return c.client
}

// Prefix returns the configured topic prefix
func (c *MQTTClient) Prefix() string {
	return c.config.PublishPrefix
}
