package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/sync-tester/internal/logic"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker string

	// ClientPrefix is extended with a per-process instance suffix so two
	// testers on one broker do not kick each other off.
	ClientPrefix   string
	BufferSize     int
	ConnectTimeout time.Duration
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *zap.SugaredLogger

	mu            sync.Mutex
	buf           *offlineBuffer
	connectedOnce bool
}

func newPublisher(client paho.Client, bufferSize int, logger *zap.SugaredLogger) *RealPublisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RealPublisher{
		client: client,
		logger: logger,
		buf:    newOfflineBuffer(bufferSize, logger),
	}
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not an error: the client keeps retrying and messages are
// buffered until it connects.
func NewRealPublisher(opts Options, logger *zap.SugaredLogger) (*RealPublisher, error) {
	if opts.ClientPrefix == "" {
		opts.ClientPrefix = "sync-tester"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	p := newPublisher(nil, opts.BufferSize, logger)
	clientID := fmt.Sprintf("%s-%s", opts.ClientPrefix, uuid.NewString()[:8])

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "CONNECTION_LOST"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	o := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnw("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(o)
	logger.Infow("connecting to broker", "broker", opts.Broker, "client_id", clientID)

	token := p.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		logger.Warnw("broker not reachable yet, buffering until connected", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect runs on every successful connection. After the first, it
// announces the reconnect and replays what was buffered while offline.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	msgs, dropped := p.buf.drainAll()
	p.mu.Unlock()

	if !reconnect && len(msgs) == 0 {
		return
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err := p.send(c, TopicSystem, 1, true, payload); err != nil {
			p.logger.Warnw("publish reconnect notice", "error", err)
		}
	}

	for i, m := range msgs {
		if err := p.send(c, m.topic, m.qos, m.retained, m.payload); err != nil {
			p.logger.Warnw("replay interrupted, re-buffering", "error", err, "remaining", len(msgs)-i)
			p.mu.Lock()
			for _, rest := range msgs[i:] {
				p.buf.push(rest)
			}
			p.mu.Unlock()
			return
		}
	}
	p.logger.Infow("replayed buffered messages", "count", len(msgs), "dropped", dropped)
}

func (p *RealPublisher) send(c paho.Client, topic string, qos byte, retained bool, payload []byte) error {
	token := c.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// publish sends now when connected and buffers otherwise. A failed send is
// buffered too and reported.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.send(p.client, topic, qos, retained, payload); err != nil {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

// Publish sends a sync event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 so lifecycle events survive a flaky link
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the connection to the broker is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns how many messages are waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
