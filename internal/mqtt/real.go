package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/logic"
)

// DefaultBufferSize is the number of messages kept while the broker is unreachable.
const DefaultBufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	Name        string // button name, used in topics and payloads
	TopicPrefix string
	BufferSize  int
	Logger      logrus.FieldLogger
}

// validate rejects options paho would only fail on after retrying forever.
func (o Options) validate() error {
	if o.Name == "" {
		return errors.New("mqtt: button name is required")
	}
	if o.Broker == "" {
		return errors.New("mqtt: broker address is required")
	}
	// Same defaults as paho's AddBroker
	broker := o.Broker
	if strings.HasPrefix(broker, ":") {
		broker = "127.0.0.1" + broker
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	u, err := url.Parse(broker)
	if err != nil {
		return fmt.Errorf("mqtt: parse broker %q: %w", o.Broker, err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("mqtt: unsupported broker scheme %q", u.Scheme)
	}
	return nil
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	name   string
	topics Topics
	log    logrus.FieldLogger

	mu            sync.Mutex
	buffer        *ringBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout the publisher is still returned and
// keeps retrying in the background.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultTopicPrefix
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &RealPublisher{
		name:   opts.Name,
		topics: NewTopics(opts.TopicPrefix, opts.Name),
		log:    logger.WithField("component", "mqtt"),
		buffer: newRingBuffer(opts.BufferSize),
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)

	// With connect retry enabled the token only completes once connected
	if !p.client.Connect().WaitTimeout(10 * time.Second) {
		p.log.WithField("broker", opts.Broker).Warn("broker not reachable yet, buffering until connected")
	}
	return p, nil
}

// Topics returns the topics this publisher writes to.
func (p *RealPublisher) Topics() Topics {
	return p.topics
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if reconnect {
		p.log.Info("reconnected to broker")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		p.send(c, Message{Topic: p.topics.System, Payload: payload, QoS: 1})
	}

	if len(pending) > 0 {
		p.log.WithField("count", len(pending)).Info("replaying buffered messages")
	}
	for _, msg := range pending {
		p.send(c, msg)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.WithError(err).Warn("connection to broker lost")
}

func (p *RealPublisher) send(c paho.Client, msg Message) {
	token := c.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.log.WithField("topic", msg.Topic).Warn("replay publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		p.log.WithError(err).WithField("topic", msg.Topic).Warn("replay publish failed")
	}
}

// publish sends msg, or buffers it while the connection is down.
func (p *RealPublisher) publish(msg Message) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		dropped := p.buffer.push(msg)
		p.mu.Unlock()
		if dropped {
			p.log.WithField("capacity", p.buffer.capacity).Warn("buffer full, dropping oldest")
		}
		return nil
	}

	token := p.client.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", msg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	return nil
}

// Publish sends a button event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	msg, err := EventMessage(p.topics, p.name, event)
	if err != nil {
		return err
	}
	return p.publish(msg)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	msg, err := SystemMessage(p.topics, event)
	if err != nil {
		return err
	}
	return p.publish(msg)
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
