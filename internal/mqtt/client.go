package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

// Options configures a Client.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	// QueueSize bounds both the send queue and the offline backlog.
	QueueSize int
}

// sender is the part of a broker connection the Client needs.
type sender interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// Client publishes through a bounded queue drained by one goroutine, so
// callers on the main loop never wait on the network. Messages produced
// while the broker is unreachable are kept in a backlog and replayed in
// order once it returns.
type Client struct {
	conn   sender
	prefix string

	queue   chan bufferedMsg
	flush   chan struct{}
	done    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	backlog *ringBuffer
	closed  bool
}

// Dial connects to the broker. A broker that is not reachable yet is not
// an error: paho keeps retrying in the background and queued messages are
// delivered once connected.
func Dial(opts Options) (*Client, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address is empty")
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultTopicPrefix
	}
	if opts.ClientID == "" {
		opts.ClientID = "bedclock"
	}

	var c *Client
	availability := opts.TopicPrefix + "/availability"
	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(availability, "offline", 1, true).
		SetOnConnectHandler(func(pc paho.Client) {
			slog.Info("[MQTT] connected", "broker", opts.Broker)
			pc.Publish(availability, 1, true, "online")
			if c != nil {
				c.kick()
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Warn("[MQTT] connection lost", "error", err)
		})

	pc := paho.NewClient(po)
	c = newClient(&pahoSender{client: pc}, opts.TopicPrefix, opts.QueueSize)

	token := pc.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		slog.Warn("[MQTT] broker not reachable yet, will retry", "broker", opts.Broker)
	} else if err := token.Error(); err != nil {
		c.Close()
		return nil, fmt.Errorf("mqtt: connect to broker: %w", err)
	}
	return c, nil
}

func newClient(conn sender, prefix string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 64
	}
	c := &Client{
		conn:    conn,
		prefix:  prefix,
		queue:   make(chan bufferedMsg, queueSize),
		flush:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		backlog: newRingBuffer(queueSize),
	}
	go c.run()
	return c
}

// PublishAlarm queues an alarm event.
func (c *Client) PublishAlarm(e AlarmEvent) error {
	payload, err := FormatAlarmPayload(e)
	if err != nil {
		return fmt.Errorf("mqtt: format alarm payload: %w", err)
	}
	// QoS 1: alarm transitions should not be lost
	return c.enqueue(bufferedMsg{topic: AlarmTopic(c.prefix, e.Event), payload: payload, qos: 1})
}

// PublishStatus queues a retained status snapshot.
func (c *Client) PublishStatus(s Status) error {
	payload, err := FormatStatusPayload(s)
	if err != nil {
		return fmt.Errorf("mqtt: format status payload: %w", err)
	}
	return c.enqueue(bufferedMsg{topic: StatusTopic(c.prefix), payload: payload, qos: 0, retained: true})
}

func (c *Client) enqueue(msg bufferedMsg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.queue <- msg:
	default:
		// queue full: the backlog drops its oldest entry instead of blocking
		c.backlog.push(msg)
	}
	return nil
}

func (c *Client) kick() {
	select {
	case c.flush <- struct{}{}:
	default:
	}
}

func (c *Client) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.queue:
			c.drainBacklog()
			c.send(msg)
		case <-c.flush:
			c.drainBacklog()
		}
	}
}

func (c *Client) send(msg bufferedMsg) {
	if !c.conn.IsConnected() {
		c.mu.Lock()
		c.backlog.push(msg)
		c.mu.Unlock()
		return
	}
	if err := c.conn.Publish(msg.topic, msg.qos, msg.retained, msg.payload); err != nil {
		slog.Warn("[MQTT] publish failed, buffering", "topic", msg.topic, "error", err)
		c.mu.Lock()
		c.backlog.push(msg)
		c.mu.Unlock()
	}
}

func (c *Client) drainBacklog() {
	if !c.conn.IsConnected() {
		return
	}
	c.mu.Lock()
	pending := c.backlog.drainAll()
	c.mu.Unlock()
	if len(pending) > 0 {
		slog.Info("[MQTT] replaying buffered messages", "count", len(pending))
	}
	for _, msg := range pending {
		c.send(msg)
	}
}

// Pending returns the number of messages waiting in the backlog.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backlog.len()
}

// Close stops the sender goroutine and disconnects. Queued messages not
// yet sent are dropped.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	<-c.stopped
	c.conn.Disconnect()
	return nil
}

type pahoSender struct {
	client paho.Client
}

func (p *pahoSender) IsConnected() bool { return p.client.IsConnectionOpen() }

func (p *pahoSender) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (p *pahoSender) Disconnect() { p.client.Disconnect(1000) }
