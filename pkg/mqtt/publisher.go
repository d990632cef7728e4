package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/logger"
	"github.com/dbehnke/btbb-nexus/pkg/sniffer"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	drainTimeout   = 2 * time.Second
	queueSize      = 1024
)

// ErrNotConnected is returned when publishing before Start succeeded
var ErrNotConnected = errors.New("mqtt: not connected")

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// client is the part of paho.Client the publisher uses
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher publishes sniffer events to MQTT. It implements sniffer.Sink
// and sniffer.SummarySink; when disabled every publish is a no-op.
type Publisher struct {
	config    Config
	log       *logger.Logger
	newClient func(*paho.ClientOptions) client

	mu     sync.RWMutex
	client client
	queue  chan outgoing
	done   chan struct{}
	wg     sync.WaitGroup
}

// outgoing is an event waiting for the publish worker
type outgoing struct {
	topic string
	event interface{}
}

// Event types for MQTT publishing

// PacketEvent represents one access code hit
type PacketEvent struct {
	PacketID      string    `json:"packet_id"`
	ScanID        string    `json:"scan_id"`
	LAP           string    `json:"lap"`
	Offset        int       `json:"offset"`
	HeaderDecoded bool      `json:"header_decoded"`
	Type          string    `json:"type,omitempty"`
	LTAddr        uint8     `json:"lt_addr"`
	Flow          uint8     `json:"flow"`
	ARQN          uint8     `json:"arqn"`
	SEQN          uint8     `json:"seqn"`
	HECValid      *bool     `json:"hec_valid,omitempty"`
	Clock         *uint32   `json:"clock,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ScanSummaryEvent represents a completed scan
type ScanSummaryEvent struct {
	ScanID         string         `json:"scan_id"`
	BitsScanned    int            `json:"bits_scanned"`
	Packets        int            `json:"packets"`
	HeadersDecoded int            `json:"headers_decoded"`
	HECFailures    int            `json:"hec_failures"`
	Piconets       map[string]int `json:"piconets"`
	Truncated      bool           `json:"truncated"`
	DurationMS     int64          `json:"duration_ms"`
	Timestamp      time.Time      `json:"timestamp"`
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
		newClient: func(opts *paho.ClientOptions) client {
			return paho.NewClient(opts)
		},
	}
}

// Start connects to the broker. The client reconnects on its own after
// the first successful connection.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}

	p.log.Info("Starting MQTT publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	c := p.newClient(p.clientOptions())
	token := c.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connect to %s timed out", p.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	queue := make(chan outgoing, queueSize)
	done := make(chan struct{})

	p.mu.Lock()
	p.client = c
	p.queue = queue
	p.done = done
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(c, queue, done)
	return nil
}

// run publishes queued events so the scan never waits on the broker. On
// done it flushes what is already queued, bounded by drainTimeout.
func (p *Publisher) run(c client, queue <-chan outgoing, done <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case m := <-queue:
			p.deliver(c, m)
		case <-done:
			deadline := time.Now().Add(drainTimeout)
			for time.Now().Before(deadline) {
				select {
				case m := <-queue:
					p.deliver(c, m)
				default:
					return
				}
			}
			if n := len(queue); n > 0 {
				p.log.Warn("Dropped queued events on stop", logger.Int("events", n))
			}
			return
		}
	}
}

func (p *Publisher) deliver(c client, m outgoing) {
	if err := p.send(c, m.topic, m.event); err != nil {
		p.log.Debug("Event not published",
			logger.String("topic", m.topic),
			logger.Error(err))
	}
}

// enqueue hands an event to the worker without blocking. Events are
// dropped when not connected or when the queue is full.
func (p *Publisher) enqueue(topic string, event interface{}) {
	p.mu.RLock()
	connected := p.client != nil
	queue := p.queue
	p.mu.RUnlock()

	if !connected {
		return
	}
	select {
	case queue <- outgoing{topic: topic, event: event}:
	default:
		p.log.Warn("Publish queue full, dropping event", logger.String("topic", topic))
	}
}

func (p *Publisher) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
	}
	if p.config.Password != "" {
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(paho.Client) {
		p.log.Info("Connected to broker", logger.String("broker", p.config.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("Connection lost", logger.Error(err))
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		p.log.Info("Attempting to reconnect")
	})
	return opts
}

// Stop flushes queued events and disconnects
func (p *Publisher) Stop() {
	p.mu.Lock()
	c := p.client
	done := p.done
	p.client = nil
	p.done = nil
	p.mu.Unlock()

	if c == nil {
		return
	}

	p.log.Info("Stopping MQTT publisher")
	close(done)
	p.wg.Wait()
	c.Disconnect(250)
}

// HandlePacket queues a packet event for <prefix>/packets/<lap>
func (p *Publisher) HandlePacket(ctx context.Context, pkt sniffer.Packet) {
	if !p.config.Enabled {
		return
	}
	event := NewPacketEvent(pkt)
	p.enqueue(p.formatTopic("packets/"+event.LAP), event)
}

// HandleSummary queues the scan summary for <prefix>/scans
func (p *Publisher) HandleSummary(ctx context.Context, r sniffer.Result) {
	if !p.config.Enabled {
		return
	}
	p.enqueue(p.formatTopic("scans"), NewScanSummaryEvent(r))
}

// PublishPacket publishes a packet event
func (p *Publisher) PublishPacket(event PacketEvent) error {
	if !p.config.Enabled {
		return nil
	}
	return p.publish(p.formatTopic("packets/"+event.LAP), event)
}

// PublishScanSummary publishes a scan summary event
func (p *Publisher) PublishScanSummary(event ScanSummaryEvent) error {
	if !p.config.Enabled {
		return nil
	}
	return p.publish(p.formatTopic("scans"), event)
}

// publish publishes an event to a topic and waits for the broker
func (p *Publisher) publish(topic string, event interface{}) error {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return ErrNotConnected
	}
	return p.send(c, topic, event)
}

func (p *Publisher) send(c client, topic string, event interface{}) error {
	payload, err := p.serializeEvent(event)
	if err != nil {
		p.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	token := c.Publish(topic, p.config.QoS, p.config.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}

	p.log.Debug("Published MQTT event",
		logger.String("topic", topic),
		logger.Int("payload_size", len(payload)))
	return nil
}

// serializeEvent serializes an event to JSON
func (p *Publisher) serializeEvent(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}

// NewPacketEvent converts a sniffed packet to its MQTT form
func NewPacketEvent(pkt sniffer.Packet) PacketEvent {
	event := PacketEvent{
		PacketID:      pkt.ID.String(),
		ScanID:        pkt.ScanID.String(),
		LAP:           fmt.Sprintf("%06x", pkt.LAP),
		Offset:        pkt.Offset,
		HeaderDecoded: pkt.HeaderDecoded,
		Timestamp:     time.Now().UTC(),
	}
	if pkt.HeaderDecoded {
		event.Type = pkt.Header.Type.String()
		event.LTAddr = pkt.Header.LTAddr
		event.Flow = pkt.Header.Flow
		event.ARQN = pkt.Header.ARQN
		event.SEQN = pkt.Header.SEQN
	}
	if pkt.HECChecked {
		valid := pkt.HECValid
		event.HECValid = &valid
	}
	if pkt.ClockKnown {
		clock := pkt.Clock
		event.Clock = &clock
	}
	return event
}

// NewScanSummaryEvent converts a scan result to its MQTT form
func NewScanSummaryEvent(r sniffer.Result) ScanSummaryEvent {
	piconets := make(map[string]int, len(r.LAPs))
	for lap, n := range r.LAPs {
		piconets[fmt.Sprintf("%06x", lap)] = n
	}
	return ScanSummaryEvent{
		ScanID:         r.ScanID.String(),
		BitsScanned:    r.BitsScanned,
		Packets:        r.PacketCount(),
		HeadersDecoded: r.HeadersDecoded,
		HECFailures:    r.HECFailures,
		Piconets:       piconets,
		Truncated:      r.Truncated,
		DurationMS:     r.Finished.Sub(r.Started).Milliseconds(),
		Timestamp:      time.Now().UTC(),
	}
}
