package mqtt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/pump-monitor/internal/flow"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	bufferSize     = 256
)

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down, messages are held in a ring buffer and replayed on reconnect; a
// buffered message counts as published.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher connects to broker. A SHUTDOWN will message with reason
// LWT is registered on the system topic. The initial connection is retried in
// the background, so an unreachable broker does not block startup.
func NewRealPublisher(broker, clientID, topic string) *RealPublisher {
	p := &RealPublisher{
		topic: topic,
		buf:   newRingBuffer(bufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "LWT"})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(SystemTopic(topic), string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: connect to %s still pending, buffering", broker)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: connect to %s: %v", broker, err)
	}
	return p
}

// Name returns "mqtt".
func (p *RealPublisher) Name() string { return "mqtt" }

// Append publishes r; it lets the publisher act as a result sink. It stops
// waiting for the broker's acknowledgement once ctx is done.
func (p *RealPublisher) Append(ctx context.Context, r flow.Result) error {
	payload, err := FormatResult(r)
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	return p.publishCtx(ctx, bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishResult sends a result at QoS 1, not retained.
func (p *RealPublisher) PublishResult(r flow.Result) error {
	payload, err := FormatResult(r)
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: SystemTopic(p.topic), payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	return p.publishCtx(context.Background(), msg)
}

func (p *RealPublisher) publishCtx(ctx context.Context, msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish %s: timeout", msg.topic)
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", msg.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	if len(msgs) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(msgs))
	}
	for _, msg := range msgs {
		// Publish without waiting: this runs on paho's connect callback.
		p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
}
