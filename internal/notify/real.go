package notify

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("omtobe-controller").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{client: client}, nil
}

// PublishBrake sends a brake prompt. QoS 1: a missed prompt is a missed
// intervention.
func (p *RealPublisher) PublishBrake(event BrakeEvent) error {
	payload, err := FormatBrake(event)
	if err != nil {
		return fmt.Errorf("format brake payload: %w", err)
	}
	return p.publish(BrakeTopic(event.UserID), 1, payload)
}

// PublishReflection sends a reflection prompt at QoS 1.
func (p *RealPublisher) PublishReflection(event ReflectionEvent) error {
	payload, err := FormatReflection(event)
	if err != nil {
		return fmt.Errorf("format reflection payload: %w", err)
	}
	return p.publish(ReflectionTopic(event.UserID), 1, payload)
}

// PublishSystem sends a lifecycle event at QoS 0.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystem(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 0, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
