package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// MQTTConfig holds configuration for the MQTT publisher
type MQTTConfig struct {
	Broker      string // e.g. tcp://broker.local:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Timeout     time.Duration
}

// MQTTPublisher publishes each snapshot as a retained message on
// <prefix>/<nickname>. It connects for every batch and disconnects after.
type MQTTPublisher struct {
	cfg       MQTTConfig
	newClient func(*mqtt.ClientOptions) mqtt.Client
	logger    zerolog.Logger
}

// NewMQTTPublisher creates an MQTT publisher
func NewMQTTPublisher(cfg MQTTConfig, logger zerolog.Logger) *MQTTPublisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "enviro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MQTTPublisher{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		logger:    logger,
	}
}

// Name identifies the destination in logs.
func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// Topic returns the topic a station's snapshots are published on.
func (p *MQTTPublisher) Topic(msg models.SnapshotMessage) string {
	name := msg.Nickname
	if name == "" {
		name = msg.StationID
	}
	return fmt.Sprintf("%s/%s", p.cfg.TopicPrefix, name)
}

// Publish connects to the broker and publishes every snapshot with QoS 1.
func (p *MQTTPublisher) Publish(ctx context.Context, msgs []models.SnapshotMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(p.cfg.Timeout)
	opts.SetKeepAlive(60 * time.Second)

	client := p.newClient(opts)
	if err := p.wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("%w: mqtt connect: %v", ErrNotConnected, err)
	}
	defer client.Disconnect(250)

	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}

		topic := p.Topic(msg)
		if err := p.wait(ctx, client.Publish(topic, 1, true, payload)); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
		p.logger.Debug().Str("topic", topic).Time("taken_at", msg.Timestamp).Msg("Published snapshot")
	}

	p.logger.Info().Int("count", len(msgs)).Str("broker", p.cfg.Broker).Msg("Published snapshots")
	return nil
}

// wait blocks until token completes, the timeout passes or ctx is cancelled.
func (p *MQTTPublisher) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", p.cfg.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
