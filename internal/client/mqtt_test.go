package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// fakeToken completes immediately with err, or never when pending is set.
type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeMQTTClient records publishes. Methods the publisher never calls are
// left to the embedded nil interface.
type fakeMQTTClient struct {
	mqtt.Client
	opts         *mqtt.ClientOptions
	connectErr   error
	publishToken *fakeToken
	published    []published
	disconnected bool
}

func (c *fakeMQTTClient) Connect() mqtt.Token {
	return &fakeToken{err: c.connectErr}
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	if c.publishToken != nil {
		return c.publishToken
	}
	return &fakeToken{}
}

func (c *fakeMQTTClient) Disconnect(uint) {
	c.disconnected = true
}

func newTestMQTT(fake *fakeMQTTClient) *MQTTPublisher {
	pub := NewMQTTPublisher(MQTTConfig{
		Broker:   "tcp://broker.local:1883",
		ClientID: "station-01",
		Username: "enviro",
		Password: "secret",
		Timeout:  100 * time.Millisecond,
	}, zerolog.Nop())
	pub.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		fake.opts = opts
		return fake
	}
	return pub
}

func TestMQTTPublisher_Topic(t *testing.T) {
	pub := NewMQTTPublisher(MQTTConfig{}, zerolog.Nop())

	if got := pub.Topic(testMessage(1)); got != "enviro/garden" {
		t.Errorf("Topic = %q, want enviro/garden", got)
	}

	msg := testMessage(1)
	msg.Nickname = ""
	if got := pub.Topic(msg); got != "enviro/station-01" {
		t.Errorf("Topic without nickname = %q, want enviro/station-01", got)
	}

	custom := NewMQTTPublisher(MQTTConfig{TopicPrefix: "home/weather"}, zerolog.Nop())
	if got := custom.Topic(testMessage(1)); got != "home/weather/garden" {
		t.Errorf("Topic = %q, want home/weather/garden", got)
	}
}

func TestMQTTPublisher_Publish(t *testing.T) {
	fake := &fakeMQTTClient{}
	pub := newTestMQTT(fake)

	msgs := []models.SnapshotMessage{testMessage(18.25), testMessage(19)}
	if err := pub.Publish(context.Background(), msgs); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(fake.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(fake.published))
	}
	first := fake.published[0]
	if first.topic != "enviro/garden" || first.qos != 1 || !first.retained {
		t.Errorf("published = %s qos=%d retained=%v", first.topic, first.qos, first.retained)
	}

	var decoded models.SnapshotMessage
	if err := json.Unmarshal(first.payload, &decoded); err != nil {
		t.Fatalf("payload is not a snapshot message: %v", err)
	}
	if v, _ := decoded.Readings.Get(models.MetricTemperature); v != 18.25 {
		t.Errorf("temperature = %v, want 18.25", v)
	}

	if !fake.disconnected {
		t.Error("client should disconnect after publishing")
	}
	if fake.opts.ClientID != "station-01" || fake.opts.Username != "enviro" {
		t.Errorf("options = %q/%q", fake.opts.ClientID, fake.opts.Username)
	}
	if len(fake.opts.Servers) != 1 || fake.opts.Servers[0].Host != "broker.local:1883" {
		t.Errorf("Servers = %v", fake.opts.Servers)
	}
}

func TestMQTTPublisher_ConnectFailure(t *testing.T) {
	fake := &fakeMQTTClient{connectErr: errors.New("connection refused")}

	err := newTestMQTT(fake).Publish(context.Background(), []models.SnapshotMessage{testMessage(1)})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if len(fake.published) != 0 {
		t.Error("nothing should be published without a connection")
	}
}

func TestMQTTPublisher_PublishFailure(t *testing.T) {
	fake := &fakeMQTTClient{publishToken: &fakeToken{err: errors.New("not authorised")}}

	if err := newTestMQTT(fake).Publish(context.Background(), []models.SnapshotMessage{testMessage(1)}); err == nil {
		t.Error("expected error")
	}
	if !fake.disconnected {
		t.Error("client should disconnect after a failed publish")
	}
}

func TestMQTTPublisher_PublishTimeout(t *testing.T) {
	fake := &fakeMQTTClient{publishToken: &fakeToken{pending: true}}

	start := time.Now()
	if err := newTestMQTT(fake).Publish(context.Background(), []models.SnapshotMessage{testMessage(1)}); err == nil {
		t.Error("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not applied")
	}
}

func TestMQTTPublisher_EmptyBatch(t *testing.T) {
	fake := &fakeMQTTClient{}
	if err := newTestMQTT(fake).Publish(context.Background(), nil); err != nil {
		t.Errorf("Publish(nil) failed: %v", err)
	}
	if fake.opts != nil {
		t.Error("empty batch should not connect")
	}
}
