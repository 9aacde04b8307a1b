// internal/relay/relay.go
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/tamzrod/notecard-handler/internal/connection"
	"github.com/tamzrod/notecard-handler/internal/notecard"
	"github.com/tamzrod/notecard-handler/internal/status"
)

const (
	// DefaultOutbox bounds messages received from MQTT but not yet written
	// to the bridge.
	DefaultOutbox = 64

	// maxDrain bounds inbound notes moved per Drain call so one tick stays short.
	maxDrain = 16

	publishTimeout = 5 * time.Second
)

// Bridge is the application-facing side of the connection handler.
type Bridge interface {
	Available() bool
	Read() int
	Write(p []byte) notecard.Code
}

type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Outbox      int
}

// Relay moves payloads between an MQTT broker and the bridge notefiles:
// <prefix>/out -> outbound notes, inbound notes -> <prefix>/in.
//
// MQTT callbacks only enqueue. Flush and Drain touch the bridge and must run
// on the goroutine that ticks the connection supervisor.
type Relay struct {
	cfg     Config
	log     *zap.Logger
	client  mqtt.Client
	publish func(topic string, payload []byte, retained bool) error

	outbox  chan []byte
	pending [][]byte
}

// New creates an MQTT-backed relay. Start connects it.
func New(cfg Config, log *zap.Logger) *Relay {
	r := newRelay(cfg, log, nil)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		_ = r.subscribe(c)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		r.log.Error("relay: connection lost unexpectedly", zap.Error(err))
	})

	r.client = mqtt.NewClient(opts)
	r.publish = func(topic string, payload []byte, retained bool) error {
		token := r.client.Publish(topic, cfg.QoS, retained, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("relay: publish to %s timed out", topic)
		}
		return token.Error()
	}
	return r
}

func newRelay(cfg Config, log *zap.Logger, publish func(string, []byte, bool) error) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Outbox <= 0 {
		cfg.Outbox = DefaultOutbox
	}
	return &Relay{
		cfg:     cfg,
		log:     log,
		publish: publish,
		outbox:  make(chan []byte, cfg.Outbox),
	}
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// subscribe opens <prefix>/out. Runs on every (re)connect.
func (r *Relay) subscribe(c subscriber) error {
	topic := r.topic("out")
	if token := c.Subscribe(topic, r.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		r.enqueue(m.Payload())
	}); token.Wait() && token.Error() != nil {
		r.log.Error("relay: subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		return token.Error()
	}
	r.log.Debug("relay: subscribed", zap.String("topic", topic))
	return nil
}

// Start connects to the broker and waits for the connection to open.
func (r *Relay) Start() error {
	if token := r.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("relay: cannot connect to broker: %w", token.Error())
	}
	return nil
}

// Stop disconnects, waiting up to quiesce milliseconds for in-flight work.
func (r *Relay) Stop(quiesce uint) {
	if r.client != nil {
		r.client.Disconnect(quiesce)
	}
}

func (r *Relay) topic(leaf string) string {
	return r.cfg.TopicPrefix + "/" + leaf
}

// enqueue is called from MQTT goroutines. Never blocks; drops when full.
func (r *Relay) enqueue(p []byte) {
	msg := append([]byte(nil), p...)
	select {
	case r.outbox <- msg:
	default:
		r.log.Warn("relay: outbox full, message dropped", zap.Int("bytes", len(msg)))
	}
}

// Flush writes queued MQTT messages to the bridge in arrival order. It stops
// at the first failed write and keeps that message for the next call.
func (r *Relay) Flush(b Bridge) int {
	for {
		select {
		case msg := <-r.outbox:
			r.pending = append(r.pending, msg)
			continue
		default:
		}
		break
	}

	written := 0
	for len(r.pending) > 0 {
		msg := r.pending[0]
		if code := b.Write(msg); code != notecard.ErrorNone {
			r.log.Warn("relay: outbound write failed, will retry",
				zap.Stringer("code", code),
				zap.Int("queued", len(r.pending)),
			)
			break
		}
		r.pending[0] = nil
		r.pending = r.pending[1:]
		written++
	}
	return written
}

// Pending returns the number of messages waiting for the bridge.
func (r *Relay) Pending() int { return len(r.pending) + len(r.outbox) }

// Drain moves buffered inbound notes to <prefix>/in, one message per note.
func (r *Relay) Drain(b Bridge) int {
	moved := 0
	for moved < maxDrain && b.Available() {
		var msg []byte
		for {
			c := b.Read()
			if c == int(notecard.ErrorNoDataAvailable) {
				break
			}
			msg = append(msg, byte(c))
		}

		if err := r.publish(r.topic("in"), msg, false); err != nil {
			// The note is already popped from the bridge.
			r.log.Error("relay: inbound publish failed, note lost", zap.Error(err), zap.Int("bytes", len(msg)))
		}
		moved++
	}
	return moved
}

type stateMessage struct {
	State  string `json:"state"`
	Status byte   `json:"status"`
	Device string `json:"device,omitempty"`
	Sent   string `json:"sent"`
}

// PublishState publishes a retained connection-state message on <prefix>/state.
func (r *Relay) PublishState(st connection.State, cs status.ConnectionStatus, device string) error {
	data, err := json.Marshal(stateMessage{
		State:  st.String(),
		Status: cs.Encode(),
		Device: device,
		Sent:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("relay: cannot marshal state: %w", err)
	}
	return r.publish(r.topic("state"), data, true)
}
