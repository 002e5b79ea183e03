// Package publish sends measurement reports to an MQTT broker.
package publish

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/womat/debug"

	"github.com/asjoyner/hcsr04"
)

// Reading is the result of one channel.
type Reading struct {
	Channel  int      `json:"channel"`
	Micros   int64    `json:"micros"`
	Distance *float64 `json:"distance,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Report is the result of one measurement cycle.
type Report struct {
	Time     time.Time `json:"time"`
	Unit     string    `json:"unit"`
	Celsius  float64   `json:"celsius"`
	Channels []Reading `json:"channels"`
}

// NewReport converts ms to u at the given temperature. Channels without a
// distance carry the reason instead.
func NewReport(ms []hcsr04.Measurement, u hcsr04.Unit, celsius float64, now time.Time) Report {
	r := Report{Time: now, Unit: u.String(), Celsius: celsius, Channels: make([]Reading, len(ms))}
	for i, m := range ms {
		r.Channels[i] = Reading{Channel: m.Channel, Micros: m.Micros}
		if err := m.Err(); err != nil {
			r.Channels[i].Error = err.Error()
			continue
		}
		d := hcsr04.Convert(m.Micros, celsius, u)
		if d == hcsr04.InvalidDistance {
			r.Channels[i].Error = "out of range"
			continue
		}
		r.Channels[i].Distance = &d
	}
	return r
}

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes reports on one topic.
type Publisher struct {
	client  client
	topic   string
	timeout time.Duration
}

// Dial connects to broker, for example "tcp://localhost:1883".
func Dial(broker, clientID, topic string, timeout time.Duration) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, errors.Errorf("publish: connecting to %s timed out", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, errors.Wrapf(err, "publish: connecting to %s", broker)
	}
	debug.InfoLog.Printf("publish: connected to %s, topic %s", broker, topic)
	return &Publisher{client: c, topic: topic, timeout: timeout}, nil
}

// Publish sends r as JSON and waits for the broker to acknowledge it.
func (p *Publisher) Publish(r Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "publish: encoding report")
	}
	tok := p.client.Publish(p.topic, 1, false, payload)
	if !tok.WaitTimeout(p.timeout) {
		return errors.Errorf("publish: %s timed out", p.topic)
	}
	if err := tok.Error(); err != nil {
		return errors.Wrapf(err, "publish: %s", p.topic)
	}
	debug.TraceLog.Printf("publish: %s %s", p.topic, payload)
	return nil
}

// Close disconnects, leaving 250ms for in-flight messages.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
