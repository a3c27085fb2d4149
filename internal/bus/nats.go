// Package bus broadcasts threshold changes between dbwarden nodes over NATS.
package bus

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"dbwarden/internal/checks"
	"dbwarden/internal/config"
	"dbwarden/internal/logger"
	"dbwarden/internal/metrics"
	"dbwarden/internal/scope"
	"dbwarden/internal/storage"
	"dbwarden/internal/threshold"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Event is the wire form of a threshold change.
type Event struct {
	Reference checks.Reference `json:"reference"`
	Scope     string           `json:"scope"`
	Mode      threshold.Mode   `json:"mode"`
	Op        storage.Op       `json:"op"`
	At        time.Time        `json:"at"`
	Origin    string           `json:"origin"`
}

// Key parses the event's scope.
func (e Event) Key() (scope.Key, error) {
	return scope.Parse(e.Scope)
}

// Encode serializes a store change as an event sent by origin.
func Encode(c storage.Change, origin string) ([]byte, error) {
	return json.Marshal(Event{
		Reference: c.Reference,
		Scope:     c.Scope.String(),
		Mode:      c.Mode,
		Op:        c.Op,
		At:        c.At,
		Origin:    origin,
	})
}

// Decode parses an event and checks that it names a reference and a valid scope.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("invalid change event: %w", err)
	}
	if e.Reference == "" {
		return Event{}, fmt.Errorf("invalid change event: missing reference")
	}
	if _, err := e.Key(); err != nil {
		return Event{}, fmt.Errorf("invalid change event: %w", err)
	}
	return e, nil
}

// Bus publishes local changes and delivers remote ones.
type Bus struct {
	conn    *nats.Conn
	subject string
	origin  string
	log     zerolog.Logger

	mu          sync.Mutex
	onReconnect []func()
}

// Connect dials the NATS servers in cfg. Reconnects are retried forever.
func Connect(cfg config.BusConfig) (*Bus, error) {
	b := &Bus{
		subject: cfg.Subject,
		origin:  uuid.NewString(),
		log:     logger.WithComponent("bus"),
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.log.Info().Str("url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
			b.mu.Lock()
			hooks := slices.Clone(b.onReconnect)
			b.mu.Unlock()
			for _, fn := range hooks {
				fn()
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	b.conn = conn

	b.log.Info().
		Str("url", conn.ConnectedUrl()).
		Str("subject", cfg.Subject).
		Str("origin", b.origin).
		Msg("Change bus connected")

	return b, nil
}

// OnReconnect registers fn to run after the connection is re-established.
// Events published while disconnected are not redelivered.
func (b *Bus) OnReconnect(fn func()) {
	b.mu.Lock()
	b.onReconnect = append(b.onReconnect, fn)
	b.mu.Unlock()
}

// Origin returns the identifier stamped on events this node publishes.
func (b *Bus) Origin() string {
	return b.origin
}

// Publish sends c to every subscribed node.
func (b *Bus) Publish(c storage.Change) error {
	data, err := Encode(c, b.origin)
	if err != nil {
		metrics.BusEventsTotal.WithLabelValues("out", "error").Inc()
		return err
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		metrics.BusEventsTotal.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("failed to publish change: %w", err)
	}
	metrics.BusEventsTotal.WithLabelValues("out", "ok").Inc()
	return nil
}

// PublishChange is a storage.ThresholdStore change hook. Failures are logged.
func (b *Bus) PublishChange(c storage.Change) {
	if err := b.Publish(c); err != nil {
		b.log.Error().
			Err(err).
			Str("reference", string(c.Reference)).
			Stringer("scope", c.Scope).
			Msg("Failed to broadcast threshold change")
	}
}

// Subscribe calls fn for every event published by other nodes.
func (b *Bus) Subscribe(fn func(Event)) (*nats.Subscription, error) {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		e, err := Decode(msg.Data)
		if err != nil {
			metrics.BusEventsTotal.WithLabelValues("in", "invalid").Inc()
			b.log.Warn().Err(err).Msg("Dropping change event")
			return
		}
		if e.Origin == b.origin {
			return
		}
		metrics.BusEventsTotal.WithLabelValues("in", "ok").Inc()
		fn(e)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}
	return sub, nil
}

// Close drains pending messages and closes the connection.
func (b *Bus) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.log.Warn().Err(err).Msg("Failed to drain NATS connection")
	}
	b.conn.Close()
}
