// Package events publishes persisted messages for downstream consumers
// (search indexing, notifications). It never feeds socket fan-out.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

// New returns a NATS publisher when a URL is configured, otherwise a no-op.
func New(cfg config.EventsConfig) (core.EventPublisher, error) {
	if cfg.NatsURL == "" {
		return Noop{}, nil
	}
	return NewNATS(cfg.NatsURL, cfg.SubjectPrefix)
}

type Noop struct{}

func (Noop) MessageCreated(context.Context, domain.Message) error { return nil }
func (Noop) Close() error                                         { return nil }

type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATS(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("chatrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "adapters.events").Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("module", "adapters.events").Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "events: connect %s", url)
	}
	if prefix == "" {
		prefix = "chat.room"
	}
	log.Info().Str("module", "adapters.events").Str("url", url).Str("prefix", prefix).Msg("nats publisher ready")
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Subject is <prefix>.<room>.message with the room id made token-safe.
func Subject(prefix string, room domain.RoomID) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, string(room))
	return prefix + "." + token + ".message"
}

func (p *NATSPublisher) MessageCreated(_ context.Context, m domain.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "events: marshal message")
	}
	return errors.Wrap(p.nc.Publish(Subject(p.prefix, m.ChatRoomID), data), "events: publish")
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
