package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// MirrorConfig holds configuration for the JetStream event mirror.
type MirrorConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
}

// DefaultMirrorConfig returns default JetStream mirror configuration.
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		URL:           nats.DefaultURL,
		StreamName:    "TASTING_EVENTS",
		SubjectPrefix: "tasting.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
	}
}

// Mirror republishes broadcast events to a JetStream stream so external
// consumers can observe the tasting without holding a viewer connection.
// The in-process broadcast never depends on it; publish failures are
// logged by the caller and swallowed.
type Mirror struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config MirrorConfig
}

// NewMirror connects to NATS and ensures the event stream exists.
func NewMirror(cfg MirrorConfig) (*Mirror, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	m := &Mirror{nc: nc, js: js, config: cfg}

	if err := m.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	log.Info().
		Str("stream", cfg.StreamName).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("event mirror connected")
	return m, nil
}

func (m *Mirror) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        m.config.StreamName,
		Description: "Tasting event mirror stream",
		Subjects:    []string{fmt.Sprintf("%s.>", m.config.SubjectPrefix)},
		MaxAge:      m.config.MaxAge,
	}

	_, err := m.js.CreateOrUpdateStream(ctx, sc)
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// Publish mirrors one event envelope to the stream.
func (m *Mirror) Publish(ctx context.Context, event *Event) error {
	subject := fmt.Sprintf("%s.%s", m.config.SubjectPrefix, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := m.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (m *Mirror) Close() {
	if m.nc != nil {
		m.nc.Close()
	}
}
