package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/falldetect/internal/models"
)

const (
	FallsStreamName  = "FALLS"
	FallsSubjectBase = "falls"
	// ControlSubject carries camera commands over core NATS.
	ControlSubject = "camera.control"
)

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates the FALLS stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        FallsStreamName,
		Subjects:    []string{FallsSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxMsgs:     100000,
		Storage:     jetstream.FileStorage,
		Duplicates:  time.Minute,
		Description: "Latched fall events per camera",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// FallSubject is the subject fall events of cameraID are published on.
func FallSubject(cameraID string) string {
	return fmt.Sprintf("%s.%s", FallsSubjectBase, cameraID)
}

// PublishFall publishes a fall event. The event id doubles as the
// JetStream message id, so redeliveries from a retrying publisher are
// deduplicated.
func (p *Producer) PublishFall(ctx context.Context, event models.FallEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal fall event: %w", err)
	}

	_, err = p.js.Publish(ctx, FallSubject(event.CameraID), payload, jetstream.WithMsgID(event.ID.String()))
	if err != nil {
		return fmt.Errorf("publish fall: %w", err)
	}
	return nil
}

// PublishControl publishes a camera command via raw NATS (not JetStream).
// Detectors subscribe to ControlSubject.
func (p *Producer) PublishControl(cmd models.CameraCommand) error {
	if cmd.Type == "" {
		cmd.Type = "camera"
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal camera command: %w", err)
	}
	return p.nc.Publish(ControlSubject, data)
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
