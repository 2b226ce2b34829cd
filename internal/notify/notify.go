// Package notify announces finished builds on a NATS JetStream subject.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// EventTypeBuildCompleted is the type field of BuildCompleted events.
const EventTypeBuildCompleted = "BuildCompleted"

const publishTimeout = 5 * time.Second

// BuildCompleted is published after every build, successful or not.
type BuildCompleted struct {
	Type             string    `json:"type"`
	BuildID          string    `json:"build_id"`
	Outcome          string    `json:"outcome"`
	Start            time.Time `json:"start"`
	DurationMS       int64     `json:"duration_ms"`
	PagesRendered    int       `json:"pages_rendered"`
	PagesWritten     int       `json:"pages_written"`
	PassthroughFiles int       `json:"passthrough_files"`
	BrokenLinks      int       `json:"broken_links"`
	Warnings         []string  `json:"warnings,omitempty"`
	Errors           []string  `json:"errors,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// EventFromReport builds the event for a finished build.
func EventFromReport(r *site.BuildReport) BuildCompleted {
	s := r.Serializable()
	ev := BuildCompleted{
		Type:             EventTypeBuildCompleted,
		BuildID:          s.ID,
		Outcome:          string(s.Outcome),
		Start:            s.Start,
		DurationMS:       s.DurationMS,
		PagesRendered:    s.PagesRendered,
		PagesWritten:     s.PagesWritten,
		PassthroughFiles: s.PassthroughFiles,
		BrokenLinks:      s.BrokenLinks,
		Timestamp:        time.Now().UTC(),
	}
	if len(s.Warnings) > 0 {
		ev.Warnings = s.Warnings
	}
	if len(s.Errors) > 0 {
		ev.Errors = s.Errors
	}
	return ev
}

// Publisher delivers build events.
type Publisher interface {
	PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error
	Close() error
}

// NATSPublisher publishes to a JetStream stream.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher connects to url and ensures a stream named stream
// captures subject.
func NewNATSPublisher(ctx context.Context, url, subject, stream string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("sitebuilder"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "sitebuilder build notifications",
		Subjects:    []string{subject},
		MaxAge:      7 * 24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", stream, err)
	}
	slog.Info("NATS publisher initialized", logfields.URL(url), slog.String("subject", subject), slog.String("stream", stream))
	return &NATSPublisher{conn: conn, js: js, subject: subject}, nil
}

func (p *NATSPublisher) PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

// Notify publishes the report's event. Failures are logged and swallowed so
// a notification problem never fails a build. A nil publisher is a no-op.
func Notify(ctx context.Context, pub Publisher, r *site.BuildReport, logger *slog.Logger) {
	if pub == nil || r == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := pub.PublishBuildCompleted(ctx, EventFromReport(r)); err != nil {
		logger.Warn("Build notification failed", logfields.BuildID(r.ID), logfields.Error(err))
		return
	}
	logger.Debug("Published build notification", logfields.BuildID(r.ID))
}
