package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/hostbot/internal/model"
)

const (
	// StreamName is the name of the lifecycle stream.
	StreamName = "HOSTBOT"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "hostbot.events"
)

// streamPublisher is the part of JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// StreamManager handles the lifecycle stream and publishes notices to it.
type StreamManager struct {
	client *Client
	js     streamPublisher
	now    func() time.Time
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{
		client: client,
		js:     client.JetStream(),
		now:    time.Now,
	}
}

// EnsureStream ensures the lifecycle stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Hosted event lifecycle notices",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Subject returns the subject for a notice type.
func Subject(t model.NoticeType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, t)
}

// Publish publishes a notice to JetStream.
func (m *StreamManager) Publish(ctx context.Context, notice *model.Notice) (uint64, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal notice: %w", err)
	}

	ack, err := m.js.Publish(ctx, Subject(notice.Type), data, jetstream.WithMsgID(notice.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish notice: %w", err)
	}

	return ack.Sequence, nil
}

// EventCreated publishes a created notice for ev.
func (m *StreamManager) EventCreated(ctx context.Context, ev *model.Event) error {
	_, err := m.Publish(ctx, &model.Notice{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      model.NoticeEventCreated,
		Event:     ev,
		CreatedAt: m.now(),
	})
	return err
}

// EventsExpired publishes an expired notice for a sweep that removed deleted
// events ending before cutoff.
func (m *StreamManager) EventsExpired(ctx context.Context, deleted int64, cutoff time.Time) error {
	_, err := m.Publish(ctx, &model.Notice{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      model.NoticeEventsExpired,
		Deleted:   deleted,
		Cutoff:    &cutoff,
		CreatedAt: m.now(),
	})
	return err
}
