// Package service provides business logic around the event store.
package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/clock"
	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/pkg/logger"
	"github.com/capitalize-ai/hostbot/pkg/metrics"
	"github.com/capitalize-ai/hostbot/pkg/tracing"
)

// EventRepository is the persistence the service needs.
type EventRepository interface {
	Add(ctx context.Context, in model.NewEvent) (int64, error)
	ListUpcoming(ctx context.Context) ([]model.Event, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// Notifier publishes event lifecycle notices.
type Notifier interface {
	EventCreated(ctx context.Context, ev *model.Event) error
	EventsExpired(ctx context.Context, deleted int64, cutoff time.Time) error
}

// NopNotifier drops every notice.
type NopNotifier struct{}

func (NopNotifier) EventCreated(context.Context, *model.Event) error { return nil }

func (NopNotifier) EventsExpired(context.Context, int64, time.Time) error { return nil }

// EventService handles event operations.
type EventService struct {
	repo     EventRepository
	notifier Notifier
	clock    clock.Clock
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewEventService creates a new event service. A nil notifier disables
// notices.
func NewEventService(repo EventRepository, notifier Notifier, clk clock.Clock, log *logger.Logger) (*EventService, error) {
	if repo == nil {
		return nil, fmt.Errorf("event repository must not be nil")
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clk == nil {
		clk = clock.Wall{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &EventService{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		logger:   log,
		tracer:   tracing.Tracer("github.com/capitalize-ai/hostbot/internal/service"),
	}, nil
}

// Create persists a new event.
func (s *EventService) Create(ctx context.Context, in model.NewEvent) (*model.Event, error) {
	ctx, span := s.tracer.Start(ctx, "EventService.Create", trace.WithAttributes(
		attribute.Int64("host_id", in.HostID),
		attribute.String("area", in.Area),
	))
	defer span.End()

	id, err := s.repo.Add(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add failed")
		return nil, err
	}

	ev := in.Record()
	ev.ID = id
	metrics.EventsCreated.Inc()

	s.logger.Info("event created",
		zap.Int64("event_id", ev.ID),
		zap.Int64("host_id", ev.HostID),
		zap.String("area", ev.Area),
	)

	if err := s.notifier.EventCreated(ctx, &ev); err != nil {
		s.logger.Warn("failed to publish event created notice", zap.Int64("event_id", ev.ID), zap.Error(err))
	}

	return &ev, nil
}

// ListUpcoming returns events that have not ended yet.
func (s *EventService) ListUpcoming(ctx context.Context) ([]model.Event, error) {
	ctx, span := s.tracer.Start(ctx, "EventService.ListUpcoming")
	defer span.End()

	events, err := s.repo.ListUpcoming(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("events", len(events)))
	return events, nil
}

// Cleanup deletes expired events and returns how many were removed.
func (s *EventService) Cleanup(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "EventService.Cleanup")
	defer span.End()

	cutoff := s.clock.Now()
	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("deleted", deleted))

	if deleted == 0 {
		return 0, nil
	}

	metrics.EventsExpired.Add(float64(deleted))
	s.logger.Info("expired events deleted", zap.Int64("deleted", deleted))

	if err := s.notifier.EventsExpired(ctx, deleted, cutoff); err != nil {
		s.logger.Warn("failed to publish events expired notice", zap.Error(err))
	}
	return deleted, nil
}

// Refresh deletes expired events and then lists what remains.
func (s *EventService) Refresh(ctx context.Context) (*model.RefreshResponse, error) {
	ctx, span := s.tracer.Start(ctx, "EventService.Refresh")
	defer span.End()

	deleted, err := s.Cleanup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired events: %w", err)
	}

	events, err := s.ListUpcoming(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return &model.RefreshResponse{
		Deleted: deleted,
		Events:  events,
		Total:   len(events),
	}, nil
}
