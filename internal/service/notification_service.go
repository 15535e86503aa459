package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/pkg/jobs"
)

type notificationPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// NotificationConfig configures asynchronous notification dispatch.
type NotificationConfig struct {
	Enabled    bool
	Channel    string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// NotificationService queues transition events and publishes them to a Redis channel
// consumed by the delivery workers. Notify never blocks the calling request.
type NotificationService struct {
	publisher notificationPublisher
	queue     *jobs.Queue
	channel   string
	enabled   bool
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService constructs the service; Start must be called before events are delivered.
func NewNotificationService(publisher notificationPublisher, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Channel == "" {
		cfg.Channel = "academic-programs:notifications"
	}
	svc := &NotificationService{
		publisher: publisher,
		channel:   cfg.Channel,
		enabled:   cfg.Enabled && publisher != nil,
		metrics:   metrics,
		logger:    logger,
	}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Workers * 64,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		OnGiveUp:   svc.dropped,
		Logger:     logger,
	})
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled {
		s.logger.Info("notifications disabled")
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues an event for delivery. Failures are logged and never surface to the caller.
func (s *NotificationService) Notify(ctx context.Context, event string, payload map[string]interface{}) {
	if s == nil || !s.enabled {
		return
	}
	notification := models.Notification{
		ID:         uuid.NewString(),
		Event:      event,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: notification.ID, Type: event, Payload: notification}); err != nil {
		s.dropped(jobs.Job{ID: notification.ID, Type: event}, err)
	}
}

func (s *NotificationService) dropped(job jobs.Job, err error) {
	s.metrics.RecordNotificationDropped()
	s.logger.Warn("notification dropped", zap.String("event", job.Type), zap.String("id", job.ID), zap.Error(err))
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if err := s.publisher.Publish(ctx, s.channel, notification); err != nil {
		return fmt.Errorf("publish %s: %w", notification.Event, err)
	}
	s.logger.Debug("notification published", zap.String("event", notification.Event), zap.String("id", notification.ID))
	return nil
}
