package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
	"github.com/noah-isme/academic-programs-api/pkg/export"
)

type auditReader interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
}

type messageReader interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.EntityMessage, error)
}

type entityAccessChecker interface {
	CanView(ctx context.Context, entityType, entityID string, actor models.AuthContext) error
}

// TimelineConfig toggles optional timeline features.
type TimelineConfig struct {
	ExportEnabled bool
}

// TimelineExport is a rendered timeline ready to stream.
type TimelineExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TimelineService merges audit entries and messages into one chronological history.
type TimelineService struct {
	audits    auditReader
	messages  messageReader
	directory displayNameResolver
	access    entityAccessChecker
	cfg       TimelineConfig
	logger    *zap.Logger
}

// NewTimelineService constructs a TimelineService.
func NewTimelineService(audits auditReader, messages messageReader, directory displayNameResolver, access entityAccessChecker, cfg TimelineConfig, logger *zap.Logger) *TimelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimelineService{audits: audits, messages: messages, directory: directory, access: access, cfg: cfg, logger: logger}
}

// Build returns the entity's events sorted ascending by timestamp. Events with the
// same timestamp keep audit-then-message insertion order.
func (s *TimelineService) Build(ctx context.Context, entityType, entityID string, actor models.AuthContext) ([]models.TimelineEvent, error) {
	if s.access != nil {
		if err := s.access.CanView(ctx, entityType, entityID, actor); err != nil {
			return nil, err
		}
	} else if err := requireActor(actor); err != nil {
		return nil, err
	}

	logs, err := s.audits.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load audit history")
	}
	messages, err := s.messages.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load messages")
	}

	events := make([]models.TimelineEvent, 0, len(logs)+len(messages))
	actorIDs := make([]string, 0, len(logs)+len(messages))
	for _, log := range logs {
		events = append(events, models.TimelineEvent{
			Source:      models.TimelineSourceAudit,
			Action:      log.Action,
			ActorID:     log.ActorID,
			Description: log.Description,
			Timestamp:   log.CreatedAt,
		})
		actorIDs = append(actorIDs, log.ActorID)
	}
	for _, msg := range messages {
		events = append(events, models.TimelineEvent{
			Source:      models.TimelineSourceMessage,
			Action:      "MESSAGE",
			ActorID:     msg.SenderID,
			Description: msg.Text,
			Timestamp:   msg.CreatedAt,
		})
		actorIDs = append(actorIDs, msg.SenderID)
	}
	if len(events) == 0 {
		return events, nil
	}

	names := map[string]string{}
	if s.directory != nil {
		names = s.directory.DisplayNames(ctx, actorIDs)
	}
	for i := range events {
		if name, ok := names[events[i].ActorID]; ok {
			events[i].ActorName = name
		} else {
			events[i].ActorName = events[i].ActorID
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// Export renders the timeline as CSV or PDF.
func (s *TimelineService) Export(ctx context.Context, entityType, entityID string, format export.Format, actor models.AuthContext) (*TimelineExport, error) {
	if !s.cfg.ExportEnabled {
		return nil, appErrors.ErrFeatureDisabled
	}
	events, err := s.Build(ctx, entityType, entityID, actor)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"timestamp", "source", "action", "actor", "description"}}
	for _, event := range events {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"timestamp":   event.Timestamp.UTC().Format(time.RFC3339),
			"source":      string(event.Source),
			"action":      event.Action,
			"actor":       event.ActorName,
			"description": event.Description,
		})
	}

	var data []byte
	switch format {
	case export.FormatPDF:
		data, err = export.NewPDFExporter().Render(dataset, export.PDFOptions{
			Title:     fmt.Sprintf("Timeline %s %s", entityType, entityID),
			Subtitle:  fmt.Sprintf("%d event(s)", len(events)),
			Landscape: true,
		})
	default:
		format = export.FormatCSV
		data, err = export.NewCSVExporter().Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render timeline export")
	}
	return &TimelineExport{
		Filename:    fmt.Sprintf("timeline-%s-%s.%s", entityType, entityID, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}
