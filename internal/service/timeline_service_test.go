package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
	"github.com/noah-isme/academic-programs-api/pkg/export"
)

type auditReaderStub struct {
	logs []models.AuditLog
	err  error
}

func (a *auditReaderStub) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	return a.logs, a.err
}

type messageStoreStub struct {
	messages []models.EntityMessage
	created  []models.EntityMessage
	err      error
}

func (m *messageStoreStub) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.EntityMessage, error) {
	return m.messages, m.err
}

func (m *messageStoreStub) Create(ctx context.Context, msg *models.EntityMessage) error {
	if m.err != nil {
		return m.err
	}
	msg.ID = "msg-new"
	msg.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.created = append(m.created, *msg)
	return nil
}

type directoryStub struct {
	names map[string]string
	calls int
}

func (d *directoryStub) DisplayNames(ctx context.Context, ids []string) map[string]string {
	d.calls++
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out
}

type accessStub struct {
	err error
}

func (a *accessStub) CanView(ctx context.Context, entityType, entityID string, actor models.AuthContext) error {
	return a.err
}

func timelineAt(minute int) time.Time {
	return time.Date(2025, 2, 1, 9, minute, 0, 0, time.UTC)
}

func TestTimelineMergesAndSortsEvents(t *testing.T) {
	audits := &auditReaderStub{logs: []models.AuditLog{
		{Action: models.AuditActionCreate, ActorID: "u-creator", Description: "created", CreatedAt: timelineAt(0)},
		{Action: models.AuditActionSubmit, ActorID: "u-creator", Description: "submitted", CreatedAt: timelineAt(5)},
		{Action: models.AuditActionApprove, ActorID: "u-hod-cs", Description: "approved", CreatedAt: timelineAt(10)},
	}}
	messages := &messageStoreStub{messages: []models.EntityMessage{
		{SenderID: "u-hod-cs", Text: "looks good", CreatedAt: timelineAt(5)},
		{SenderID: "u-ghost", Text: "ping", CreatedAt: timelineAt(2)},
	}}
	directory := &directoryStub{names: map[string]string{"u-creator": "Ada Lovelace", "u-hod-cs": "Alan Turing"}}
	svc := NewTimelineService(audits, messages, directory, &accessStub{}, TimelineConfig{}, nil)

	events, err := svc.Build(context.Background(), models.EntityTypeDegree, "deg-1", creatorCtx)
	require.NoError(t, err)
	require.Len(t, events, 5)

	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{models.AuditActionCreate, "MESSAGE", models.AuditActionSubmit, "MESSAGE", models.AuditActionApprove}, actions)
	assert.Equal(t, models.TimelineSourceAudit, events[2].Source)
	assert.Equal(t, models.TimelineSourceMessage, events[3].Source)
	assert.Equal(t, "Ada Lovelace", events[0].ActorName)
	assert.Equal(t, "u-ghost", events[1].ActorName)
	assert.Equal(t, "Alan Turing", events[3].ActorName)
	assert.Equal(t, 1, directory.calls)

	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
	}
}

func TestTimelineEmptyEntity(t *testing.T) {
	directory := &directoryStub{}
	svc := NewTimelineService(&auditReaderStub{}, &messageStoreStub{}, directory, nil, TimelineConfig{}, nil)

	events, err := svc.Build(context.Background(), models.EntityTypeCourse, "crs-1", creatorCtx)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Equal(t, 0, directory.calls)
}

func TestTimelineDeniedAccess(t *testing.T) {
	audits := &auditReaderStub{logs: []models.AuditLog{{Action: models.AuditActionSubmit, CreatedAt: timelineAt(1)}}}
	svc := NewTimelineService(audits, &messageStoreStub{}, nil, &accessStub{err: appErrors.ErrForbidden}, TimelineConfig{}, nil)

	_, err := svc.Build(context.Background(), models.EntityTypeEnrollment, "enr-1", otherStudentCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestTimelineRequiresActorWithoutAccessPolicy(t *testing.T) {
	svc := NewTimelineService(&auditReaderStub{}, &messageStoreStub{}, nil, nil, TimelineConfig{}, nil)

	_, err := svc.Build(context.Background(), models.EntityTypeDegree, "deg-1", models.AuthContext{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestTimelineSourceFailure(t *testing.T) {
	svc := NewTimelineService(&auditReaderStub{err: errStoreDown}, &messageStoreStub{}, nil, nil, TimelineConfig{}, nil)

	_, err := svc.Build(context.Background(), models.EntityTypeDegree, "deg-1", creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestTimelineExport(t *testing.T) {
	audits := &auditReaderStub{logs: []models.AuditLog{
		{Action: models.AuditActionSubmit, ActorID: "u-creator", Description: "submitted", CreatedAt: timelineAt(1)},
	}}
	directory := &directoryStub{names: map[string]string{"u-creator": "Ada Lovelace"}}

	disabled := NewTimelineService(audits, &messageStoreStub{}, directory, nil, TimelineConfig{}, nil)
	_, err := disabled.Export(context.Background(), models.EntityTypeDegree, "deg-1", export.FormatCSV, creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))

	svc := NewTimelineService(audits, &messageStoreStub{}, directory, nil, TimelineConfig{ExportEnabled: true}, nil)
	csvExport, err := svc.Export(context.Background(), models.EntityTypeDegree, "deg-1", export.FormatCSV, creatorCtx)
	require.NoError(t, err)
	assert.Equal(t, "timeline-degree-deg-1.csv", csvExport.Filename)
	assert.Equal(t, export.FormatCSV.ContentType(), csvExport.ContentType)
	body := string(csvExport.Data)
	assert.True(t, strings.HasPrefix(body, "timestamp,source,action,actor,description"))
	assert.Contains(t, body, "Ada Lovelace")
	assert.Contains(t, body, "2025-02-01T09:01:00Z")

	pdfExport, err := svc.Export(context.Background(), models.EntityTypeDegree, "deg-1", export.FormatPDF, creatorCtx)
	require.NoError(t, err)
	assert.Equal(t, "timeline-degree-deg-1.pdf", pdfExport.Filename)
	assert.True(t, strings.HasPrefix(string(pdfExport.Data), "%PDF"))
}
