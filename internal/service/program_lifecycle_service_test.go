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
)

func newLifecycleFixture(t *testing.T) (*ProgramLifecycleService, *memProgramStore, *auditRecorderStub, *notifierStub) {
	t.Helper()
	store := newMemProgramStore(models.ProgramKindDegree)
	audit := &auditRecorderStub{}
	notifier := &notifierStub{}
	svc := NewProgramLifecycleService(store, audit, notifier, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC) }
	return svc, store, audit, notifier
}

func TestProgramLifecycleHappyPath(t *testing.T) {
	svc, store, audit, notifier := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusDraft, nil, true))
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, "deg-1", creatorCtx)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramStatusPendingApproval, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	approved, err := svc.Approve(ctx, "deg-1", csHODCtx)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, csHODCtx.ActorID, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	published, err := svc.Publish(ctx, "deg-1", csMemberCtx)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramStatusActive, published.Status)
	require.NotNil(t, published.PublishedAt)

	assert.Equal(t, models.ProgramStatusActive, store.get("deg-1").Status)
	assert.Equal(t, []string{models.AuditActionSubmit, models.AuditActionApprove, models.AuditActionPublish}, audit.actions())
	assert.Equal(t, []string{
		models.NotificationProgramSubmitted,
		models.NotificationProgramApproved,
		models.NotificationProgramPublished,
	}, notifier.events)
}

func TestProgramLifecycleRequiresActor(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusDraft, nil, true))

	_, err := svc.Submit(context.Background(), "deg-1", models.AuthContext{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	assert.Equal(t, models.ProgramStatusDraft, store.get("deg-1").Status)
}

func TestProgramLifecycleNotFound(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(t)

	_, err := svc.Submit(context.Background(), "missing", creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestProgramLifecycleSubmitAuthorization(t *testing.T) {
	cases := []struct {
		name    string
		actor   models.AuthContext
		allowed bool
	}{
		{name: "creator", actor: creatorCtx, allowed: true},
		{name: "collaborator from other department", actor: collabCtx, allowed: true},
		{name: "admin", actor: adminCtx, allowed: true},
		{name: "department member", actor: csMemberCtx, allowed: false},
		{name: "outsider", actor: outsiderCtx, allowed: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, audit, _ := newLifecycleFixture(t)
			store.put(seedDefinition("deg-1", 1, models.ProgramStatusDraft, nil, true))

			_, err := svc.Submit(context.Background(), "deg-1", tc.actor)
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, models.ProgramStatusPendingApproval, store.get("deg-1").Status)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrForbidden))
			assert.Equal(t, models.ProgramStatusDraft, store.get("deg-1").Status)
			assert.Empty(t, audit.actions())
		})
	}
}

func TestProgramLifecycleSubmitRejectsNonDraft(t *testing.T) {
	svc, store, _, notifier := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusApproved, nil, true))

	_, err := svc.Submit(context.Background(), "deg-1", creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	appErr := appErrors.FromError(err)
	assert.Equal(t, models.ProgramStatusApproved, appErr.Details["currentStatus"])
	assert.Equal(t, models.ProgramStatusDraft, appErr.Details["expectedStatus"])
	assert.Empty(t, notifier.events)
}

func TestProgramLifecycleAuthorizationCheckedBeforeStatus(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, true))

	_, err := svc.Submit(context.Background(), "deg-1", outsiderCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestProgramLifecycleApproveRequiresDepartmentHead(t *testing.T) {
	cases := []struct {
		name  string
		actor models.AuthContext
	}{
		{name: "head of another department", actor: eeHODCtx},
		{name: "department member", actor: csMemberCtx},
		{name: "creator", actor: creatorCtx},
		{name: "admin without headship", actor: adminCtx},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _, _ := newLifecycleFixture(t)
			store.put(seedDefinition("deg-1", 1, models.ProgramStatusPendingApproval, nil, true))

			_, err := svc.Approve(context.Background(), "deg-1", tc.actor)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrForbidden))
			assert.Equal(t, models.ProgramStatusPendingApproval, store.get("deg-1").Status)
		})
	}
}

func TestProgramLifecycleApproveTwiceFails(t *testing.T) {
	svc, store, audit, _ := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusPendingApproval, nil, true))
	ctx := context.Background()

	_, err := svc.Approve(ctx, "deg-1", csHODCtx)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, "deg-1", csHODCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, models.ProgramStatusApproved, store.get("deg-1").Status)
	assert.Equal(t, []string{models.AuditActionApprove}, audit.actions())
}

func TestProgramLifecycleRejectReasonLength(t *testing.T) {
	cases := []struct {
		name   string
		reason string
		valid  bool
	}{
		{name: "too short", reason: "too short", valid: false},
		{name: "padding does not count", reason: "   short    ", valid: false},
		{name: "minimum", reason: "0123456789", valid: true},
		{name: "maximum", reason: strings.Repeat("x", 500), valid: true},
		{name: "too long", reason: strings.Repeat("x", 501), valid: false},
		{name: "multibyte runes", reason: strings.Repeat("é", 10), valid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _, _ := newLifecycleFixture(t)
			store.put(seedDefinition("deg-1", 1, models.ProgramStatusPendingApproval, nil, true))

			_, err := svc.Reject(context.Background(), "deg-1", tc.reason, csHODCtx)
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, models.ProgramStatusDraft, store.get("deg-1").Status)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
			assert.Equal(t, models.ProgramStatusPendingApproval, store.get("deg-1").Status)
		})
	}
}

func TestProgramLifecycleRejectSubmitRoundTrip(t *testing.T) {
	svc, store, audit, _ := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusDraft, nil, true))
	ctx := context.Background()

	for round := 0; round < 3; round++ {
		_, err := svc.Submit(ctx, "deg-1", creatorCtx)
		require.NoError(t, err)

		rejected, err := svc.Reject(ctx, "deg-1", "  learning outcomes are missing  ", csHODCtx)
		require.NoError(t, err)
		assert.Equal(t, models.ProgramStatusDraft, rejected.Status)
		require.NotNil(t, rejected.RejectionReason)
		assert.Equal(t, "learning outcomes are missing", *rejected.RejectionReason)
		assert.Nil(t, rejected.SubmittedAt)
	}

	resubmitted, err := svc.Submit(ctx, "deg-1", creatorCtx)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramStatusPendingApproval, resubmitted.Status)
	assert.Nil(t, resubmitted.RejectionReason)
	assert.Len(t, audit.actions(), 7)
}

func TestProgramLifecyclePublishArchivesPreviousActive(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, false))
	v2 := seedDefinition("deg-2", 2, models.ProgramStatusApproved, strPtr("deg-1"), true)
	store.put(v2)

	published, err := svc.Publish(context.Background(), "deg-2", creatorCtx)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramStatusActive, published.Status)

	v1 := store.get("deg-1")
	assert.Equal(t, models.ProgramStatusArchived, v1.Status)
	assert.Equal(t, "CS-BSC", v1.Code)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, store.get("deg-2").Version)
	assert.Equal(t, 1, store.countStatus("deg-1", models.ProgramStatusActive))
	assert.Equal(t, 1, store.countLatest("deg-1"))
}

func TestProgramLifecyclePublishRequiresApproval(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, false))
	store.put(seedDefinition("deg-2", 2, models.ProgramStatusPendingApproval, strPtr("deg-1"), true))

	_, err := svc.Publish(context.Background(), "deg-2", creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, models.ProgramStatusActive, store.get("deg-1").Status)
}

func TestProgramLifecyclePublishForbiddenOutsideDepartment(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusApproved, nil, true))

	_, err := svc.Publish(context.Background(), "deg-1", eeHODCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestProgramLifecycleAuditFailureDoesNotFailTransition(t *testing.T) {
	svc, store, audit, notifier := newLifecycleFixture(t)
	audit.err = errStoreDown
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusDraft, nil, true))

	_, err := svc.Submit(context.Background(), "deg-1", creatorCtx)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramStatusPendingApproval, store.get("deg-1").Status)
	assert.Equal(t, []string{models.NotificationProgramSubmitted}, notifier.events)
}

func TestProgramLifecycleRecordsMetrics(t *testing.T) {
	store := newMemProgramStore(models.ProgramKindCourse)
	store.put(seedDefinition("crs-1", 1, models.ProgramStatusDraft, nil, true))
	metrics := NewMetricsService()
	svc := NewProgramLifecycleService(store, nil, nil, metrics, nil)

	_, err := svc.Submit(context.Background(), "crs-1", creatorCtx)
	require.NoError(t, err)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.Transitions["course.submit"])
}
