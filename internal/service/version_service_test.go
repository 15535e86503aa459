package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/internal/repository"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

func newVersionFixture(t *testing.T) (*VersionService, *ProgramLifecycleService, *memProgramStore, *auditRecorderStub) {
	t.Helper()
	store := newMemProgramStore(models.ProgramKindDegree)
	audit := &auditRecorderStub{}
	clock := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	versions := NewVersionService(store, audit, &notifierStub{}, nil, nil)
	versions.now = clock
	lifecycle := NewProgramLifecycleService(store, audit, nil, nil, nil)
	lifecycle.now = clock
	return versions, lifecycle, store, audit
}

func TestCreateVersionFromActive(t *testing.T) {
	versions, _, store, audit := newVersionFixture(t)
	v1 := seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, true)
	approver := "u-hod-cs"
	approvedAt := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	v1.ApprovedBy = &approver
	v1.ApprovedAt = &approvedAt
	v1.PublishedAt = &approvedAt
	store.put(v1)

	draft, err := versions.CreateVersion(context.Background(), "deg-1", csMemberCtx)
	require.NoError(t, err)
	require.NotEmpty(t, draft.ID)
	assert.NotEqual(t, "deg-1", draft.ID)
	assert.Equal(t, 2, draft.Version)
	assert.Equal(t, models.ProgramStatusDraft, draft.Status)
	assert.True(t, draft.IsLatestVersion)
	require.NotNil(t, draft.FamilyRootID)
	assert.Equal(t, "deg-1", *draft.FamilyRootID)
	assert.Equal(t, "CS-BSC", draft.Code)
	assert.Equal(t, csMemberCtx.ActorID, draft.CreatedBy)
	assert.Equal(t, []string{"u-collab"}, []string(draft.Collaborators))
	assert.Nil(t, draft.ApprovedBy)
	assert.Nil(t, draft.ApprovedAt)
	assert.Nil(t, draft.PublishedAt)
	assert.Nil(t, draft.SubmittedAt)

	source := store.get("deg-1")
	assert.False(t, source.IsLatestVersion)
	assert.Equal(t, models.ProgramStatusActive, source.Status)
	assert.Equal(t, 1, store.countLatest("deg-1"))
	assert.Equal(t, []string{models.AuditActionCreateVersion}, audit.actions())
}

func TestCreateVersionBlockedByInFlightDraft(t *testing.T) {
	versions, _, store, _ := newVersionFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, true))
	ctx := context.Background()

	v2, err := versions.CreateVersion(ctx, "deg-1", creatorCtx)
	require.NoError(t, err)

	_, err = versions.CreateVersion(ctx, "deg-1", creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	appErr := appErrors.FromError(err)
	assert.Equal(t, v2.ID, appErr.Details["id"])
	assert.Equal(t, 2, appErr.Details["version"])
	assert.Equal(t, models.ProgramStatusDraft, appErr.Details["status"])

	assert.Len(t, store.family("deg-1"), 2)
	assert.Equal(t, 1, store.countLatest("deg-1"))
}

func TestCreateVersionRequiresVersionableSource(t *testing.T) {
	for _, status := range []models.ProgramStatus{
		models.ProgramStatusDraft,
		models.ProgramStatusPendingApproval,
		models.ProgramStatusArchived,
	} {
		t.Run(string(status), func(t *testing.T) {
			versions, _, store, _ := newVersionFixture(t)
			store.put(seedDefinition("deg-1", 1, status, nil, true))

			_, err := versions.CreateVersion(context.Background(), "deg-1", creatorCtx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
			assert.Len(t, store.family("deg-1"), 1)
			assert.True(t, store.get("deg-1").IsLatestVersion)
		})
	}
}

func TestCreateVersionForbiddenOutsideDepartment(t *testing.T) {
	versions, _, store, _ := newVersionFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, true))

	_, err := versions.CreateVersion(context.Background(), "deg-1", outsiderCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCreateVersionFromOlderMemberUsesFamilyMaximum(t *testing.T) {
	versions, _, store, _ := newVersionFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusArchived, nil, false))
	store.put(seedDefinition("deg-2", 2, models.ProgramStatusApproved, strPtr("deg-1"), false))
	store.put(seedDefinition("deg-3", 3, models.ProgramStatusActive, strPtr("deg-1"), true))

	draft, err := versions.CreateVersion(context.Background(), "deg-2", creatorCtx)
	require.NoError(t, err)
	assert.Equal(t, 4, draft.Version)
	assert.False(t, store.get("deg-3").IsLatestVersion)
	assert.Equal(t, 1, store.countLatest("deg-1"))
}

func TestCreateVersionRollsBackOnInsertFailure(t *testing.T) {
	versions, _, store, _ := newVersionFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, true))
	store.insertErr = fmt.Errorf("insert version: %w", repository.ErrUniqueViolation)

	_, err := versions.CreateVersion(context.Background(), "deg-1", creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.True(t, store.get("deg-1").IsLatestVersion)
	assert.Len(t, store.family("deg-1"), 1)
}

func TestCreateVersionInternalFailure(t *testing.T) {
	versions, _, store, _ := newVersionFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusActive, nil, true))
	store.insertErr = errStoreDown

	_, err := versions.CreateVersion(context.Background(), "deg-1", creatorCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.True(t, store.get("deg-1").IsLatestVersion)
}

func TestVersionFamilyInvariantsAcrossLifecycle(t *testing.T) {
	versions, lifecycle, store, _ := newVersionFixture(t)
	store.put(seedDefinition("deg-1", 1, models.ProgramStatusDraft, nil, true))
	ctx := context.Background()

	promote := func(id string) {
		t.Helper()
		_, err := lifecycle.Submit(ctx, id, creatorCtx)
		require.NoError(t, err)
		_, err = lifecycle.Approve(ctx, id, csHODCtx)
		require.NoError(t, err)
		_, err = lifecycle.Publish(ctx, id, creatorCtx)
		require.NoError(t, err)
	}

	promote("deg-1")
	latest := "deg-1"
	for i := 0; i < 3; i++ {
		draft, err := versions.CreateVersion(ctx, latest, creatorCtx)
		require.NoError(t, err)
		promote(draft.ID)
		latest = draft.ID

		assert.Equal(t, 1, store.countStatus("deg-1", models.ProgramStatusActive))
		assert.Equal(t, 1, store.countLatest("deg-1"))
	}

	family := store.family("deg-1")
	require.Len(t, family, 4)
	for i, member := range family {
		assert.Equal(t, i+1, member.Version)
		assert.Equal(t, "CS-BSC", member.Code)
		assert.Equal(t, "deg-1", member.RootID())
	}
	assert.Equal(t, models.ProgramStatusActive, family[3].Status)
	assert.True(t, family[3].IsLatestVersion)
	assert.Equal(t, 3, store.countStatus("deg-1", models.ProgramStatusArchived))
}

func TestNextVersion(t *testing.T) {
	family := []models.ProgramDefinition{{Version: 1}, {Version: 4}, {Version: 2}}
	assert.Equal(t, 5, nextVersion(family, 2))
	assert.Equal(t, 8, nextVersion(family, 7))
	assert.Equal(t, 2, nextVersion(nil, 1))
}
