package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

func TestEntityAccessCanView(t *testing.T) {
	store := newMemEnrollmentStore()
	store.departments["stu-1"] = "CS"
	store.put(models.EnrollmentRequest{ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusPendingHODApproval})
	access := NewEntityAccess(store)
	ctx := context.Background()

	assert.NoError(t, access.CanView(ctx, models.EntityTypeDegree, "deg-1", outsiderCtx))
	assert.NoError(t, access.CanView(ctx, models.EntityTypeEnrollment, "enr-1", studentCtx))
	assert.NoError(t, access.CanView(ctx, models.EntityTypeEnrollment, "enr-1", csHODCtx))
	assert.NoError(t, access.CanView(ctx, models.EntityTypeEnrollment, "enr-1", adminCtx))

	err := access.CanView(ctx, models.EntityTypeEnrollment, "enr-1", eeHODCtx)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = access.CanView(ctx, models.EntityTypeEnrollment, "missing", studentCtx)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = access.CanView(ctx, "grade", "g-1", adminCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = access.CanView(ctx, models.EntityTypeDegree, " ", adminCtx)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = access.CanView(ctx, models.EntityTypeDegree, "deg-1", models.AuthContext{})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestDefinitionPermissions(t *testing.T) {
	def := seedDefinition("deg-1", 1, models.ProgramStatusDraft, nil, true)

	assert.True(t, canEditDefinition(creatorCtx, &def))
	assert.True(t, canEditDefinition(collabCtx, &def))
	assert.True(t, canEditDefinition(adminCtx, &def))
	assert.False(t, canEditDefinition(csMemberCtx, &def))

	assert.True(t, canReviewDefinition(csHODCtx, &def))
	assert.False(t, canReviewDefinition(eeHODCtx, &def))
	assert.False(t, canReviewDefinition(adminCtx, &def))

	assert.True(t, canPublishDefinition(csMemberCtx, &def))
	assert.True(t, canPublishDefinition(collabCtx, &def))
	assert.False(t, canPublishDefinition(outsiderCtx, &def))
}
