package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-programs-api/internal/models"
)

func TestAuditRepositoryRecordAssignsIdentity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs (id, entity_type, entity_id, action, actor_id, description, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)")).
		WithArgs(sqlmock.AnyArg(), models.EntityTypeDegree, "deg-1", models.AuditActionSubmit, "u-creator", "submitted for approval", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{
		EntityType:  models.EntityTypeDegree,
		EntityID:    "deg-1",
		Action:      models.AuditActionSubmit,
		ActorID:     "u-creator",
		Description: "submitted for approval",
	}
	require.NoError(t, repo.Record(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryRecordKeepsMetadata(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), models.EntityTypeEnrollment, "enr-1", models.AuditActionApprove, "u-hod-cs", "approved", []byte(`{"batch":2}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Record(context.Background(), &models.AuditLog{
		EntityType:  models.EntityTypeEnrollment,
		EntityID:    "enr-1",
		Action:      models.AuditActionApprove,
		ActorID:     "u-hod-cs",
		Description: "approved",
		Metadata:    models.JSONDocument(`{"batch":2}`),
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryRecordSendsNullForEmptyMetadata(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), models.EntityTypeDegree, "deg-1", models.AuditActionPublish, "u-1", "published", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Record(context.Background(), &models.AuditLog{
		EntityType:  models.EntityTypeDegree,
		EntityID:    "deg-1",
		Action:      models.AuditActionPublish,
		ActorID:     "u-1",
		Description: "published",
		Metadata:    models.JSONDocument{},
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByEntityOrdersByInsertion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC, seq ASC")).
		WithArgs(models.EntityTypeCourse, "crs-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "action", "actor_id", "description", "metadata", "created_at"}).
			AddRow("a-1", models.EntityTypeCourse, "crs-1", models.AuditActionCreate, "u-1", "created", nil, at).
			AddRow("a-2", models.EntityTypeCourse, "crs-1", models.AuditActionSubmit, "u-1", "submitted", []byte(`{"version":1}`), at))

	logs, err := repo.ListByEntity(context.Background(), models.EntityTypeCourse, "crs-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionCreate, logs[0].Action)
	assert.JSONEq(t, `{"version":1}`, string(logs[1].Metadata))
	require.NoError(t, mock.ExpectationsWereMet())
}
