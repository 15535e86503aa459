package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

var studentClaims = &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, DepartmentCode: "CS"}

type enrollmentServiceMock struct {
	draft     dto.SaveEnrollmentDraftRequest
	decision  dto.HODDecisionRequest
	lastQuery dto.EnrollmentListQuery
	submitted string
	err       error
}

func (m *enrollmentServiceMock) SaveDraft(ctx context.Context, req dto.SaveEnrollmentDraftRequest, actor models.AuthContext) (*models.EnrollmentRequest, error) {
	m.draft = req
	return &models.EnrollmentRequest{ID: "enr-1", Status: models.EnrollmentStatusDraft}, m.err
}

func (m *enrollmentServiceMock) Submit(ctx context.Context, id string, actor models.AuthContext) (*models.EnrollmentRequest, error) {
	m.submitted = id
	if m.err != nil {
		return nil, m.err
	}
	return &models.EnrollmentRequest{ID: id, Status: models.EnrollmentStatusPendingHODApproval}, nil
}

func (m *enrollmentServiceMock) HODDecision(ctx context.Context, req dto.HODDecisionRequest, actor models.AuthContext) (*dto.HODDecisionResult, error) {
	m.decision = req
	return &dto.HODDecisionResult{Requested: len(req.RequestIDs), Processed: 1, ProcessedIDs: req.RequestIDs[:1]}, m.err
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string, actor models.AuthContext) (*models.EnrollmentReviewItem, error) {
	return &models.EnrollmentReviewItem{}, m.err
}

func (m *enrollmentServiceMock) List(ctx context.Context, query dto.EnrollmentListQuery, actor models.AuthContext) ([]models.EnrollmentReviewItem, *models.Pagination, error) {
	m.lastQuery = query
	return []models.EnrollmentReviewItem{}, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func TestEnrollmentHandlerSaveDraft(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/enrollments/drafts", `{"academicYear":"2024-2025","semester":1,"courseCodes":["cs101"]}`, studentClaims)
	h.SaveDraft(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cs101"}, svc.draft.CourseCodes)
	assert.Equal(t, 1, svc.draft.Semester)
}

func TestEnrollmentHandlerSubmitQuotaFailure(t *testing.T) {
	svc := &enrollmentServiceMock{err: appErrors.WithDetails(appErrors.ErrValidation, "exactly 5 courses must be selected",
		map[string]interface{}{"required": 5, "selected": 4})}
	h := NewEnrollmentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/enrollments/enr-1/submit", "", studentClaims, gin.Param{Key: "id", Value: "enr-1"})
	h.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "enr-1", svc.submitted)
	details := decodeEnvelope(t, w)["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.EqualValues(t, 5, details["required"])
	assert.EqualValues(t, 4, details["selected"])
}

func TestEnrollmentHandlerDecide(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/enrollments/decisions", `{"requestIds":["enr-1","enr-2"],"action":"approve"}`, hodClaims)
	h.Decide(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.HODActionApprove, svc.decision.Action)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 2, data["requested"])
	assert.EqualValues(t, 1, data["processed"])
}

func TestEnrollmentHandlerListAndUnauthorized(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)

	c, w := newTestContext(http.MethodGet, "/enrollments?academicYear=2024-2025&semester=2&status=pending_hod_approval", "", hodClaims)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.EnrollmentListQuery{AcademicYear: "2024-2025", Semester: 2, Status: "pending_hod_approval"}, svc.lastQuery)

	c, w = newTestContext(http.MethodGet, "/enrollments?semester=abc", "", hodClaims)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/enrollments/enr-1", "", nil, gin.Param{Key: "id", Value: "enr-1"})
	h.Get(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
