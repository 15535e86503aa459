package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/middleware"
	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

var hodClaims = &models.JWTClaims{UserID: "u-hod-cs", Role: models.RoleFaculty, DepartmentCode: "cs", IsHeadOfDepartment: true}

func newTestContext(method, target, body string, claims *models.JWTClaims, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type lifecycleServiceMock struct {
	calls      []string
	lastActor  models.AuthContext
	lastReason string
	err        error
}

func (m *lifecycleServiceMock) record(action, id string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	m.calls = append(m.calls, action+":"+id)
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.ProgramDefinition{ID: id, Status: models.ProgramStatusPendingApproval}, nil
}

func (m *lifecycleServiceMock) Submit(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	return m.record("submit", id, actor)
}

func (m *lifecycleServiceMock) Approve(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	return m.record("approve", id, actor)
}

func (m *lifecycleServiceMock) Reject(ctx context.Context, id string, reason string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	m.lastReason = reason
	return m.record("reject", id, actor)
}

func (m *lifecycleServiceMock) Publish(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	return m.record("publish", id, actor)
}

func (m *lifecycleServiceMock) CreateVersion(ctx context.Context, sourceID string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	return m.record("version", sourceID, actor)
}

func TestProgramHandlerTransitions(t *testing.T) {
	svc := &lifecycleServiceMock{}
	h := NewProgramHandler(svc, svc)
	id := gin.Param{Key: "id", Value: "deg-1"}

	for _, fn := range []gin.HandlerFunc{h.Submit, h.Approve, h.Publish} {
		c, w := newTestContext(http.MethodPost, "/degrees/deg-1/x", "", hodClaims, id)
		fn(c)
		require.Equal(t, http.StatusOK, w.Code)
	}
	c, w := newTestContext(http.MethodPost, "/degrees/deg-1/versions", "", hodClaims, id)
	h.CreateVersion(c)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, []string{"submit:deg-1", "approve:deg-1", "publish:deg-1", "version:deg-1"}, svc.calls)
	assert.Equal(t, "CS", svc.lastActor.DepartmentCode)
	assert.True(t, svc.lastActor.IsHeadOfDepartment)
}

func TestProgramHandlerRequiresActor(t *testing.T) {
	svc := &lifecycleServiceMock{}
	h := NewProgramHandler(svc, svc)

	c, w := newTestContext(http.MethodPost, "/degrees/deg-1/submit", "", nil, gin.Param{Key: "id", Value: "deg-1"})
	h.Submit(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.calls)
}

func TestProgramHandlerReject(t *testing.T) {
	svc := &lifecycleServiceMock{}
	h := NewProgramHandler(svc, svc)
	id := gin.Param{Key: "id", Value: "crs-1"}

	c, w := newTestContext(http.MethodPost, "/courses/crs-1/reject", `{"reason":"needs lab hours"}`, hodClaims, id)
	h.Reject(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "needs lab hours", svc.lastReason)

	c, w = newTestContext(http.MethodPost, "/courses/crs-1/reject", `{"reason":`, hodClaims, id)
	h.Reject(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, svc.calls, 1)
}

func TestProgramHandlerMapsServiceErrors(t *testing.T) {
	svc := &lifecycleServiceMock{err: appErrors.WithDetails(appErrors.ErrInvalidTransition, "definition is not pending approval",
		map[string]interface{}{"currentStatus": "draft"})}
	h := NewProgramHandler(svc, svc)

	c, w := newTestContext(http.MethodPost, "/degrees/deg-1/approve", "", hodClaims, gin.Param{Key: "id", Value: "deg-1"})
	h.Approve(c)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeEnvelope(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_TRANSITION", errBody["code"])
	assert.Equal(t, "draft", errBody["details"].(map[string]interface{})["currentStatus"])
}

type degreeServiceMock struct {
	created   dto.CreateDegreeRequest
	lastQuery dto.ProgramListQuery
	err       error
}

func (m *degreeServiceMock) Create(ctx context.Context, req dto.CreateDegreeRequest, actor models.AuthContext) (*models.Degree, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Degree{}, nil
}

func (m *degreeServiceMock) UpdateDraft(ctx context.Context, id string, req dto.UpdateDegreeRequest, actor models.AuthContext) (*models.Degree, error) {
	return &models.Degree{}, m.err
}

func (m *degreeServiceMock) Get(ctx context.Context, id string, actor models.AuthContext) (*models.Degree, error) {
	return &models.Degree{}, m.err
}

func (m *degreeServiceMock) List(ctx context.Context, query dto.ProgramListQuery, actor models.AuthContext) ([]models.Degree, *models.Pagination, error) {
	m.lastQuery = query
	return []models.Degree{}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 0}, m.err
}

func (m *degreeServiceMock) Versions(ctx context.Context, id string, actor models.AuthContext) ([]models.Degree, error) {
	return []models.Degree{}, m.err
}

func TestDegreeHandlerCreate(t *testing.T) {
	svc := &degreeServiceMock{}
	h := NewDegreeHandler(svc)

	c, w := newTestContext(http.MethodPost, "/degrees", `{"code":"cs-bsc","departmentCode":"cs","name":"Computer Science","durationSemesters":8}`, hodClaims)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "cs-bsc", svc.created.Code)
	assert.Equal(t, 8, svc.created.DurationSemesters)
}

func TestDegreeHandlerCreateConflict(t *testing.T) {
	svc := &degreeServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "degree code already exists")}
	h := NewDegreeHandler(svc)

	c, w := newTestContext(http.MethodPost, "/degrees", `{"code":"CS-BSC"}`, hodClaims)
	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDegreeHandlerListBindsQuery(t *testing.T) {
	svc := &degreeServiceMock{}
	h := NewDegreeHandler(svc)

	c, w := newTestContext(http.MethodGet, "/degrees?departmentCode=CS&status=active&latestOnly=true&page=2&pageSize=5", "", hodClaims)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ProgramListQuery{DepartmentCode: "CS", Status: "active", LatestOnly: true, Page: 2, PageSize: 5}, svc.lastQuery)
	body := decodeEnvelope(t, w)
	assert.NotNil(t, body["pagination"])
}
