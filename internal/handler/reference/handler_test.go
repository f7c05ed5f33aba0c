package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/middleware"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/httputil"
)

type mockReferenceService struct {
	mock.Mock
}

func (m *mockReferenceService) ListFacilities(ctx context.Context) ([]*model.Facility, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Facility)
	return v, args.Error(1)
}

func (m *mockReferenceService) CreateFacility(ctx context.Context, name string) (*model.Facility, error) {
	args := m.Called(ctx, name)
	v, _ := args.Get(0).(*model.Facility)
	return v, args.Error(1)
}

func (m *mockReferenceService) ListPayers(ctx context.Context) ([]*model.Payer, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Payer)
	return v, args.Error(1)
}

func (m *mockReferenceService) CreatePayer(ctx context.Context, name string) (*model.Payer, error) {
	args := m.Called(ctx, name)
	v, _ := args.Get(0).(*model.Payer)
	return v, args.Error(1)
}

func (m *mockReferenceService) ListProcedures(ctx context.Context) ([]*model.Procedure, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Procedure)
	return v, args.Error(1)
}

func (m *mockReferenceService) CreateProcedure(ctx context.Context, name string) (*model.Procedure, error) {
	args := m.Called(ctx, name)
	v, _ := args.Get(0).(*model.Procedure)
	return v, args.Error(1)
}

func (m *mockReferenceService) ListTeamMembers(ctx context.Context, role *model.UserRole) ([]*model.TeamMember, error) {
	args := m.Called(ctx, role)
	v, _ := args.Get(0).([]*model.TeamMember)
	return v, args.Error(1)
}

func (m *mockReferenceService) CreateTeamMember(ctx context.Context, actor uuid.UUID, req *model.CreateTeamMemberRequest) (*model.TeamMember, error) {
	args := m.Called(ctx, actor, req)
	v, _ := args.Get(0).(*model.TeamMember)
	return v, args.Error(1)
}

func (m *mockReferenceService) ListRoles(ctx context.Context) ([]*model.Role, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Role)
	return v, args.Error(1)
}

func setup(t *testing.T, actor uuid.UUID) (*gin.Engine, *mockReferenceService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	svc := new(mockReferenceService)
	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Validation())
	api := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, actor)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)
	return r, svc
}

func do(r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, httputil.Response) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp httputil.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestFindOrCreateRoutes(t *testing.T) {
	r, svc := setup(t, uuid.New())
	svc.On("CreateFacility", mock.Anything, "Nairobi Hospital").Return(&model.Facility{Name: "Nairobi Hospital"}, nil)
	svc.On("CreatePayer", mock.Anything, "NHIF").Return(&model.Payer{Name: "NHIF"}, nil)
	svc.On("CreateProcedure", mock.Anything, "Appendectomy").Return(&model.Procedure{Name: "Appendectomy"}, nil)

	for path, name := range map[string]string{
		"/api/v1/facilities": "Nairobi Hospital",
		"/api/v1/payers":     "NHIF",
		"/api/v1/procedures": "Appendectomy",
	} {
		w, resp := do(r, http.MethodPost, path, map[string]string{"name": name})
		assert.Equal(t, http.StatusCreated, w.Code, path)
		assert.Equal(t, name, resp.Data.(map[string]interface{})["name"])
	}
	svc.AssertExpectations(t)
}

func TestCreateRequiresName(t *testing.T) {
	r, svc := setup(t, uuid.New())

	w, _ := do(r, http.MethodPost, "/api/v1/facilities", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreateFacility", mock.Anything, mock.Anything)
}

func TestLists(t *testing.T) {
	r, svc := setup(t, uuid.New())
	svc.On("ListFacilities", mock.Anything).Return([]*model.Facility{{Name: "A"}}, nil)
	svc.On("ListPayers", mock.Anything).Return([]*model.Payer{}, nil)
	svc.On("ListProcedures", mock.Anything).Return([]*model.Procedure{{Name: "X"}, {Name: "Y"}}, nil)
	svc.On("ListRoles", mock.Anything).Return([]*model.Role{{Name: model.RoleSurgeon}}, nil)

	for path, want := range map[string]int{
		"/api/v1/facilities":         1,
		"/api/v1/payers":             0,
		"/api/v1/procedures":         2,
		"/api/v1/team-members/roles": 1,
	} {
		w, resp := do(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Len(t, resp.Data, want, path)
	}
}

func TestListTeamMembersByRole(t *testing.T) {
	r, svc := setup(t, uuid.New())
	surgeon := model.RoleSurgeon
	svc.On("ListTeamMembers", mock.Anything, &surgeon).Return([]*model.TeamMember{{Name: "Dr. A", Role: surgeon}}, nil)
	svc.On("ListTeamMembers", mock.Anything, (*model.UserRole)(nil)).Return([]*model.TeamMember{}, nil)

	w, resp := do(r, http.MethodGet, "/api/v1/team-members?role=Surgeon", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = do(r, http.MethodGet, "/api/v1/team-members", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(r, http.MethodGet, "/api/v1/team-members?role=Nurse", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTeamMember(t *testing.T) {
	actor := uuid.New()
	r, svc := setup(t, actor)
	svc.On("CreateTeamMember", mock.Anything, actor, mock.MatchedBy(func(req *model.CreateTeamMemberRequest) bool {
		return req.Name == "Dr. B" && req.Role == model.RoleAnaesthetist
	})).Return(&model.TeamMember{UserID: actor, Name: "Dr. B", Role: model.RoleAnaesthetist}, nil)

	w, _ := do(r, http.MethodPost, "/api/v1/team-members", map[string]string{"name": "Dr. B", "role": "Anaesthetist"})
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}
