package admin

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/handler"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/httputil"
)

type UserLister interface {
	ListUsers(ctx context.Context, p model.Pagination) ([]*model.User, error)
}

type Dashboarder interface {
	Dashboard(ctx context.Context) (*model.Dashboard, error)
}

type CaseAdmin interface {
	ListOngoing(ctx context.Context) ([]*model.Case, error)
	AdminUpdate(ctx context.Context, admin, id uuid.UUID, req *model.AdminUpdateCaseRequest) (*model.Case, error)
}

type ReferralLister interface {
	ListAll(ctx context.Context, p model.Pagination) ([]*model.Referral, error)
}

type RoleManager interface {
	ListRoles(ctx context.Context) ([]*model.Role, error)
	AddRoleNames(ctx context.Context, role model.UserRole, names []string) (*model.Role, error)
}

type SettingsManager interface {
	List(ctx context.Context) ([]*model.Setting, error)
	Update(ctx context.Context, actor uuid.UUID, key string, req *model.UpdateSettingRequest) (*model.Setting, error)
}

type ActivityLister interface {
	List(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, int, error)
}

// Services groups the collaborators behind the admin routes.
type Services struct {
	Users     UserLister
	Reports   Dashboarder
	Cases     CaseAdmin
	Referrals ReferralLister
	Roles     RoleManager
	Settings  SettingsManager
	Activity  ActivityLister
}

type Handler struct {
	svc Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /admin behind guards, which must authenticate the
// caller and require the admin flag.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc) {
	admin := r.Group("/admin", guards...)
	{
		admin.GET("/users", h.ListUsers)
		admin.GET("/dashboard", h.Dashboard)
		admin.GET("/ongoing-cases", h.ListOngoingCases)
		admin.PUT("/cases/:id", h.UpdateCase)
		admin.GET("/referrals", h.ListReferrals)
		admin.GET("/roles", h.ListRoles)
		admin.POST("/roles/:roleName/team-members", h.AddRoleNames)
		admin.GET("/settings", h.ListSettings)
		admin.PUT("/settings/:key", h.UpdateSetting)
		admin.GET("/activity", h.ListActivity)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	var p model.Pagination
	if !handler.BindQuery(c, &p) {
		return
	}
	users, err := h.svc.Users.ListUsers(c.Request.Context(), p)
	reply(c, users, err)
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Reports.Dashboard(c.Request.Context())
	reply(c, d, err)
}

func (h *Handler) ListOngoingCases(c *gin.Context) {
	items, err := h.svc.Cases.ListOngoing(c.Request.Context())
	reply(c, items, err)
}

func (h *Handler) UpdateCase(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.AdminUpdateCaseRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.svc.Cases.AdminUpdate(c.Request.Context(), actor, id, &req)
	reply(c, updated, err)
}

func (h *Handler) ListReferrals(c *gin.Context) {
	var p model.Pagination
	if !handler.BindQuery(c, &p) {
		return
	}
	items, err := h.svc.Referrals.ListAll(c.Request.Context(), p)
	reply(c, items, err)
}

func (h *Handler) ListRoles(c *gin.Context) {
	items, err := h.svc.Roles.ListRoles(c.Request.Context())
	reply(c, items, err)
}

func (h *Handler) AddRoleNames(c *gin.Context) {
	var req model.RoleNamesRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	role, err := h.svc.Roles.AddRoleNames(c.Request.Context(), model.UserRole(c.Param("roleName")), req.Names)
	reply(c, role, err)
}

func (h *Handler) ListSettings(c *gin.Context) {
	items, err := h.svc.Settings.List(c.Request.Context())
	reply(c, items, err)
}

func (h *Handler) UpdateSetting(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	var req model.UpdateSettingRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	setting, err := h.svc.Settings.Update(c.Request.Context(), actor, c.Param("key"), &req)
	reply(c, setting, err)
}

type activityQuery struct {
	UserID     string `form:"user_id" binding:"omitempty,uuid"`
	Action     string `form:"action"`
	EntityType string `form:"entity_type"`
	EntityID   string `form:"entity_id" binding:"omitempty,uuid"`
	model.Pagination
}

func (q activityQuery) filter() model.ActivityFilter {
	f := model.ActivityFilter{
		Action:     model.ActivityAction(q.Action),
		EntityType: q.EntityType,
		Pagination: q.Pagination,
	}
	if id, err := uuid.Parse(q.UserID); err == nil {
		f.UserID = &id
	}
	if id, err := uuid.Parse(q.EntityID); err == nil {
		f.EntityID = &id
	}
	return f
}

func (h *Handler) ListActivity(c *gin.Context) {
	var q activityQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	filter := q.filter()
	logs, total, err := h.svc.Activity.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	p := filter.Pagination.Normalize()
	httputil.RespondWithPagination(c, logs, p.Page, p.PageSize, total)
}

func reply(c *gin.Context, data interface{}, err error) {
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, data)
}
