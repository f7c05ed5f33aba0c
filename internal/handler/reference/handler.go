package reference

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/handler"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/httputil"
)

type ReferenceService interface {
	ListFacilities(ctx context.Context) ([]*model.Facility, error)
	CreateFacility(ctx context.Context, name string) (*model.Facility, error)
	ListPayers(ctx context.Context) ([]*model.Payer, error)
	CreatePayer(ctx context.Context, name string) (*model.Payer, error)
	ListProcedures(ctx context.Context) ([]*model.Procedure, error)
	CreateProcedure(ctx context.Context, name string) (*model.Procedure, error)
	ListTeamMembers(ctx context.Context, role *model.UserRole) ([]*model.TeamMember, error)
	CreateTeamMember(ctx context.Context, actor uuid.UUID, req *model.CreateTeamMemberRequest) (*model.TeamMember, error)
	ListRoles(ctx context.Context) ([]*model.Role, error)
}

type Handler struct {
	svc ReferenceService
}

func NewHandler(svc ReferenceService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/facilities", h.ListFacilities)
	r.POST("/facilities", h.CreateFacility)
	r.GET("/payers", h.ListPayers)
	r.POST("/payers", h.CreatePayer)
	r.GET("/procedures", h.ListProcedures)
	r.POST("/procedures", h.CreateProcedure)

	team := r.Group("/team-members")
	{
		team.GET("", h.ListTeamMembers)
		team.POST("", h.CreateTeamMember)
		team.GET("/roles", h.ListRoles)
	}
}

func (h *Handler) ListFacilities(c *gin.Context) {
	items, err := h.svc.ListFacilities(c.Request.Context())
	reply(c, items, err)
}

func (h *Handler) CreateFacility(c *gin.Context) {
	h.create(c, func(ctx context.Context, name string) (interface{}, error) {
		return h.svc.CreateFacility(ctx, name)
	})
}

func (h *Handler) ListPayers(c *gin.Context) {
	items, err := h.svc.ListPayers(c.Request.Context())
	reply(c, items, err)
}

func (h *Handler) CreatePayer(c *gin.Context) {
	h.create(c, func(ctx context.Context, name string) (interface{}, error) {
		return h.svc.CreatePayer(ctx, name)
	})
}

func (h *Handler) ListProcedures(c *gin.Context) {
	items, err := h.svc.ListProcedures(c.Request.Context())
	reply(c, items, err)
}

func (h *Handler) CreateProcedure(c *gin.Context) {
	h.create(c, func(ctx context.Context, name string) (interface{}, error) {
		return h.svc.CreateProcedure(ctx, name)
	})
}

// create is find-or-create by name, so repeating a POST returns the same row.
func (h *Handler) create(c *gin.Context, fn func(ctx context.Context, name string) (interface{}, error)) {
	var req model.NameRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	item, err := fn(c.Request.Context(), req.Name)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, item)
}

type teamQuery struct {
	Role *model.UserRole `form:"role" binding:"omitempty,user_role"`
}

func (h *Handler) ListTeamMembers(c *gin.Context) {
	var q teamQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	items, err := h.svc.ListTeamMembers(c.Request.Context(), q.Role)
	reply(c, items, err)
}

func (h *Handler) CreateTeamMember(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	var req model.CreateTeamMemberRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	member, err := h.svc.CreateTeamMember(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, member)
}

func (h *Handler) ListRoles(c *gin.Context) {
	items, err := h.svc.ListRoles(c.Request.Context())
	reply(c, items, err)
}

func reply(c *gin.Context, data interface{}, err error) {
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, data)
}
