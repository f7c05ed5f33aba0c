package referral

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/handler"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/httputil"
)

type ReferralService interface {
	Create(ctx context.Context, actor uuid.UUID, req *model.CreateReferralRequest) (*model.ReferralResult, error)
	Accept(ctx context.Context, actor, id uuid.UUID) (*model.ReferralResult, error)
	Decline(ctx context.Context, actor, id uuid.UUID) (*model.ReferralResult, error)
	Remove(ctx context.Context, actor, id uuid.UUID) error
	List(ctx context.Context, actor uuid.UUID) ([]*model.Referral, error)
}

type Handler struct {
	svc ReferralService
}

func NewHandler(svc ReferralService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	referrals := r.Group("/referrals")
	{
		referrals.POST("", h.CreateReferral)
		referrals.GET("", h.ListReferrals)
		referrals.POST("/:id/accept", h.AcceptReferral)
		referrals.POST("/:id/decline", h.DeclineReferral)
		referrals.DELETE("/:id", h.RemoveReferral)
	}
}

func (h *Handler) CreateReferral(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	var req model.CreateReferralRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (h *Handler) AcceptReferral(c *gin.Context) {
	h.transition(c, h.svc.Accept)
}

func (h *Handler) DeclineReferral(c *gin.Context) {
	h.transition(c, h.svc.Decline)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, actor, id uuid.UUID) (*model.ReferralResult, error)) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// respond surfaces an SMS delivery failure as a warning on a successful response.
func respond(c *gin.Context, status int, result *model.ReferralResult) {
	if result.Warning != "" {
		httputil.RespondWithWarning(c, status, result, result.Warning)
		return
	}
	c.JSON(status, httputil.Response{Status: httputil.StatusSuccess, Data: result})
}

func (h *Handler) RemoveReferral(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Referral removed", nil)
}

func (h *Handler) ListReferrals(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	items, err := h.svc.List(c.Request.Context(), actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}
