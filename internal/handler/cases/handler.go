package cases

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/handler"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/httputil"
)

type CaseService interface {
	Create(ctx context.Context, actor uuid.UUID, req *model.CreateCaseRequest) (*model.Case, error)
	ListUpcoming(ctx context.Context, actor uuid.UUID, all bool) ([]*model.Case, error)
	ListCompleted(ctx context.Context, actor uuid.UUID) ([]*model.Case, error)
	ListCancelled(ctx context.Context, actor uuid.UUID) ([]*model.Case, error)
	Get(ctx context.Context, actor, id uuid.UUID) (*model.Case, error)
	Update(ctx context.Context, actor, id uuid.UUID, req *model.UpdateCaseRequest) (*model.Case, error)
	Complete(ctx context.Context, actor, id uuid.UUID) (*model.Case, error)
	Cancel(ctx context.Context, actor, id uuid.UUID) (*model.Case, error)
	Restore(ctx context.Context, actor, id uuid.UUID) (*model.Case, error)
	Delete(ctx context.Context, actor, id uuid.UUID) error
}

type Handler struct {
	svc CaseService
}

func NewHandler(svc CaseService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cases := r.Group("/cases")
	{
		cases.POST("", h.CreateCase)
		cases.GET("/upcoming", h.ListUpcoming)
		cases.GET("/upcoming/all", h.ListAllUpcoming)
		cases.GET("/history/completed", h.ListCompleted)
		cases.GET("/history/cancelled", h.ListCancelled)
		cases.GET("/:id", h.GetCase)
		cases.PUT("/:id", h.UpdateCase)
		cases.POST("/:id/complete", h.CompleteCase)
		cases.POST("/:id/cancel", h.CancelCase)
		cases.POST("/:id/restore", h.RestoreCase)
		cases.DELETE("/:id", h.DeleteCase)
	}
}

func (h *Handler) CreateCase(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	var req model.CreateCaseRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.svc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

func (h *Handler) ListUpcoming(c *gin.Context) {
	h.list(c, func(ctx context.Context, actor uuid.UUID) ([]*model.Case, error) {
		return h.svc.ListUpcoming(ctx, actor, false)
	})
}

func (h *Handler) ListAllUpcoming(c *gin.Context) {
	h.list(c, func(ctx context.Context, actor uuid.UUID) ([]*model.Case, error) {
		return h.svc.ListUpcoming(ctx, actor, true)
	})
}

func (h *Handler) ListCompleted(c *gin.Context) {
	h.list(c, h.svc.ListCompleted)
}

func (h *Handler) ListCancelled(c *gin.Context) {
	h.list(c, h.svc.ListCancelled)
}

func (h *Handler) list(c *gin.Context, fn func(ctx context.Context, actor uuid.UUID) ([]*model.Case, error)) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	items, err := fn(c.Request.Context(), actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) GetCase(c *gin.Context) {
	h.byID(c, h.svc.Get)
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
	var req model.UpdateCaseRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler) CompleteCase(c *gin.Context) {
	h.byID(c, h.svc.Complete)
}

func (h *Handler) CancelCase(c *gin.Context) {
	h.byID(c, h.svc.Cancel)
}

func (h *Handler) RestoreCase(c *gin.Context) {
	h.byID(c, h.svc.Restore)
}

func (h *Handler) byID(c *gin.Context, fn func(ctx context.Context, actor, id uuid.UUID) (*model.Case, error)) {
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
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) DeleteCase(c *gin.Context) {
	actor, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Case deleted", nil)
}
