package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/handler"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/httputil"
)

type AuthService interface {
	RequestOTP(ctx context.Context, req *model.RequestOTPRequest) (*model.OTPResponse, error)
	Signup(ctx context.Context, req *model.SignupRequest) (*model.AuthResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error)
	VerifyToken(ctx context.Context, token string) (*model.User, error)
	Profile(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req *model.UpdateProfileRequest) (*model.User, error)
	RequestResetPin(ctx context.Context, id uuid.UUID) (*model.OTPResponse, error)
	ResetPin(ctx context.Context, id uuid.UUID, req *model.ResetPinRequest) error
}

type Handler struct {
	svc AuthService
}

func NewHandler(svc AuthService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /auth. limit guards every route; authenticate guards
// the profile and PIN reset routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate, limit gin.HandlerFunc) {
	auth := r.Group("/auth", limit)
	{
		auth.POST("/request-otp", h.RequestOTP)
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/verify-token", h.VerifyToken)

		auth.GET("/profile", authenticate, h.GetProfile)
		auth.PUT("/profile", authenticate, h.UpdateProfile)
		auth.POST("/request-reset-pin", authenticate, h.RequestResetPin)
		auth.POST("/reset-pin", authenticate, h.ResetPin)
	}
}

func (h *Handler) RequestOTP(c *gin.Context) {
	var req model.RequestOTPRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	resp, err := h.svc.RequestOTP(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, resp.Message, resp)
}

func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Signup(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

type verifyTokenResponse struct {
	Valid bool        `json:"valid"`
	User  *model.User `json:"user,omitempty"`
}

// VerifyToken answers 200 either way; the body says whether the token is valid.
func (h *Handler) VerifyToken(c *gin.Context) {
	var req model.VerifyTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	user, err := h.svc.VerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusOK, httputil.Response{Status: httputil.StatusSuccess, Data: verifyTokenResponse{Valid: false}})
		return
	}
	httputil.RespondWithSuccess(c, verifyTokenResponse{Valid: true, User: user})
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	user, err := h.svc.Profile(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	var req model.UpdateProfileRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	user, err := h.svc.UpdateProfile(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) RequestResetPin(c *gin.Context) {
	id, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	resp, err := h.svc.RequestResetPin(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, resp.Message, resp)
}

func (h *Handler) ResetPin(c *gin.Context) {
	id, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	var req model.ResetPinRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if err := h.svc.ResetPin(c.Request.Context(), id, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "PIN reset successfully", nil)
}
