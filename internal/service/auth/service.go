// Package auth signs doctors up and in with phone number, OTP and PIN.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/service"
	"github.com/lipanganya/doctime-api/internal/service/activity"
	"github.com/lipanganya/doctime-api/pkg/auth"
	"github.com/lipanganya/doctime-api/pkg/errors"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/phone"
	"github.com/lipanganya/doctime-api/pkg/security"
)

const (
	PurposeSignup = "signup"
	PurposeReset  = "reset"

	defaultOTPTTL = 10 * time.Minute
)

var (
	ErrInvalidCredentials = stderrors.New("invalid phone number or pin")
	ErrInvalidOTP         = stderrors.New("invalid or expired otp")
)

type ActivityLogger interface {
	Log(ctx context.Context, e activity.Entry)
}

type SMSNotifier interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Config struct {
	OTPTTL time.Duration
	// EchoOTP returns the code in the response. Never set in production.
	EchoOTP bool
}

type Service struct {
	users    repository.UserRepository
	otps     repository.OTPStore
	hasher   security.PinHasher
	jwt      auth.JWTService
	sms      SMSNotifier
	activity ActivityLogger
	cfg      Config
	log      *logger.Logger
	code     func() (string, error)
	now      func() time.Time
}

func NewService(
	users repository.UserRepository,
	otps repository.OTPStore,
	hasher security.PinHasher,
	jwt auth.JWTService,
	sms SMSNotifier,
	activity ActivityLogger,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = defaultOTPTTL
	}
	return &Service{
		users:    users,
		otps:     otps,
		hasher:   hasher,
		jwt:      jwt,
		sms:      sms,
		activity: activity,
		cfg:      cfg,
		log:      log,
		code:     randomCode,
		now:      time.Now,
	}
}

// randomCode returns a 4-digit code from crypto/rand.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%d", 1000+n.Int64()), nil
}

func (s *Service) issueOTP(ctx context.Context, purpose, mobile, text string) (*model.OTPResponse, error) {
	code, err := s.code()
	if err != nil {
		return nil, errors.Internal(err)
	}
	if err := s.otps.Save(ctx, purpose, mobile, code, s.cfg.OTPTTL); err != nil {
		return nil, errors.Internal(err)
	}

	minutes := int(s.cfg.OTPTTL / time.Minute)
	if err := s.sms.SendSMS(ctx, mobile, fmt.Sprintf(text, code, minutes)); err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to send otp: %w", err))
	}

	resp := &model.OTPResponse{Message: "OTP sent successfully"}
	if s.cfg.EchoOTP {
		resp.OTP = code
	}
	return resp, nil
}

// checkOTP consumes the stored code. A wrong guess also burns it.
func (s *Service) checkOTP(ctx context.Context, purpose, mobile, given string) error {
	stored, err := s.otps.Take(ctx, purpose, mobile)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.BadRequest(ErrInvalidOTP.Error(), ErrInvalidOTP)
		}
		return errors.Internal(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(given)) != 1 {
		return errors.BadRequest(ErrInvalidOTP.Error(), ErrInvalidOTP)
	}
	return nil
}

func (s *Service) RequestOTP(ctx context.Context, req *model.RequestOTPRequest) (*model.OTPResponse, error) {
	mobile := phone.Normalize(req.PhoneNumber)
	if !phone.Valid(mobile) {
		return nil, errors.BadRequest("invalid phone number", nil)
	}

	existing, err := s.users.GetByPhone(ctx, mobile)
	if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
		return nil, service.MapError(err, "user")
	}
	if existing != nil && existing.IsVerified {
		return nil, errors.Conflict("phone number already registered", nil)
	}

	return s.issueOTP(ctx, PurposeSignup, mobile, "Your DocTime verification code is %s. Valid for %d minutes.")
}

func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.AuthResponse, error) {
	mobile := phone.Normalize(req.PhoneNumber)
	if !security.ValidPin(req.Pin) {
		return nil, errors.BadRequest(security.ErrInvalidPin.Error(), nil)
	}

	existing, err := s.users.GetByPhone(ctx, mobile)
	if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
		return nil, service.MapError(err, "user")
	}
	if existing != nil && existing.IsVerified {
		return nil, errors.Conflict("phone number already registered", nil)
	}

	if err := s.checkOTP(ctx, PurposeSignup, mobile, req.OTP); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Pin)
	if err != nil {
		return nil, errors.Internal(err)
	}

	now := s.now()
	user := &model.User{
		Base:          model.Base{ID: uuid.New()},
		PhoneNumber:   mobile,
		PinHash:       &hash,
		Role:          req.Role,
		OtherRole:     req.OtherRole,
		Prefix:        req.Prefix,
		PreferredName: req.PreferredName,
		IsVerified:    true,
		LastLoginAt:   &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, service.MapError(err, "user")
	}

	token, err := s.jwt.GenerateToken(user.ID, user.PhoneNumber, user.IsAdmin)
	if err != nil {
		return nil, errors.Internal(err)
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &user.ID,
		Action:      model.ActionSignup,
		EntityType:  model.EntityUser,
		EntityID:    user.ID,
		Description: "User signed up",
	})
	return &model.AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	mobile := phone.Normalize(req.PhoneNumber)

	user, err := s.users.GetByPhone(ctx, mobile)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(ErrInvalidCredentials)
		}
		return nil, service.MapError(err, "user")
	}
	if user.PinHash == nil || s.hasher.Compare(*user.PinHash, req.Pin) != nil {
		return nil, errors.Unauthorized(ErrInvalidCredentials)
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("failed to record last login", "user_id", user.ID.String(), "error", err.Error())
	}
	user.LastLoginAt = &now

	token, err := s.jwt.GenerateToken(user.ID, user.PhoneNumber, user.IsAdmin)
	if err != nil {
		return nil, errors.Internal(err)
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &user.ID,
		Action:      model.ActionLogin,
		EntityType:  model.EntityUser,
		EntityID:    user.ID,
		Description: "User logged in",
	})
	return &model.AuthResponse{Token: token, User: user}, nil
}

// VerifyToken returns the user a token was issued to.
func (s *Service) VerifyToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, errors.Unauthorized(err)
	}
	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(err)
		}
		return nil, service.MapError(err, "user")
	}
	return user, nil
}

func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, service.MapError(err, "user")
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, service.MapError(err, "user")
	}

	if req.Role != nil {
		user.Role = req.Role
	}
	if req.OtherRole != nil {
		user.OtherRole = req.OtherRole
	}
	if req.Prefix != nil {
		user.Prefix = req.Prefix
	}
	if req.PreferredName != nil {
		user.PreferredName = req.PreferredName
	}
	if req.BiometricEnabled != nil {
		user.BiometricEnabled = *req.BiometricEnabled
	}
	if req.PushToken != nil {
		user.PushToken = req.PushToken
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, service.MapError(err, "user")
	}
	return user, nil
}

func (s *Service) RequestResetPin(ctx context.Context, id uuid.UUID) (*model.OTPResponse, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, service.MapError(err, "user")
	}
	return s.issueOTP(ctx, PurposeReset, phone.Normalize(user.PhoneNumber), "Your DocTime PIN reset code is %s. Valid for %d minutes.")
}

func (s *Service) ResetPin(ctx context.Context, id uuid.UUID, req *model.ResetPinRequest) error {
	if !security.ValidPin(req.NewPin) {
		return errors.BadRequest(security.ErrInvalidPin.Error(), nil)
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return service.MapError(err, "user")
	}
	if err := s.checkOTP(ctx, PurposeReset, phone.Normalize(user.PhoneNumber), req.OTP); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPin)
	if err != nil {
		return errors.Internal(err)
	}
	if err := s.users.UpdatePin(ctx, user.ID, hash); err != nil {
		return service.MapError(err, "user")
	}
	return nil
}
