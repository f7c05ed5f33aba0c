package model

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleSurgeon               UserRole = "Surgeon"
	RoleAssistantSurgeon      UserRole = "Assistant Surgeon"
	RoleAnaesthetist          UserRole = "Anaesthetist"
	RoleAssistantAnaesthetist UserRole = "Assistant Anaesthetist"
	RoleOther                 UserRole = "Other"
)

var Roles = []UserRole{
	RoleSurgeon,
	RoleAssistantSurgeon,
	RoleAnaesthetist,
	RoleAssistantAnaesthetist,
	RoleOther,
}

func (r UserRole) Valid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

// User is a doctor account, identified by phone number.
type User struct {
	Base
	PhoneNumber      string     `json:"phone_number" db:"phone_number"`
	PinHash          *string    `json:"-" db:"pin_hash"`
	Role             *UserRole  `json:"role,omitempty" db:"role"`
	OtherRole        *string    `json:"other_role,omitempty" db:"other_role"`
	Prefix           *string    `json:"prefix,omitempty" db:"prefix"`
	PreferredName    *string    `json:"preferred_name,omitempty" db:"preferred_name"`
	IsAdmin          bool       `json:"is_admin" db:"is_admin"`
	BiometricEnabled bool       `json:"biometric_enabled" db:"biometric_enabled"`
	IsVerified       bool       `json:"is_verified" db:"is_verified"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	PushToken        *string    `json:"-" db:"push_token"`
}

func (u *User) HasPushToken() bool {
	return u.PushToken != nil && *u.PushToken != ""
}

// UserSummary is the public face of a user attached to other resources.
type UserSummary struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Role        *UserRole `json:"role,omitempty" db:"role"`
}

type UpdateProfileRequest struct {
	Role             *UserRole `json:"role" binding:"omitempty,user_role"`
	OtherRole        *string   `json:"other_role" binding:"omitempty,max=100"`
	Prefix           *string   `json:"prefix" binding:"omitempty,oneof=Dr. Prof. Mr. Mrs. Ms."`
	PreferredName    *string   `json:"preferred_name" binding:"omitempty,max=100"`
	BiometricEnabled *bool     `json:"biometric_enabled"`
	PushToken        *string   `json:"push_token" binding:"omitempty,max=255"`
}
