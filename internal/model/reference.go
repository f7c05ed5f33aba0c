package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Facility struct {
	Base
	Name string `json:"name" db:"name"`
}

type Payer struct {
	Base
	Name string `json:"name" db:"name"`
}

type Procedure struct {
	Base
	Name string `json:"name" db:"name"`
}

// TeamMember is a colleague a doctor works with, kept per doctor.
type TeamMember struct {
	Base
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	Name            string    `json:"name" db:"name"`
	Role            UserRole  `json:"role" db:"role"`
	OtherRole       *string   `json:"other_role,omitempty" db:"other_role"`
	PhoneNumber     *string   `json:"phone_number,omitempty" db:"phone_number"`
	IsSystemDefined bool      `json:"is_system_defined" db:"is_system_defined"`
}

// Role holds the curated team member names offered per role.
type Role struct {
	Name            UserRole       `json:"name" db:"name"`
	TeamMemberNames pq.StringArray `json:"team_member_names" db:"team_member_names"`
}

type NameRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

type CreateTeamMemberRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=255"`
	Role        UserRole `json:"role" binding:"required,user_role"`
	OtherRole   *string  `json:"other_role" binding:"omitempty,max=100"`
	PhoneNumber *string  `json:"phone_number" binding:"omitempty,kephone"`
}

type RoleNamesRequest struct {
	Names []string `json:"names" binding:"required,min=1,dive,min=1,max=255"`
}
