package model

import "time"

const (
	SettingEnableReferralSMS = "ENABLE_REFERRAL_SMS"
	SettingEnableSMS         = "ENABLE_SMS"
)

type Setting struct {
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	Description *string   `json:"description,omitempty" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type UpdateSettingRequest struct {
	Value       string  `json:"value" binding:"required"`
	Description *string `json:"description"`
}
