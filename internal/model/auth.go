package model

type RequestOTPRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,kephone"`
}

type SignupRequest struct {
	PhoneNumber   string    `json:"phone_number" binding:"required,kephone"`
	OTP           string    `json:"otp" binding:"required,len=4,numeric"`
	Pin           string    `json:"pin" binding:"required,pin"`
	Role          *UserRole `json:"role" binding:"omitempty,user_role"`
	OtherRole     *string   `json:"other_role" binding:"omitempty,max=100"`
	Prefix        *string   `json:"prefix" binding:"omitempty,max=10"`
	PreferredName *string   `json:"preferred_name" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,kephone"`
	Pin         string `json:"pin" binding:"required,pin"`
}

type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type ResetPinRequest struct {
	OTP    string `json:"otp" binding:"required,len=4,numeric"`
	NewPin string `json:"new_pin" binding:"required,pin"`
}

// AuthResponse is returned on signup and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// OTPResponse echoes the code outside production so clients can be tested without SMS.
type OTPResponse struct {
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}
