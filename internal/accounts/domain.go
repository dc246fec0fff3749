package accounts

import (
	"time"

	"github.com/lumina-lms/lumina/internal/roles"
)

// Account represents a user account.
type Account struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         roles.Role `json:"role"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	CreatedBy    *int64     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Member is one row of a role-scoped member listing.
type Member struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      roles.Role `json:"role"`
}

// CreateAccountRequest is the payload for inviting a new account. The invitee
// sets their password through the emailed invitation token.
type CreateAccountRequest struct {
	Email     string     `json:"email" validate:"required,email,max=255"`
	FirstName string     `json:"first_name" validate:"required,max=60"`
	LastName  string     `json:"last_name" validate:"required,max=60"`
	Role      roles.Role `json:"role" validate:"required"`
}

// SignUpRequest is the public self-registration payload. Always a learner.
type SignUpRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"required,max=60"`
	LastName  string `json:"last_name" validate:"required,max=60"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateAccountRequest is the payload for partial account updates.
type UpdateAccountRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=60"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=60"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// AcceptInvitationRequest finalizes an invited account.
type AcceptInvitationRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// RecoverRequest starts password recovery by email.
type RecoverRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyCodeRequest exchanges an emailed security code for a recovery token.
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

// ResetPasswordRequest sets a new password using a recovery token.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
