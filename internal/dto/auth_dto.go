package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=4"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type CreateOperatorRequest struct {
	Username   string  `json:"username"  validate:"required,min=1,max=150"`
	FullName   string  `json:"full_name" validate:"required,min=2,max=100"`
	Email      *string `json:"email"     validate:"omitempty,email"`
	Password   string  `json:"password"  validate:"required,min=8"`
	Role       string  `json:"role"      validate:"required,oneof=receptionist admin superadmin"`
	BranchCode *string `json:"branch_code" validate:"omitempty,max=20"`
}

type UpdateOperatorRequest struct {
	FullName   string  `json:"full_name"   validate:"omitempty,min=2,max=100"`
	Email      *string `json:"email"       validate:"omitempty,email"`
	Role       string  `json:"role"        validate:"omitempty,oneof=receptionist admin superadmin"`
	BranchCode *string `json:"branch_code" validate:"omitempty,max=20"`
	Password   string  `json:"password"    validate:"omitempty,min=8"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OperatorResponse struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	FullName   string  `json:"full_name"`
	Email      *string `json:"email"`
	Role       string  `json:"role"`
	BranchCode *string `json:"branch_code"`
	Active     bool    `json:"active"`
}

type LoginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"` // seconds
	User         OperatorResponse `json:"user"`
}
