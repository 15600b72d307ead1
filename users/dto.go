package users

import (
	"strings"
	"time"

	"github.com/user/layered-api-go/api"
)

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=50" example:"johndoe"`
	Email    string  `json:"email" validate:"required,email,max=100" example:"john@example.com"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=100" example:"John Doe"`
	Password string  `json:"password" validate:"required,min=8" example:"secretpassword"`
}

// Normalize trims the username and canonicalizes the email before validation.
func (r *CreateUserRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
}

// UpdateUserRequest is the body of PUT /users/{id}.
// Only supplied fields are applied. Email and is_active are NOT NULL columns, so a nil pointer
// (absent or null) leaves them unchanged; full_name tracks presence and an explicit null clears it.
type UpdateUserRequest struct {
	Email    *string              `json:"email,omitempty" validate:"omitempty,email,max=100" example:"john.new@example.com"`
	FullName api.Nullable[string] `json:"full_name,omitempty" validate:"omitempty,max=100" example:"John Q. Doe"`
	IsActive *bool                `json:"is_active,omitempty"`
}

// Normalize canonicalizes the email when one is supplied.
func (r *UpdateUserRequest) Normalize() {
	if r.Email != nil {
		email := normalizeEmail(*r.Email)
		r.Email = &email
	}
}

// UserResponse is the public view of a user. The password hash is never exposed.
type UserResponse struct {
	ID          int64     `json:"id" example:"1"`
	Username    string    `json:"username" example:"johndoe"`
	Email       string    `json:"email" example:"john@example.com"`
	FullName    *string   `json:"full_name" example:"John Doe"`
	IsActive    bool      `json:"is_active" example:"true"`
	IsSuperuser bool      `json:"is_superuser" example:"false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserListResponse is a page of users plus the total row count.
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int64          `json:"total" example:"42"`
	Skip  int            `json:"skip" example:"0"`
	Limit int            `json:"limit" example:"10"`
}

// ListUsersQuery holds the pagination parameters of GET /users.
type ListUsersQuery struct {
	Skip  int `query:"skip" default:"0" validate:"gte=0" doc:"Number of users to skip"`
	Limit int `query:"limit" default:"10" validate:"gte=1,lte=100" doc:"Maximum number of users to return"`
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message" example:"User with ID 1 deleted successfully"`
	Success bool   `json:"success" example:"true"`
	Data    any    `json:"data,omitempty"`
}

// ToResponse converts the entity into its public representation.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt.UTC(),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}
}
