package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	// `bcrypt` is used for securely hashing passwords before they are stored.
	"golang.org/x/crypto/bcrypt"

	"github.com/user/layered-api-go/apperror"
	"github.com/user/layered-api-go/db"
)

// Store is the persistence contract the service depends on. *Repository implements it.
type Store interface {
	Create(ctx context.Context, req CreateUserRequest, hashedPassword string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetAll(ctx context.Context, skip, limit int) ([]User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id int64, patch UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, id int64) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Service holds the business rules for users: uniqueness of username and email, password
// hashing and translation between entities and DTOs. It never touches HTTP.
type Service struct {
	store Store
	log   zerolog.Logger
	cost  int
}

// NewService creates a Service on top of store.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, log: logger, cost: bcrypt.DefaultCost}
}

// CreateUser registers a new user. Username and email must not be taken.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	req.Normalize()
	s.log.Info().Str("username", req.Username).Msg("creating user")

	taken, err := s.store.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to check username", err)
	}
	if taken {
		s.log.Warn().Str("username", req.Username).Msg("username already exists")
		return nil, apperror.NewConflictError("Username already registered", nil)
	}

	taken, err = s.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to check email", err)
	}
	if taken {
		s.log.Warn().Str("email", req.Email).Msg("email already exists")
		return nil, apperror.NewConflictError("Email already registered", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	user, err := s.store.Create(ctx, req, string(hashed))
	if err != nil {
		// A concurrent request may have claimed the name between the checks and the insert.
		if db.IsUniqueViolation(err) {
			return nil, apperror.NewConflictError("Username or email already registered", err)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}

	s.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user created")
	resp := user.ToResponse()
	return &resp, nil
}

// GetUser returns one user or a NotFound error.
func (s *Service) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	s.log.Debug().Int64("user_id", id).Msg("fetching user")

	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to fetch user", err)
	}
	if user == nil {
		s.log.Warn().Int64("user_id", id).Msg("user not found")
		return nil, notFound(id)
	}
	resp := user.ToResponse()
	return &resp, nil
}

// ListUsers returns a page of users together with the total count.
func (s *Service) ListUsers(ctx context.Context, skip, limit int) (*UserListResponse, error) {
	s.log.Debug().Int("skip", skip).Int("limit", limit).Msg("listing users")

	users, err := s.store.GetAll(ctx, skip, limit)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list users", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to count users", err)
	}

	list := &UserListResponse{
		Users: make([]UserResponse, 0, len(users)),
		Total: total,
		Skip:  skip,
		Limit: limit,
	}
	for i := range users {
		list.Users = append(list.Users, users[i].ToResponse())
	}
	return list, nil
}

// UpdateUser applies a partial update. A changed email must not belong to another user.
func (s *Service) UpdateUser(ctx context.Context, id int64, patch UpdateUserRequest) (*UserResponse, error) {
	s.log.Info().Int64("user_id", id).Msg("updating user")

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to fetch user", err)
	}
	if existing == nil {
		s.log.Warn().Int64("user_id", id).Msg("user not found for update")
		return nil, notFound(id)
	}

	patch.Normalize()
	if patch.Email != nil {
		email := *patch.Email
		if email != existing.Email {
			taken, err := s.store.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, apperror.NewDatabaseError("failed to check email", err)
			}
			if taken {
				s.log.Warn().Int64("user_id", id).Str("email", email).Msg("email already exists")
				return nil, apperror.NewConflictError("Email already registered", nil)
			}
		}
	}

	user, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperror.NewConflictError("Email already registered", err)
		}
		return nil, apperror.NewDatabaseError("failed to update user", err)
	}
	if user == nil {
		return nil, notFound(id)
	}

	s.log.Info().Int64("user_id", id).Msg("user updated")
	resp := user.ToResponse()
	return &resp, nil
}

// DeleteUser hard-deletes a user. A missing user is a NotFound error.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	s.log.Info().Int64("user_id", id).Msg("deleting user")

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return apperror.NewDatabaseError("failed to delete user", err)
	}
	if !deleted {
		s.log.Warn().Int64("user_id", id).Msg("user not found for deletion")
		return notFound(id)
	}

	s.log.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func notFound(id int64) error {
	return apperror.NewNotFoundError(fmt.Sprintf("User with ID %d not found", id), nil)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
