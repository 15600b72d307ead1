package users

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/user/layered-api-go/api"
	"github.com/user/layered-api-go/db"
)

// Sessions hands out request-scoped database sessions. *db.Manager implements it.
type Sessions interface {
	WithSession(ctx context.Context, fn func(db.Session) error) error
}

// Handlers provides the HTTP handlers for the User resource. It holds no business logic:
// every handler decodes input, opens a session, calls the Service and writes the result.
type Handlers struct {
	sessions Sessions
	log      zerolog.Logger
}

// NewHandlers creates Handlers that obtain their sessions from sessions.
func NewHandlers(sessions Sessions, logger zerolog.Logger) *Handlers {
	return &Handlers{sessions: sessions, log: logger.With().Str("component", "users").Logger()}
}

// withService runs fn with a Service bound to a fresh session. The session commits only
// when fn succeeds.
func (h *Handlers) withService(r *http.Request, fn func(*Service) error) error {
	return h.sessions.WithSession(r.Context(), func(sess db.Session) error {
		return fn(NewService(NewRepository(sess), h.requestLogger(r)))
	})
}

// requestLogger prefers the request-scoped logger, which carries the request ID.
func (h *Handlers) requestLogger(r *http.Request) zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", "users").Logger()
	}
	return h.log
}

// HandleCreateUser godoc
// @Summary Create a new user
// @Tags Users
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User to create"
// @Success 201 {object} UserResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid input"
// @Failure 409 {object} apperror.ErrorResponse "Username or email already registered"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [post]
func (h *Handlers) HandleCreateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.WriteError(w, r, err)
			return
		}

		var resp *UserResponse
		err := h.withService(r, func(s *Service) error {
			var err error
			resp, err = s.CreateUser(r.Context(), req)
			return err
		})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, resp)
	}
}

// HandleListUsers godoc
// @Summary List users with pagination
// @Tags Users
// @Produce json
// @Param skip query int false "Number of users to skip" default(0)
// @Param limit query int false "Maximum number of users to return" default(10)
// @Success 200 {object} UserListResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid pagination parameters"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [get]
func (h *Handlers) HandleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q ListUsersQuery
		var err error
		if q.Skip, err = api.QueryInt(r, "skip", 0); err != nil {
			api.WriteError(w, r, err)
			return
		}
		if q.Limit, err = api.QueryInt(r, "limit", 10); err != nil {
			api.WriteError(w, r, err)
			return
		}
		if err := api.Validate(q); err != nil {
			api.WriteError(w, r, err)
			return
		}

		var resp *UserListResponse
		err = h.withService(r, func(s *Service) error {
			var err error
			resp, err = s.ListUsers(r.Context(), q.Skip, q.Limit)
			return err
		})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleGetUser godoc
// @Summary Get a user by ID
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid ID"
// @Failure 404 {object} apperror.ErrorResponse "User not found"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users/{id} [get]
func (h *Handlers) HandleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := api.PathInt64(r, "id")
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		var resp *UserResponse
		err = h.withService(r, func(s *Service) error {
			var err error
			resp, err = s.GetUser(r.Context(), id)
			return err
		})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleUpdateUser godoc
// @Summary Update a user
// @Description Only the fields present in the body are changed.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param user body UpdateUserRequest true "Fields to update"
// @Success 200 {object} UserResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid input"
// @Failure 404 {object} apperror.ErrorResponse "User not found"
// @Failure 409 {object} apperror.ErrorResponse "Email already registered"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users/{id} [put]
func (h *Handlers) HandleUpdateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := api.PathInt64(r, "id")
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		var patch UpdateUserRequest
		if err := api.DecodeJSON(r, &patch); err != nil {
			api.WriteError(w, r, err)
			return
		}

		var resp *UserResponse
		err = h.withService(r, func(s *Service) error {
			var err error
			resp, err = s.UpdateUser(r.Context(), id, patch)
			return err
		})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleDeleteUser godoc
// @Summary Delete a user
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid ID"
// @Failure 404 {object} apperror.ErrorResponse "User not found"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users/{id} [delete]
func (h *Handlers) HandleDeleteUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := api.PathInt64(r, "id")
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		err = h.withService(r, func(s *Service) error {
			return s.DeleteUser(r.Context(), id)
		})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, MessageResponse{
			Message: fmt.Sprintf("User with ID %d deleted successfully", id),
			Success: true,
		})
	}
}
