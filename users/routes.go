package users

import (
	"net/http"

	"github.com/user/layered-api-go/api"
)

var tags = []string{"Users"}

// Routes is the route table of the User resource, relative to the API prefix.
func (h *Handlers) Routes() []api.Route {
	return []api.Route{
		{
			Method: http.MethodPost, Pattern: "/users",
			Summary: "Create a new user", Tags: tags,
			Request: CreateUserRequest{}, Response: UserResponse{},
			Status: http.StatusCreated, Errors: []int{400, 409, 500},
			Handler: h.HandleCreateUser(),
		},
		{
			Method: http.MethodGet, Pattern: "/users",
			Summary: "List users with pagination", Tags: tags,
			Query: ListUsersQuery{}, Response: UserListResponse{},
			Status: http.StatusOK, Errors: []int{400, 500},
			Handler: h.HandleListUsers(),
		},
		{
			Method: http.MethodGet, Pattern: "/users/{id}",
			Summary: "Get a user by ID", Tags: tags,
			Response: UserResponse{},
			Status:   http.StatusOK, Errors: []int{400, 404, 500},
			Handler: h.HandleGetUser(),
		},
		{
			Method: http.MethodPut, Pattern: "/users/{id}",
			Summary: "Update a user", Description: "Only the fields present in the body are changed.", Tags: tags,
			Request: UpdateUserRequest{}, Response: UserResponse{},
			Status: http.StatusOK, Errors: []int{400, 404, 409, 500},
			Handler: h.HandleUpdateUser(),
		},
		{
			Method: http.MethodDelete, Pattern: "/users/{id}",
			Summary: "Delete a user", Tags: tags,
			Response: MessageResponse{},
			Status:   http.StatusOK, Errors: []int{400, 404, 500},
			Handler: h.HandleDeleteUser(),
		},
	}
}
