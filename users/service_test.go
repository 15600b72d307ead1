package users

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/layered-api-go/api"
	"github.com/user/layered-api-go/apperror"
)

func newTestService(c *qt.C) (*Service, *Repository) {
	repo := newTestRepository(c)
	svc := NewService(repo, zerolog.Nop())
	svc.cost = bcrypt.MinCost
	return svc, repo
}

func validCreate(username string) CreateUserRequest {
	return CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		FullName: strPtr("Test User"),
		Password: "secretpassword",
	}
}

func TestServiceCreateUser(t *testing.T) {
	c := qt.New(t)
	svc, repo := newTestService(c)
	ctx := context.Background()

	req := validCreate("johndoe")
	req.Email = "  John@Example.COM "
	resp, err := svc.CreateUser(ctx, req)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.ID > 0, qt.IsTrue)
	c.Assert(resp.Username, qt.Equals, "johndoe")
	c.Assert(resp.Email, qt.Equals, "john@example.com")
	c.Assert(*resp.FullName, qt.Equals, "Test User")
	c.Assert(resp.IsActive, qt.IsTrue)

	stored, err := repo.GetByID(ctx, resp.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.HashedPassword, qt.Not(qt.Equals), "secretpassword")
	c.Assert(bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("secretpassword")), qt.IsNil)
}

func TestServiceCreateUserConflicts(t *testing.T) {
	c := qt.New(t)
	svc, repo := newTestService(c)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, validCreate("johndoe"))
	c.Assert(err, qt.IsNil)

	dupUsername := validCreate("johndoe")
	dupUsername.Email = "different@example.com"
	_, err = svc.CreateUser(ctx, dupUsername)
	c.Assert(apperror.IsConflictError(err), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, "Username already registered")

	dupEmail := validCreate("janedoe")
	dupEmail.Email = "johndoe@example.com"
	_, err = svc.CreateUser(ctx, dupEmail)
	c.Assert(apperror.IsConflictError(err), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, "Email already registered")

	n, err := repo.Count(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(1))
}

func TestServiceGetUserNotFound(t *testing.T) {
	c := qt.New(t)
	svc, _ := newTestService(c)

	_, err := svc.GetUser(context.Background(), 7)
	c.Assert(apperror.IsNotFound(err), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, "User with ID 7 not found")
}

func TestServiceListUsers(t *testing.T) {
	c := qt.New(t)
	svc, _ := newTestService(c)
	ctx := context.Background()

	for _, name := range []string{"ann", "ben", "cat"} {
		_, err := svc.CreateUser(ctx, validCreate(name))
		c.Assert(err, qt.IsNil)
	}

	list, err := svc.ListUsers(ctx, 1, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(list.Total, qt.Equals, int64(3))
	c.Assert(list.Skip, qt.Equals, 1)
	c.Assert(list.Limit, qt.Equals, 10)
	c.Assert(list.Users, qt.HasLen, 2)
	c.Assert(list.Users[0].Username, qt.Equals, "ben")

	empty, err := svc.ListUsers(ctx, 10, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(empty.Users, qt.HasLen, 0)
	c.Assert(empty.Total, qt.Equals, int64(3))
}

func TestServiceUpdateUser(t *testing.T) {
	c := qt.New(t)
	svc, _ := newTestService(c)
	ctx := context.Background()

	john, err := svc.CreateUser(ctx, validCreate("johndoe"))
	c.Assert(err, qt.IsNil)
	_, err = svc.CreateUser(ctx, validCreate("janedoe"))
	c.Assert(err, qt.IsNil)

	c.Run("partial update", func(c *qt.C) {
		updated, err := svc.UpdateUser(ctx, john.ID, UpdateUserRequest{FullName: api.NullableOf("John Updated")})
		c.Assert(err, qt.IsNil)
		c.Assert(*updated.FullName, qt.Equals, "John Updated")
		c.Assert(updated.Email, qt.Equals, john.Email)
		c.Assert(updated.UpdatedAt.After(john.UpdatedAt), qt.IsTrue)
	})

	c.Run("same email is not a conflict", func(c *qt.C) {
		_, err := svc.UpdateUser(ctx, john.ID, UpdateUserRequest{Email: strPtr("JOHNDOE@example.com")})
		c.Assert(err, qt.IsNil)
	})

	c.Run("email of another user", func(c *qt.C) {
		_, err := svc.UpdateUser(ctx, john.ID, UpdateUserRequest{Email: strPtr("janedoe@example.com")})
		c.Assert(apperror.IsConflictError(err), qt.IsTrue)
	})

	c.Run("missing user", func(c *qt.C) {
		_, err := svc.UpdateUser(ctx, 999, UpdateUserRequest{IsActive: boolPtr(false)})
		c.Assert(apperror.IsNotFound(err), qt.IsTrue)
	})
}

func TestServiceDeleteUser(t *testing.T) {
	c := qt.New(t)
	svc, _ := newTestService(c)
	ctx := context.Background()

	john, err := svc.CreateUser(ctx, validCreate("johndoe"))
	c.Assert(err, qt.IsNil)

	c.Assert(svc.DeleteUser(ctx, john.ID), qt.IsNil)

	err = svc.DeleteUser(ctx, john.ID)
	c.Assert(apperror.IsNotFound(err), qt.IsTrue)

	_, err = svc.GetUser(ctx, john.ID)
	c.Assert(apperror.IsNotFound(err), qt.IsTrue)
}

// failingStore lets tests inject infrastructure failures.
type failingStore struct {
	Store
	err error
}

func (f failingStore) ExistsByUsername(context.Context, string) (bool, error) { return false, f.err }
func (f failingStore) GetByID(context.Context, int64) (*User, error)          { return nil, f.err }

func TestServiceWrapsStoreErrors(t *testing.T) {
	c := qt.New(t)
	svc := NewService(failingStore{err: errors.New("disk on fire")}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, validCreate("johndoe"))
	c.Assert(apperror.IsDatabaseError(err), qt.IsTrue)

	_, err = svc.GetUser(ctx, 1)
	c.Assert(apperror.IsDatabaseError(err), qt.IsTrue)
	c.Assert(apperror.FromError(err).StatusCode(), qt.Equals, 500)
}
