package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"

	"github.com/user/layered-api-go/api"
	"github.com/user/layered-api-go/config"
	"github.com/user/layered-api-go/db"
)

func newTestDB(c *qt.C) *db.Manager {
	m, err := db.Open(context.Background(), config.DatabaseConfig{
		DBType:      config.SQLite,
		SQLiteFile:  filepath.Join(c.TempDir(), "users.db"),
		PoolSize:    1,
		PoolTimeout: 5,
	}, zerolog.Nop())
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = m.Close() })
	c.Assert(m.CreateTables(context.Background(), Table), qt.IsNil)
	return m
}

// fakeClock returns a clock that advances one second per call.
func fakeClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(time.Second)
		return t
	}
}

func newTestRepository(c *qt.C) *Repository {
	repo := NewRepository(newTestDB(c).DB())
	repo.now = fakeClock(time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC))
	return repo
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func createUser(c *qt.C, repo *Repository, username string) *User {
	user, err := repo.Create(context.Background(), CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "irrelevant",
	}, "hash-"+username)
	c.Assert(err, qt.IsNil)
	return user
}

func TestRepositoryCreateAssignsUnusedID(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()

	first := createUser(c, repo, "alice")
	second := createUser(c, repo, "bob")

	c.Assert(first.ID > 0, qt.IsTrue)
	c.Assert(second.ID, qt.Not(qt.Equals), first.ID)
	c.Assert(first.IsActive, qt.IsTrue)
	c.Assert(first.IsSuperuser, qt.IsFalse)
	c.Assert(first.CreatedAt, qt.Equals, first.UpdatedAt)

	stored, err := repo.GetByID(ctx, first.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Username, qt.Equals, "alice")
	c.Assert(stored.Email, qt.Equals, "alice@example.com")
	c.Assert(stored.HashedPassword, qt.Equals, "hash-alice")
	c.Assert(stored.FullName, qt.IsNil)
	c.Assert(stored.IsActive, qt.IsTrue)
	c.Assert(stored.CreatedAt.Equal(first.CreatedAt), qt.IsTrue)
}

func TestRepositoryGetByIDMissing(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)

	user, err := repo.GetByID(context.Background(), 999)
	c.Assert(err, qt.IsNil)
	c.Assert(user, qt.IsNil)
}

func TestRepositoryCreateDuplicateFails(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()

	createUser(c, repo, "alice")
	_, err := repo.Create(ctx, CreateUserRequest{Username: "alice", Email: "other@example.com"}, "x")
	c.Assert(db.IsUniqueViolation(err), qt.IsTrue)

	n, err := repo.Count(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(1))
}

func TestRepositoryPartialUpdate(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()

	created := createUser(c, repo, "alice")

	updated, err := repo.Update(ctx, created.ID, UpdateUserRequest{FullName: api.NullableOf("Alice Liddell")})
	c.Assert(err, qt.IsNil)
	c.Assert(*updated.FullName, qt.Equals, "Alice Liddell")
	c.Assert(updated.Email, qt.Equals, created.Email)
	c.Assert(updated.Username, qt.Equals, created.Username)
	c.Assert(updated.IsActive, qt.IsTrue)
	c.Assert(updated.CreatedAt.Equal(created.CreatedAt), qt.IsTrue)
	c.Assert(updated.UpdatedAt.After(created.UpdatedAt), qt.IsTrue)

	deactivated, err := repo.Update(ctx, created.ID, UpdateUserRequest{IsActive: boolPtr(false), Email: strPtr("alice@new.example.com")})
	c.Assert(err, qt.IsNil)
	c.Assert(deactivated.IsActive, qt.IsFalse)
	c.Assert(deactivated.Email, qt.Equals, "alice@new.example.com")
	c.Assert(*deactivated.FullName, qt.Equals, "Alice Liddell")

	// An empty patch still refreshes updated_at.
	touched, err := repo.Update(ctx, created.ID, UpdateUserRequest{})
	c.Assert(err, qt.IsNil)
	c.Assert(touched.UpdatedAt.After(deactivated.UpdatedAt), qt.IsTrue)
}

func TestRepositoryUpdateClearsFullName(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()

	created := createUser(c, repo, "alice")
	_, err := repo.Update(ctx, created.ID, UpdateUserRequest{FullName: api.NullableOf("Alice")})
	c.Assert(err, qt.IsNil)

	// Absent leaves the column alone; explicit null writes NULL.
	kept, err := repo.Update(ctx, created.ID, UpdateUserRequest{IsActive: boolPtr(true)})
	c.Assert(err, qt.IsNil)
	c.Assert(*kept.FullName, qt.Equals, "Alice")

	cleared, err := repo.Update(ctx, created.ID, UpdateUserRequest{FullName: api.Null[string]()})
	c.Assert(err, qt.IsNil)
	c.Assert(cleared.FullName, qt.IsNil)

	stored, err := repo.GetByID(ctx, created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.FullName, qt.IsNil)
}

func TestRepositoryUpdateMissing(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)

	user, err := repo.Update(context.Background(), 42, UpdateUserRequest{FullName: api.NullableOf("Nobody")})
	c.Assert(err, qt.IsNil)
	c.Assert(user, qt.IsNil)
}

func TestRepositoryDelete(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()

	created := createUser(c, repo, "alice")

	deleted, err := repo.Delete(ctx, created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(deleted, qt.IsTrue)

	deleted, err = repo.Delete(ctx, created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(deleted, qt.IsFalse)

	user, err := repo.GetByID(ctx, created.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(user, qt.IsNil)
}

func TestRepositoryPaginationSlicesAreDisjoint(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()

	var all []int64
	for _, name := range []string{"ann", "ben", "cat", "dan", "eve", "fay", "gus"} {
		all = append(all, createUser(c, repo, name).ID)
	}

	var paged []int64
	for skip := 0; ; skip += 3 {
		page, err := repo.GetAll(ctx, skip, 3)
		c.Assert(err, qt.IsNil)
		if len(page) == 0 {
			break
		}
		c.Assert(len(page) <= 3, qt.IsTrue)
		for _, u := range page {
			paged = append(paged, u.ID)
		}
	}
	c.Assert(paged, qt.DeepEquals, all)

	total, err := repo.Count(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, int64(7))

	empty, err := repo.GetAll(ctx, 100, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(empty, qt.HasLen, 0)
}

func TestRepositoryExists(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()

	createUser(c, repo, "alice")

	ok, err := repo.ExistsByUsername(ctx, "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ok, err = repo.ExistsByUsername(ctx, "bob")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	ok, err = repo.ExistsByEmail(ctx, "alice@example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}
