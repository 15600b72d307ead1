package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/layered-api-go/db"
)

// Repository is the data-access layer for users. It works against a request-scoped
// db.Session, so writes only become visible when the session commits.
// Queries use `?` placeholders and are rebound to the session's dialect.
type Repository struct {
	sess db.Session
	now  func() time.Time
}

// NewRepository creates a Repository bound to sess.
func NewRepository(sess db.Session) *Repository {
	return &Repository{sess: sess, now: utcNow}
}

// utcNow truncates to microseconds, the finest precision every supported engine stores.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create inserts a new user and returns it with its generated ID and timestamps.
func (r *Repository) Create(ctx context.Context, req CreateUserRequest, hashedPassword string) (*User, error) {
	now := r.now()
	user := &User{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		HashedPassword: hashedPassword,
		IsActive:       true,
		IsSuperuser:    false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	id, err := db.InsertReturningID(ctx, r.sess, `
		INSERT INTO users (username, email, full_name, hashed_password, is_active, is_superuser, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.FullName, user.HashedPassword,
		user.IsActive, user.IsSuperuser, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return user, nil
}

// GetByID returns the user with the given ID, or nil when there is none.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := r.sess.GetContext(ctx, &user, r.sess.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}
	return &user, nil
}

// GetAll returns up to limit users ordered by ID, skipping the first skip rows.
func (r *Repository) GetAll(ctx context.Context, skip, limit int) ([]User, error) {
	users := []User{}
	err := r.sess.SelectContext(ctx, &users,
		r.sess.Rebind("SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?"), limit, skip)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return users, nil
}

// Count returns the total number of users.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.sess.GetContext(ctx, &n, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Update applies the supplied fields of patch and always refreshes updated_at. A full_name
// supplied as null is written as NULL.
// It returns the updated user, or nil when no user has the given ID.
func (r *Repository) Update(ctx context.Context, id int64, patch UpdateUserRequest) (*User, error) {
	var (
		sets []string
		args []interface{}
	)
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *patch.Email)
	}
	if patch.FullName.Set {
		sets = append(sets, "full_name = ?")
		args = append(args, patch.FullName.Ptr())
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *patch.IsActive)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now(), id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := r.sess.ExecContext(ctx, r.sess.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	if affected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Delete removes the user with the given ID and reports whether a row was deleted.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.sess.ExecContext(ctx, r.sess.Rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("delete user %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user %d: %w", id, err)
	}
	return affected > 0, nil
}

// ExistsByUsername reports whether a user with the given username exists.
func (r *Repository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

// ExistsByEmail reports whether a user with the given email exists.
func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// exists is only ever called with the fixed column names above.
func (r *Repository) exists(ctx context.Context, column, value string) (bool, error) {
	var n int64
	query := r.sess.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM users WHERE %s = ?", column))
	if err := r.sess.GetContext(ctx, &n, query, value); err != nil {
		return false, fmt.Errorf("check user %s: %w", column, err)
	}
	return n > 0, nil
}
