// Package users implements the User resource end to end: the persisted entity and its table
// definition, the DTOs exchanged with clients, the repository (data access), the service
// (business rules) and the HTTP handlers with their route table.
package users

import (
	"time"

	"github.com/user/layered-api-go/db"
)

// User is the persisted entity. `db` tags map columns for sqlx scanning.
type User struct {
	ID             int64     `db:"id"`
	Username       string    `db:"username"`
	Email          string    `db:"email"`
	FullName       *string   `db:"full_name"`
	HashedPassword string    `db:"hashed_password"`
	IsActive       bool      `db:"is_active"`
	IsSuperuser    bool      `db:"is_superuser"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Table is the declarative definition of the users table.
var Table = db.Table{
	Name: "users",
	Columns: []db.Column{
		{Name: "id", Type: db.Integer, PrimaryKey: true, AutoIncrement: true},
		{Name: "username", Type: db.String, Size: 50, Unique: true},
		{Name: "email", Type: db.String, Size: 100, Unique: true},
		{Name: "full_name", Type: db.String, Size: 100, Nullable: true},
		{Name: "hashed_password", Type: db.String, Size: 255},
		{Name: "is_active", Type: db.Boolean, Default: "TRUE"},
		{Name: "is_superuser", Type: db.Boolean, Default: "FALSE"},
		{Name: "created_at", Type: db.DateTime},
		{Name: "updated_at", Type: db.DateTime},
	},
}

// userColumns is the explicit column list used by every SELECT.
const userColumns = "id, username, email, full_name, hashed_password, is_active, is_superuser, created_at, updated_at"
