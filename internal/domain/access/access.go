// Package access implements users, roles and permissions, session tokens and
// the capability checks that gate every mutating API operation.
package access

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// AdministratorRole bypasses every permission check and cannot be removed
// or altered.
const AdministratorRole = "Administrator"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrInvalidCredentials is returned by Login for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned when a session token is missing, invalid or expired.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the caller lacks the required permission.
	ErrForbidden = errors.New("forbidden")

	ErrEmailTaken = errors.New("email already in use")
	ErrNameTaken  = errors.New("name already in use")

	ErrRoleInUse       = errors.New("role is assigned to users and cannot be deleted")
	ErrPermissionInUse = errors.New("permission is granted to roles or users and cannot be deleted")
	ErrAdministrator   = errors.New("the Administrator role cannot be modified or deleted")
	ErrSelfDelete      = errors.New("you cannot delete your own account")
)

// Permission is a named capability such as "orders.create".
type Permission struct {
	ID   int64
	Name string
}

// Role groups permissions.
type Role struct {
	ID          int64
	Name        string
	Permissions []Permission
}

// IsAdministrator reports whether r is the Administrator role.
func (r Role) IsAdministrator() bool {
	return r.Name == AdministratorRole
}

// User is an operator of the system. Permissions holds grants made directly
// to the user in addition to those of their roles.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Roles        []Role
	Permissions  []Permission
	CreatedAt    time.Time
}

// Repository persists users, roles and permissions. Role and user loads
// include their permission sets.
type Repository interface {
	CreateUser(ctx context.Context, u *User, roleIDs, permissionIDs []int64) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u *User, roleIDs, permissionIDs []int64) error
	DeleteUser(ctx context.Context, id int64) error

	CreateRole(ctx context.Context, r *Role, permissionIDs []int64) error
	GetRole(ctx context.Context, id int64) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, r *Role, permissionIDs []int64) error
	DeleteRole(ctx context.Context, id int64) error
	RoleInUse(ctx context.Context, id int64) (bool, error)

	CreatePermission(ctx context.Context, p *Permission) error
	GetPermission(ctx context.Context, id int64) (*Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermission(ctx context.Context, p *Permission) error
	DeletePermission(ctx context.Context, id int64) error
	PermissionInUse(ctx context.Context, id int64) (bool, error)
}
