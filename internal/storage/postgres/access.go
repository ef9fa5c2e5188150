package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tailor-orders/internal/domain/access"
	"github.com/xenking/tailor-orders/internal/domain/validation"
)

const (
	createUserSQL     = `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id, created_at`
	getUserSQL        = `SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`
	listUsersSQL      = `SELECT id, name, email, password_hash, created_at FROM users ORDER BY name, id`
	updateUserSQL     = `UPDATE users SET name = $2, email = $3, password_hash = $4 WHERE id = $1`
	deleteUserSQL     = `DELETE FROM users WHERE id = $1`

	clearUserRolesSQL = `DELETE FROM user_roles WHERE user_id = $1`
	setUserRolesSQL   = `INSERT INTO user_roles (user_id, role_id) SELECT $1, unnest($2::bigint[])`
	clearUserPermsSQL = `DELETE FROM user_permissions WHERE user_id = $1`
	setUserPermsSQL   = `INSERT INTO user_permissions (user_id, permission_id) SELECT $1, unnest($2::bigint[])`
	userRolesSQL      = `SELECT r.id, r.name FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 ORDER BY r.name`
	userPermsSQL = `SELECT p.id, p.name FROM permissions p JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1 ORDER BY p.name`

	createRoleSQL     = `INSERT INTO roles (name) VALUES ($1) RETURNING id`
	getRoleSQL        = `SELECT id, name FROM roles WHERE id = $1`
	listRolesSQL      = `SELECT id, name FROM roles ORDER BY name`
	updateRoleSQL     = `UPDATE roles SET name = $2 WHERE id = $1`
	deleteRoleSQL     = `DELETE FROM roles WHERE id = $1`
	roleInUseSQL      = `SELECT EXISTS (SELECT 1 FROM user_roles WHERE role_id = $1)`
	clearRolePermsSQL = `DELETE FROM role_permissions WHERE role_id = $1`
	setRolePermsSQL   = `INSERT INTO role_permissions (role_id, permission_id) SELECT $1, unnest($2::bigint[])`
	rolePermsSQL      = `SELECT rp.role_id, p.id, p.name FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1) ORDER BY p.name`

	createPermissionSQL = `INSERT INTO permissions (name) VALUES ($1) RETURNING id`
	getPermissionSQL    = `SELECT id, name FROM permissions WHERE id = $1`
	listPermissionsSQL  = `SELECT id, name FROM permissions ORDER BY name`
	updatePermissionSQL = `UPDATE permissions SET name = $2 WHERE id = $1`
	deletePermissionSQL = `DELETE FROM permissions WHERE id = $1`
	permissionInUseSQL  = `SELECT EXISTS (SELECT 1 FROM role_permissions WHERE permission_id = $1)
		OR EXISTS (SELECT 1 FROM user_permissions WHERE permission_id = $1)`

	seedPermissionsSQL = `INSERT INTO permissions (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`
	seedRoleSQL        = `INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	seedRolePermsSQL = `INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, id FROM permissions WHERE name = ANY($2::text[])
		ON CONFLICT DO NOTHING`
	seedUserSQL = `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING`
	seedUserRoleSQL = `INSERT INTO user_roles (user_id, role_id)
		SELECT id, $2 FROM users WHERE email = $1 ON CONFLICT DO NOTHING`
)

var _ access.Repository = (*AccessRepository)(nil)

// AccessRepository implements access.Repository backed by PostgreSQL.
type AccessRepository struct {
	pool *pgxpool.Pool
}

// NewAccessRepository returns an AccessRepository that uses the given pool.
func NewAccessRepository(pool *pgxpool.Pool) *AccessRepository {
	return &AccessRepository{pool: pool}
}

func (r *AccessRepository) CreateUser(ctx context.Context, u *access.User, roleIDs, permissionIDs []int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, createUserSQL, u.Name, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
		if isUniqueViolation(err) {
			return access.ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("creating user %q: %w", u.Email, err)
		}
		return setUserGrants(ctx, tx, u.ID, roleIDs, permissionIDs)
	})
}

func (r *AccessRepository) GetUser(ctx context.Context, id int64) (*access.User, error) {
	return r.getUser(ctx, getUserSQL, id)
}

func (r *AccessRepository) GetUserByEmail(ctx context.Context, email string) (*access.User, error) {
	return r.getUser(ctx, getUserByEmailSQL, email)
}

func (r *AccessRepository) ListUsers(ctx context.Context) ([]access.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	for i := range users {
		if err := r.loadGrants(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (r *AccessRepository) UpdateUser(ctx context.Context, u *access.User, roleIDs, permissionIDs []int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateUserSQL, u.ID, u.Name, u.Email, u.PasswordHash)
		if isUniqueViolation(err) {
			return access.ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("updating user %d: %w", u.ID, err)
		}
		if err := affectedOne(tag, access.ErrUserNotFound); err != nil {
			return err
		}
		return setUserGrants(ctx, tx, u.ID, roleIDs, permissionIDs)
	})
}

func (r *AccessRepository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	return affectedOne(tag, access.ErrUserNotFound)
}

func (r *AccessRepository) CreateRole(ctx context.Context, role *access.Role, permissionIDs []int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, createRoleSQL, role.Name).Scan(&role.ID)
		if isUniqueViolation(err) {
			return access.ErrNameTaken
		}
		if err != nil {
			return fmt.Errorf("creating role %q: %w", role.Name, err)
		}
		return setRolePermissions(ctx, tx, role.ID, permissionIDs)
	})
}

func (r *AccessRepository) GetRole(ctx context.Context, id int64) (*access.Role, error) {
	rows, err := r.pool.Query(ctx, getRoleSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting role %d: %w", id, err)
	}
	role, err := pgx.CollectExactlyOneRow(rows, scanRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, access.ErrRoleNotFound
		}
		return nil, fmt.Errorf("getting role %d: %w", id, err)
	}
	roles := []access.Role{role}
	if err := loadRolePermissions(ctx, r.pool, roles); err != nil {
		return nil, err
	}
	return &roles[0], nil
}

func (r *AccessRepository) ListRoles(ctx context.Context) ([]access.Role, error) {
	rows, err := r.pool.Query(ctx, listRolesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	roles, err := pgx.CollectRows(rows, scanRole)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	if err := loadRolePermissions(ctx, r.pool, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *AccessRepository) UpdateRole(ctx context.Context, role *access.Role, permissionIDs []int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateRoleSQL, role.ID, role.Name)
		if isUniqueViolation(err) {
			return access.ErrNameTaken
		}
		if err != nil {
			return fmt.Errorf("updating role %d: %w", role.ID, err)
		}
		if err := affectedOne(tag, access.ErrRoleNotFound); err != nil {
			return err
		}
		return setRolePermissions(ctx, tx, role.ID, permissionIDs)
	})
}

func (r *AccessRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteRoleSQL, id)
	if isForeignKeyViolation(err) {
		return access.ErrRoleInUse
	}
	if err != nil {
		return fmt.Errorf("deleting role %d: %w", id, err)
	}
	return affectedOne(tag, access.ErrRoleNotFound)
}

func (r *AccessRepository) RoleInUse(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.pool, roleInUseSQL, id)
}

func (r *AccessRepository) CreatePermission(ctx context.Context, p *access.Permission) error {
	err := r.pool.QueryRow(ctx, createPermissionSQL, p.Name).Scan(&p.ID)
	if isUniqueViolation(err) {
		return access.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("creating permission %q: %w", p.Name, err)
	}
	return nil
}

func (r *AccessRepository) GetPermission(ctx context.Context, id int64) (*access.Permission, error) {
	rows, err := r.pool.Query(ctx, getPermissionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting permission %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPermission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, access.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("getting permission %d: %w", id, err)
	}
	return &p, nil
}

func (r *AccessRepository) ListPermissions(ctx context.Context) ([]access.Permission, error) {
	rows, err := r.pool.Query(ctx, listPermissionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	return pgx.CollectRows(rows, scanPermission)
}

func (r *AccessRepository) UpdatePermission(ctx context.Context, p *access.Permission) error {
	tag, err := r.pool.Exec(ctx, updatePermissionSQL, p.ID, p.Name)
	if isUniqueViolation(err) {
		return access.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("updating permission %d: %w", p.ID, err)
	}
	return affectedOne(tag, access.ErrPermissionNotFound)
}

func (r *AccessRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deletePermissionSQL, id)
	if isForeignKeyViolation(err) {
		return access.ErrPermissionInUse
	}
	if err != nil {
		return fmt.Errorf("deleting permission %d: %w", id, err)
	}
	return affectedOne(tag, access.ErrPermissionNotFound)
}

func (r *AccessRepository) PermissionInUse(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.pool, permissionInUseSQL, id)
}

// SeedRole creates or reuses the named role and grants it the named
// permissions, creating missing ones. Existing grants are kept.
func (r *AccessRepository) SeedRole(ctx context.Context, name string, permissions []string) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, seedPermissionsSQL, permissions); err != nil {
			return fmt.Errorf("seeding permissions: %w", err)
		}
		if err := tx.QueryRow(ctx, seedRoleSQL, name).Scan(&id); err != nil {
			return fmt.Errorf("seeding role %q: %w", name, err)
		}
		if _, err := tx.Exec(ctx, seedRolePermsSQL, id, permissions); err != nil {
			return fmt.Errorf("granting permissions to role %q: %w", name, err)
		}
		return nil
	})
	return id, err
}

// SeedUser creates the user unless the email exists, then assigns roleID.
// It reports whether a new user was inserted.
func (r *AccessRepository) SeedUser(ctx context.Context, u access.User, roleID int64) (bool, error) {
	var created bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, seedUserSQL, u.Name, u.Email, u.PasswordHash)
		if err != nil {
			return fmt.Errorf("seeding user %q: %w", u.Email, err)
		}
		created = tag.RowsAffected() == 1
		if _, err := tx.Exec(ctx, seedUserRoleSQL, u.Email, roleID); err != nil {
			return fmt.Errorf("assigning role to %q: %w", u.Email, err)
		}
		return nil
	})
	return created, err
}

func (r *AccessRepository) getUser(ctx context.Context, sql string, arg any) (*access.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user %v: %w", arg, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, access.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user %v: %w", arg, err)
	}
	if err := r.loadGrants(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *AccessRepository) loadGrants(ctx context.Context, u *access.User) error {
	rows, err := r.pool.Query(ctx, userRolesSQL, u.ID)
	if err != nil {
		return fmt.Errorf("loading roles of user %d: %w", u.ID, err)
	}
	if u.Roles, err = pgx.CollectRows(rows, scanRole); err != nil {
		return fmt.Errorf("loading roles of user %d: %w", u.ID, err)
	}
	if err := loadRolePermissions(ctx, r.pool, u.Roles); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx, userPermsSQL, u.ID)
	if err != nil {
		return fmt.Errorf("loading permissions of user %d: %w", u.ID, err)
	}
	if u.Permissions, err = pgx.CollectRows(rows, scanPermission); err != nil {
		return fmt.Errorf("loading permissions of user %d: %w", u.ID, err)
	}
	return nil
}

func loadRolePermissions(ctx context.Context, q querier, roles []access.Role) error {
	if len(roles) == 0 {
		return nil
	}
	ids := make([]int64, len(roles))
	index := make(map[int64]int, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
		index[role.ID] = i
	}

	rows, err := q.Query(ctx, rolePermsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading role permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			roleID int64
			p      access.Permission
		)
		if err := rows.Scan(&roleID, &p.ID, &p.Name); err != nil {
			return fmt.Errorf("scanning role permission: %w", err)
		}
		i := index[roleID]
		roles[i].Permissions = append(roles[i].Permissions, p)
	}
	return rows.Err()
}

func setUserGrants(ctx context.Context, tx pgx.Tx, userID int64, roleIDs, permissionIDs []int64) error {
	if _, err := tx.Exec(ctx, clearUserRolesSQL, userID); err != nil {
		return fmt.Errorf("clearing roles of user %d: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, setUserRolesSQL, userID, nonNil(roleIDs)); err != nil {
		if isForeignKeyViolation(err) {
			return validation.New("role_ids", "contains an unknown role")
		}
		return fmt.Errorf("assigning roles to user %d: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, clearUserPermsSQL, userID); err != nil {
		return fmt.Errorf("clearing permissions of user %d: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, setUserPermsSQL, userID, nonNil(permissionIDs)); err != nil {
		if isForeignKeyViolation(err) {
			return validation.New("permission_ids", "contains an unknown permission")
		}
		return fmt.Errorf("granting permissions to user %d: %w", userID, err)
	}
	return nil
}

func setRolePermissions(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	if _, err := tx.Exec(ctx, clearRolePermsSQL, roleID); err != nil {
		return fmt.Errorf("clearing permissions of role %d: %w", roleID, err)
	}
	if _, err := tx.Exec(ctx, setRolePermsSQL, roleID, nonNil(permissionIDs)); err != nil {
		if isForeignKeyViolation(err) {
			return validation.New("permission_ids", "contains an unknown permission")
		}
		return fmt.Errorf("granting permissions to role %d: %w", roleID, err)
	}
	return nil
}

// nonNil keeps pgx from encoding a nil slice as NULL.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func scanUser(row pgx.CollectableRow) (access.User, error) {
	var u access.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func scanRole(row pgx.CollectableRow) (access.Role, error) {
	var r access.Role
	err := row.Scan(&r.ID, &r.Name)
	return r, err
}

func scanPermission(row pgx.CollectableRow) (access.Permission, error) {
	var p access.Permission
	err := row.Scan(&p.ID, &p.Name)
	return p, err
}
