package access

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// UserInput carries editable user fields. An empty Password on update keeps
// the stored hash.
type UserInput struct {
	Name          string
	Email         string
	Password      string
	RoleIDs       []int64
	PermissionIDs []int64
}

// RoleInput carries editable role fields.
type RoleInput struct {
	Name          string
	PermissionIDs []int64
}

// Service implements authentication and access administration.
type Service struct {
	repo   Repository
	tokens *TokenIssuer
}

// NewService creates an access Service.
func NewService(repo Repository, tokens *TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Login exchanges credentials for a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if !VerifyPassword(u.PasswordHash, password) {
		zctx.From(ctx).Info("Login rejected", zap.Int64("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate resolves a session token to its user with roles and permissions loaded.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetUser(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

// CreateUser registers a user with a hashed password.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	if err := in.normalize(true); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.repo.CreateUser(ctx, u, in.RoleIDs, in.PermissionIDs); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, u.ID)
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// UpdateUser edits a user and replaces their role and permission grants.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UserInput) (*User, error) {
	if err := in.normalize(false); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name, u.Email = in.Name, in.Email
	if in.Password != "" {
		if u.PasswordHash, err = HashPassword(in.Password); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateUser(ctx, u, in.RoleIDs, in.PermissionIDs); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, id)
}

// DeleteUser removes a user. actorID is the caller; users cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, id)
}

// CreateRole adds a role with the given permissions.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, validation.New("name", "is required")
	}
	r := &Role{Name: in.Name}
	if err := s.repo.CreateRole(ctx, r, in.PermissionIDs); err != nil {
		return nil, err
	}
	return s.repo.GetRole(ctx, r.ID)
}

// GetRole returns a role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// UpdateRole renames a role and replaces its permission set. The
// Administrator role is rejected with ErrAdministrator, as is renaming
// another role to Administrator.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (*Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, validation.New("name", "is required")
	}
	r, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.IsAdministrator() || in.Name == AdministratorRole {
		return nil, ErrAdministrator
	}
	r.Name = in.Name
	if err := s.repo.UpdateRole(ctx, r, in.PermissionIDs); err != nil {
		return nil, err
	}
	return s.repo.GetRole(ctx, id)
}

// DeleteRole removes a role that is not the Administrator role and is not
// assigned to any user.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	r, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if r.IsAdministrator() {
		return ErrAdministrator
	}
	used, err := s.repo.RoleInUse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check role usage")
	}
	if used {
		return ErrRoleInUse
	}
	return s.repo.DeleteRole(ctx, id)
}

// CreatePermission adds a permission name.
func (s *Service) CreatePermission(ctx context.Context, name string) (*Permission, error) {
	name, err := permissionName(name)
	if err != nil {
		return nil, err
	}
	p := &Permission{Name: name}
	if err := s.repo.CreatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPermission returns a permission by id.
func (s *Service) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// UpdatePermission renames a permission.
func (s *Service) UpdatePermission(ctx context.Context, id int64, name string) (*Permission, error) {
	name, err := permissionName(name)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	if err := s.repo.UpdatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePermission removes a permission that no role or user holds.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if _, err := s.repo.GetPermission(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.PermissionInUse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check permission usage")
	}
	if used {
		return ErrPermissionInUse
	}
	return s.repo.DeletePermission(ctx, id)
}

func (in *UserInput) normalize(requirePassword bool) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.RoleIDs = dedupe(in.RoleIDs)
	in.PermissionIDs = dedupe(in.PermissionIDs)

	verr := &validation.Error{}
	if in.Name == "" {
		verr.Add("name", "is required")
	}
	if err := validation.Var("email", in.Email, "required,email"); err != nil {
		fe, ok := validation.As(err)
		if !ok {
			return err
		}
		verr.Fields = append(verr.Fields, fe.Fields...)
	}
	if in.Password != "" || requirePassword {
		if len(in.Password) < MinPasswordLength {
			verr.Add("password", "must be at least 8 characters")
		}
	}
	return verr.Err()
}

func permissionName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", validation.New("name", "is required")
	}
	if strings.ContainsAny(name, " \t") {
		return "", validation.New("name", "must not contain spaces")
	}
	return name, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func dedupe(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
