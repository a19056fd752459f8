package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/users"
)

// Accounts is the read side of the user store used by sign-in.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
}

// PermissionResolver turns a role name into a permission matrix.
type PermissionResolver interface {
	ResolvePermissions(ctx context.Context, roleName string) (rbac.Matrix, error)
}

// Service wraps authentication business rules.
type Service struct {
	accounts Accounts
	resolver PermissionResolver
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(accounts Accounts, resolver PermissionResolver, logger *slog.Logger) *Service {
	return &Service{accounts: accounts, resolver: resolver, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.accounts.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if !user.Active {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignIn authenticates and resolves the permission matrix held for the
// session. The matrix is not re-read until Refresh or the next sign-in.
func (s *Service) SignIn(ctx context.Context, email, password string) (users.User, rbac.Principal, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return users.User{}, rbac.Principal{}, err
	}
	principal, err := s.principalFor(ctx, user)
	if err != nil {
		return users.User{}, rbac.Principal{}, err
	}
	return user, principal, nil
}

// Refresh re-reads the user and re-resolves the matrix for an existing
// session. Deactivated users lose the session.
func (s *Service) Refresh(ctx context.Context, userID string) (users.User, rbac.Principal, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, rbac.Principal{}, shared.ErrInvalidCredentials
		}
		return users.User{}, rbac.Principal{}, err
	}
	if !user.Active {
		return users.User{}, rbac.Principal{}, shared.ErrInvalidCredentials
	}
	principal, err := s.principalFor(ctx, user)
	if err != nil {
		return users.User{}, rbac.Principal{}, err
	}
	return user, principal, nil
}

func (s *Service) principalFor(ctx context.Context, user users.User) (rbac.Principal, error) {
	matrix, err := s.resolver.ResolvePermissions(ctx, user.Role)
	if err != nil {
		return rbac.Principal{}, fmt.Errorf("auth: resolve permissions: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("permissions resolved", slog.String("user", user.ID), slog.String("role", user.Role), slog.Int("visible", len(matrix.Visible())))
	}
	return rbac.Principal{UserID: user.ID, Role: user.Role, Permissions: matrix}, nil
}
