package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// RoleChecker reports whether a role name is defined.
type RoleChecker interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// Service handles user business logic.
type Service struct {
	repo     Repository
	roles    RoleChecker
	mode     RemovalMode
	audit    shared.Auditor
	logger   *slog.Logger
	validate *validator.Validate
	hashCost int
	now      func() time.Time
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo Repository, roles RoleChecker, mode RemovalMode, audit shared.Auditor, logger *slog.Logger) *Service {
	if mode == "" {
		mode = RemovalDeactivate
	}
	return &Service{
		repo:     repo,
		roles:    roles,
		mode:     mode,
		audit:    audit,
		logger:   logger,
		validate: shared.NewValidator(),
		hashCost: bcrypt.DefaultCost,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// RemovalMode reports what Remove does.
func (s *Service) RemovalMode() RemovalMode {
	return s.mode
}

// List returns all users.
func (s *Service) List(ctx context.Context, actor rbac.Principal, opts shared.ListOptions) ([]User, error) {
	if err := actor.Authorize(rbac.EntityUsers, rbac.ActionView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, opts)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id string) (User, error) {
	if err := actor.Authorize(rbac.EntityUsers, rbac.ActionView); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new active user.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, in CreateInput) (User, error) {
	if err := actor.Authorize(rbac.EntityUsers, rbac.ActionCreate); err != nil {
		return User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = norm.NFC.String(strings.TrimSpace(in.Role))
	in.Avatar = strings.TrimSpace(in.Avatar)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	if err := s.checkRole(ctx, in.Role); err != nil {
		return User{}, err
	}
	if err := s.checkEmail(ctx, in.Email, ""); err != nil {
		return User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}
	now := s.now()
	created, err := s.repo.Create(ctx, User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		Avatar:       in.Avatar,
		Active:       true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	s.record(ctx, actor, "user.create", created.ID, map[string]any{"email": created.Email, "role": created.Role})
	return created, nil
}

// Update edits a user.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, in UpdateInput) (User, error) {
	if err := actor.Authorize(rbac.EntityUsers, rbac.ActionEdit); err != nil {
		return User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = norm.NFC.String(strings.TrimSpace(in.Role))
	in.Avatar = strings.TrimSpace(in.Avatar)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Role != current.Role {
		if err := s.checkRole(ctx, in.Role); err != nil {
			return User{}, err
		}
	}
	if err := s.checkEmail(ctx, in.Email, id); err != nil {
		return User{}, err
	}
	current.Name = in.Name
	current.Email = in.Email
	current.Role = in.Role
	current.Avatar = in.Avatar
	if in.Active != nil {
		current.Active = *in.Active
	}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return User{}, err
		}
		current.PasswordHash = hash
	}
	current.UpdatedAt = s.now()
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return User{}, fmt.Errorf("users: update: %w", err)
	}
	s.record(ctx, actor, "user.update", id, map[string]any{"email": updated.Email, "role": updated.Role, "active": updated.Active})
	return updated, nil
}

// Remove deactivates or deletes a user depending on the configured mode.
func (s *Service) Remove(ctx context.Context, actor rbac.Principal, id string) error {
	if err := actor.Authorize(rbac.EntityUsers, rbac.ActionDelete); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	switch s.mode {
	case RemovalDelete:
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("users: delete: %w", err)
		}
	default:
		current.Active = false
		current.UpdatedAt = s.now()
		if _, err := s.repo.Update(ctx, current); err != nil {
			return fmt.Errorf("users: deactivate: %w", err)
		}
	}
	s.record(ctx, actor, "user."+string(s.mode), id, map[string]any{"email": current.Email})
	return nil
}

// CountByRole counts users holding roleName, active or not.
func (s *Service) CountByRole(ctx context.Context, roleName string) (int, error) {
	return s.repo.CountByRole(ctx, norm.NFC.String(roleName))
}

// FindByEmail looks a user up for sign-in. It is not gated.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, normalizeEmail(email))
}

func (s *Service) checkRole(ctx context.Context, name string) error {
	ok, err := s.roles.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("users: check role: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: role: %q is not defined", shared.ErrValidation, name)
	}
	return nil
}

func (s *Service) checkEmail(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return fmt.Errorf("users: email %q: %w", email, shared.ErrDuplicate)
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return err
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *Service) record(ctx context.Context, actor rbac.Principal, action, id string, meta map[string]any) {
	err := shared.RecordAudit(ctx, s.audit, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   string(rbac.EntityUsers),
		EntityID: id,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit user", slog.String("action", action), slog.Any("error", err))
	}
}
