package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// RoleReferences counts role definitions that point at a profile.
type RoleReferences interface {
	CountByPermission(ctx context.Context, permissionID string) (int, error)
}

// Service handles permission profile business rules. Every mutation is
// gated by the Permisos row of the acting principal's matrix.
type Service struct {
	repo     Repository
	roles    RoleReferences
	audit    shared.Auditor
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds a Service. audit and logger may be nil.
func NewService(repo Repository, roles RoleReferences, audit shared.Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		roles:    roles,
		audit:    audit,
		logger:   logger,
		validate: shared.NewValidator(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// List returns all profiles.
func (s *Service) List(ctx context.Context, actor rbac.Principal, opts shared.ListOptions) ([]Profile, error) {
	if err := actor.Authorize(rbac.EntityPermissions, rbac.ActionView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, opts)
}

// Get returns a single profile.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id string) (Profile, error) {
	if err := actor.Authorize(rbac.EntityPermissions, rbac.ActionView); err != nil {
		return Profile{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create stores a new profile. The id is assigned here.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, in CreateInput) (Profile, error) {
	if err := actor.Authorize(rbac.EntityPermissions, rbac.ActionCreate); err != nil {
		return Profile{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Profile{}, err
	}
	if err := rbac.ValidateMatrix(in.Matrix); err != nil {
		return Profile{}, err
	}
	now := s.now()
	created, err := s.repo.Create(ctx, Profile{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Matrix:      rbac.Normalize(in.Matrix),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Profile{}, fmt.Errorf("profiles: create: %w", err)
	}
	s.record(ctx, actor, "profile.create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// Update replaces name, description and the whole matrix of a profile.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, in UpdateInput) (Profile, error) {
	if err := actor.Authorize(rbac.EntityPermissions, rbac.ActionEdit); err != nil {
		return Profile{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Profile{}, err
	}
	if err := rbac.ValidateMatrix(in.Matrix); err != nil {
		return Profile{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	current.Name = in.Name
	current.Description = in.Description
	current.Matrix = rbac.Normalize(in.Matrix)
	current.UpdatedAt = s.now()
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Profile{}, fmt.Errorf("profiles: update: %w", err)
	}
	s.record(ctx, actor, "profile.update", id, map[string]any{"name": updated.Name})
	return updated, nil
}

// SetCapability flips exactly one cell of a profile's matrix; every other
// cell keeps its stored value.
func (s *Service) SetCapability(ctx context.Context, actor rbac.Principal, id string, entity rbac.Entity, action rbac.Action, value bool) (Profile, error) {
	if err := actor.Authorize(rbac.EntityPermissions, rbac.ActionEdit); err != nil {
		return Profile{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	matrix := rbac.Normalize(current.Matrix)
	if err := matrix.Set(entity, action, value); err != nil {
		return Profile{}, err
	}
	current.Matrix = matrix
	current.UpdatedAt = s.now()
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Profile{}, fmt.Errorf("profiles: set capability: %w", err)
	}
	s.record(ctx, actor, "profile.set_capability", id, map[string]any{
		"entity": string(entity),
		"action": string(action),
		"value":  value,
	})
	return updated, nil
}

// Delete removes a profile unless a role still references it, in which case
// the error wraps shared.ErrReferenced and nothing changes.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	if err := actor.Authorize(rbac.EntityPermissions, rbac.ActionDelete); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	refs, err := s.roles.CountByPermission(ctx, id)
	if err != nil {
		return fmt.Errorf("profiles: count role references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("profiles: %q is assigned to %d role(s): %w", current.Name, refs, shared.ErrReferenced)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("profiles: delete: %w", err)
	}
	s.record(ctx, actor, "profile.delete", id, map[string]any{"name": current.Name})
	return nil
}

// MatrixForProfile returns the stored matrix of a profile. It is the
// resolver's read path and is not gated.
func (s *Service) MatrixForProfile(ctx context.Context, id string) (rbac.Matrix, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Matrix, nil
}

func (s *Service) record(ctx context.Context, actor rbac.Principal, action, id string, meta map[string]any) {
	err := shared.RecordAudit(ctx, s.audit, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   string(rbac.EntityPermissions),
		EntityID: id,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit permission profile", slog.String("action", action), slog.Any("error", err))
	}
}

var _ rbac.ProfileLookup = (*Service)(nil)
