package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// ProfileReader is the slice of the profile store roles depend on.
type ProfileReader interface {
	List(ctx context.Context, opts shared.ListOptions) ([]profiles.Profile, error)
	Get(ctx context.Context, id string) (profiles.Profile, error)
}

// UserReferences counts users holding a role name.
type UserReferences interface {
	CountByRole(ctx context.Context, roleName string) (int, error)
}

// Service handles role business logic.
type Service struct {
	repo     Repository
	profiles ProfileReader
	users    UserReferences
	audit    shared.Auditor
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo Repository, profiles ProfileReader, users UserReferences, audit shared.Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		users:    users,
		audit:    audit,
		logger:   logger,
		validate: shared.NewValidator(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NormalizeName trims and NFC-normalises a role name so composed and
// decomposed spellings of the same name compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// LookupName prepares a name for an exact match against stored roles. It
// only composes the Unicode form; padding is significant.
func LookupName(name string) string {
	return norm.NFC.String(name)
}

// List returns all roles.
func (s *Service) List(ctx context.Context, actor rbac.Principal, opts shared.ListOptions) ([]Role, error) {
	if err := actor.Authorize(rbac.EntityRoles, rbac.ActionView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, opts)
}

// Get returns one role.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id string) (Role, error) {
	if err := actor.Authorize(rbac.EntityRoles, rbac.ActionView); err != nil {
		return Role{}, err
	}
	return s.repo.Get(ctx, id)
}

// FormOptions loads roles and profiles for the role editor concurrently.
func (s *Service) FormOptions(ctx context.Context, actor rbac.Principal) (FormOptions, error) {
	if err := actor.Authorize(rbac.EntityRoles, rbac.ActionView); err != nil {
		return FormOptions{}, err
	}
	var opts FormOptions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.repo.List(gctx, shared.ListOptions{})
		opts.Roles = list
		return err
	})
	g.Go(func() error {
		list, err := s.profiles.List(gctx, shared.ListOptions{})
		opts.Profiles = list
		return err
	})
	if err := g.Wait(); err != nil {
		return FormOptions{}, fmt.Errorf("roles: form options: %w", err)
	}
	return opts, nil
}

// Create stores a new role.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, in Input) (Role, error) {
	if err := actor.Authorize(rbac.EntityRoles, rbac.ActionCreate); err != nil {
		return Role{}, err
	}
	in, err := s.prepare(ctx, in, "")
	if err != nil {
		return Role{}, err
	}
	now := s.now()
	created, err := s.repo.Create(ctx, Role{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Description:  in.Description,
		PermissionID: in.PermissionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	s.record(ctx, actor, "role.create", created.ID, map[string]any{"name": created.Name, "permission_id": created.PermissionID})
	return created, nil
}

// Update edits a role. Renaming leaves users pointing at the old name.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, in Input) (Role, error) {
	if err := actor.Authorize(rbac.EntityRoles, rbac.ActionEdit); err != nil {
		return Role{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Role{}, err
	}
	in, err = s.prepare(ctx, in, id)
	if err != nil {
		return Role{}, err
	}
	previous := current.Name
	current.Name = in.Name
	current.Description = in.Description
	current.PermissionID = in.PermissionID
	current.UpdatedAt = s.now()
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Role{}, fmt.Errorf("roles: update: %w", err)
	}
	meta := map[string]any{"name": updated.Name, "permission_id": updated.PermissionID}
	if previous != updated.Name {
		meta["previous_name"] = previous
		if s.logger != nil {
			s.logger.Info("role renamed; users keep the previous name", slog.String("from", previous), slog.String("to", updated.Name))
		}
	}
	s.record(ctx, actor, "role.update", id, meta)
	return updated, nil
}

// Delete removes a role unless some user still holds it by name.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	if err := actor.Authorize(rbac.EntityRoles, rbac.ActionDelete); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	holders, err := s.users.CountByRole(ctx, current.Name)
	if err != nil {
		return fmt.Errorf("roles: count holders: %w", err)
	}
	if holders > 0 {
		return fmt.Errorf("roles: %q is held by %d user(s): %w", current.Name, holders, shared.ErrReferenced)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	s.record(ctx, actor, "role.delete", id, map[string]any{"name": current.Name})
	return nil
}

// PermissionIDForRole returns the profile id of the role named name. It is
// the resolver's read path and is not gated.
func (s *Service) PermissionIDForRole(ctx context.Context, name string) (string, error) {
	role, err := s.repo.FindByName(ctx, LookupName(name))
	if err != nil {
		return "", err
	}
	return role.PermissionID, nil
}

// Exists reports whether a role with the given name is defined.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.repo.FindByName(ctx, LookupName(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, shared.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) prepare(ctx context.Context, in Input, selfID string) (Input, error) {
	in.Name = NormalizeName(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.PermissionID = strings.TrimSpace(in.PermissionID)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Input{}, err
	}
	if _, err := s.profiles.Get(ctx, in.PermissionID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Input{}, fmt.Errorf("%w: permissionId: profile %q does not exist", shared.ErrValidation, in.PermissionID)
		}
		return Input{}, err
	}
	existing, err := s.repo.FindByName(ctx, in.Name)
	switch {
	case err == nil && existing.ID != selfID:
		return Input{}, fmt.Errorf("roles: name %q: %w", in.Name, shared.ErrDuplicate)
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return Input{}, err
	}
	return in, nil
}

func (s *Service) record(ctx context.Context, actor rbac.Principal, action, id string, meta map[string]any) {
	err := shared.RecordAudit(ctx, s.audit, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   string(rbac.EntityRoles),
		EntityID: id,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit role", slog.String("action", action), slog.Any("error", err))
	}
}

var _ rbac.RoleLookup = (*Service)(nil)
