package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/agrocomice/agroaccess/internal/jobs"
	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/users"
)

// ProfileLister lists permission profiles.
type ProfileLister interface {
	List(ctx context.Context, opts shared.ListOptions) ([]profiles.Profile, error)
}

// RoleLister lists role definitions.
type RoleLister interface {
	List(ctx context.Context, opts shared.ListOptions) ([]roles.Role, error)
}

// UserLister lists users.
type UserLister interface {
	List(ctx context.Context, opts shared.ListOptions) ([]users.User, error)
}

// OrphanRole is a role whose profile id matches no profile.
type OrphanRole struct {
	RoleID       string `json:"role_id"`
	RoleName     string `json:"role_name"`
	PermissionID string `json:"permission_id"`
}

// OrphanUser is a user whose role name matches no role.
type OrphanUser struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IntegrityReport lists every dangling reference found by one scan.
type IntegrityReport struct {
	Roles []OrphanRole `json:"roles"`
	Users []OrphanUser `json:"users"`
}

// Clean reports whether nothing dangles.
func (r IntegrityReport) Clean() bool {
	return len(r.Roles) == 0 && len(r.Users) == 0
}

// IntegrityScanJob finds roles and users that resolve to no access because a
// reference dangles. It only reports; nothing is repaired or deleted.
type IntegrityScanJob struct {
	Profiles ProfileLister
	Roles    RoleLister
	Users    UserLister
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(p ProfileLister, r RoleLister, u UserLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{Profiles: p, Roles: r, Users: u, Logger: logger, Metrics: metrics}
}

// Handle executes the scan for an Asynq task.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run scans, logs every finding and publishes the finding gauges.
func (j *IntegrityScanJob) Run(ctx context.Context, payload IntegrityScanPayload) (report IntegrityReport, err error) {
	start := time.Now()
	tracker := j.Metrics.Track(TaskIntegrityScan)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("job", TaskIntegrityScan))
	if payload.RequestedBy != "" {
		logger = logger.With(slog.String("requested_by", payload.RequestedBy))
	}

	report, err = j.Scan(ctx)
	if err != nil {
		logger.Error("integrity scan failed", slog.Any("error", err))
		return IntegrityReport{}, err
	}
	for _, r := range report.Roles {
		logger.Warn("role points at missing permission profile",
			slog.String("role_id", r.RoleID),
			slog.String("role", r.RoleName),
			slog.String("permission_id", r.PermissionID),
		)
	}
	for _, u := range report.Users {
		logger.Warn("user holds undefined role",
			slog.String("user_id", u.UserID),
			slog.String("email", u.Email),
			slog.String("role", u.Role),
		)
	}
	j.Metrics.SetFindings("role_profile", len(report.Roles))
	j.Metrics.SetFindings("user_role", len(report.Users))
	logger.Info("integrity scan completed",
		slog.Int("orphan_roles", len(report.Roles)),
		slog.Int("orphan_users", len(report.Users)),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// Scan loads the three collections concurrently and compares references.
func (j *IntegrityScanJob) Scan(ctx context.Context) (IntegrityReport, error) {
	var (
		profileList []profiles.Profile
		roleList    []roles.Role
		userList    []users.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profileList, err = j.Profiles.List(gctx, shared.ListOptions{})
		return err
	})
	g.Go(func() (err error) {
		roleList, err = j.Roles.List(gctx, shared.ListOptions{})
		return err
	})
	g.Go(func() (err error) {
		userList, err = j.Users.List(gctx, shared.ListOptions{})
		return err
	})
	if err := g.Wait(); err != nil {
		return IntegrityReport{}, err
	}

	profileIDs := make(map[string]struct{}, len(profileList))
	for _, p := range profileList {
		profileIDs[p.ID] = struct{}{}
	}
	roleNames := make(map[string]struct{}, len(roleList))
	report := IntegrityReport{Roles: []OrphanRole{}, Users: []OrphanUser{}}
	for _, r := range roleList {
		roleNames[r.Name] = struct{}{}
		if _, ok := profileIDs[r.PermissionID]; !ok {
			report.Roles = append(report.Roles, OrphanRole{RoleID: r.ID, RoleName: r.Name, PermissionID: r.PermissionID})
		}
	}
	for _, u := range userList {
		if _, ok := roleNames[u.Role]; !ok {
			report.Users = append(report.Users, OrphanUser{UserID: u.ID, Email: u.Email, Role: u.Role})
		}
	}
	return report, nil
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
