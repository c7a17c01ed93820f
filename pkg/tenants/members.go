// Package tenants manages tenant memberships. Role-changing writes are the
// events that make cached authorization stale, so every mutation here
// invalidates the member's cached resolutions and records an audit event.
package tenants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vendhub/vendhub/pkg/audit"
	"github.com/vendhub/vendhub/pkg/cache"
	"github.com/vendhub/vendhub/pkg/observability"
)

// Member is one user's membership inside a tenant.
type Member struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	RoleKey   string    `json:"role_key"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service provides tenant membership management.
type Service struct {
	db     *sql.DB
	cache  cache.Cache
	audit  audit.Logger
	logger *observability.Logger
}

// NewService creates a membership service.
func NewService(db *sql.DB, c cache.Cache, auditLogger audit.Logger, logger *observability.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{db: db, cache: c, audit: auditLogger, logger: logger}
}

const memberColumns = `tu.id, tu.tenant_id, tu.user_id, tu.role_id, r.key_name, tu.is_active, tu.created_at, tu.updated_at`

// ListMembers retrieves all members of a tenant.
func (s *Service) ListMembers(ctx context.Context, tenantID int64) ([]*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM tenant_users tu
		JOIN roles r ON r.id = tu.role_id
		WHERE tu.tenant_id = $1
		ORDER BY tu.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(
			&member.ID, &member.TenantID, &member.UserID, &member.RoleID,
			&member.RoleKey, &member.IsActive, &member.CreatedAt, &member.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// GetMember retrieves a specific member.
func (s *Service) GetMember(ctx context.Context, tenantID, userID int64) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM tenant_users tu
		JOIN roles r ON r.id = tu.role_id
		WHERE tu.tenant_id = $1 AND tu.user_id = $2
	`
	member := &Member{}
	err := s.db.QueryRowContext(ctx, query, tenantID, userID).Scan(
		&member.ID, &member.TenantID, &member.UserID, &member.RoleID,
		&member.RoleKey, &member.IsActive, &member.CreatedAt, &member.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// AddMember adds a user to a tenant with a role.
func (s *Service) AddMember(ctx context.Context, tenantID, userID, roleID int64, addedBy *int64) error {
	query := `
		INSERT INTO tenant_users (tenant_id, user_id, role_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, tenantID, userID, roleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member already exists")
	}

	s.invalidate(ctx, tenantID, userID)
	s.auditAdmin(ctx, audit.EventTypeMemberAdd, addedBy, tenantID, userID, "member added")
	return nil
}

// UpdateMemberRole changes a member's role.
func (s *Service) UpdateMemberRole(ctx context.Context, tenantID, userID, roleID int64, changedBy *int64) error {
	query := `
		UPDATE tenant_users SET role_id = $1, updated_at = $2
		WHERE tenant_id = $3 AND user_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, roleID, time.Now().UTC(), tenantID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member not found")
	}

	s.invalidate(ctx, tenantID, userID)
	s.auditAdmin(ctx, audit.EventTypeMemberRoleChange, changedBy, tenantID, userID, "member role changed")
	return nil
}

// DeactivateMember disables a membership without removing the row, which
// drops the member to the no-role baseline.
func (s *Service) DeactivateMember(ctx context.Context, tenantID, userID int64, changedBy *int64) error {
	query := `
		UPDATE tenant_users SET is_active = FALSE, updated_at = $1
		WHERE tenant_id = $2 AND user_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), tenantID, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member not found")
	}

	s.invalidate(ctx, tenantID, userID)
	s.auditAdmin(ctx, audit.EventTypeMemberDeactivate, changedBy, tenantID, userID, "member deactivated")
	return nil
}

// RemoveMember removes a user from a tenant.
func (s *Service) RemoveMember(ctx context.Context, tenantID, userID int64, removedBy *int64) error {
	query := `DELETE FROM tenant_users WHERE tenant_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, tenantID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member not found")
	}

	s.invalidate(ctx, tenantID, userID)
	s.auditAdmin(ctx, audit.EventTypeMemberRemove, removedBy, tenantID, userID, "member removed")
	return nil
}

// invalidate drops the member's cached resolutions. Session snapshots are
// not touched: they refresh when cleared, an accepted staleness window.
func (s *Service) invalidate(ctx context.Context, tenantID, userID int64) {
	deleted := s.cache.DeletePattern(ctx, cache.UserPattern(tenantID, userID))
	if deleted > 0 {
		s.logger.WithFields(map[string]interface{}{
			"tenant_id": tenantID,
			"user_id":   userID,
			"deleted":   deleted,
		}).Debug("invalidated cached permissions")
	}
}

func (s *Service) auditAdmin(ctx context.Context, eventType audit.EventType, actor *int64, tenantID, targetUserID int64, message string) {
	if err := s.audit.LogAdminAction(ctx, eventType, actor, &tenantID, &targetUserID, message); err != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}
}
