package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"salome-be/internal/apperrors"
	"salome-be/internal/config"
	"salome-be/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// GroupService owns the group lifecycle: creation with frozen pricing,
// metadata edits, status transitions and deletion. Roster mutations live in
// MembershipService.
type GroupService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewGroupService(db *sql.DB, logger *zap.Logger) *GroupService {
	return &GroupService{db: db, logger: logger}
}

const inviteCodeRetries = 5

// CreateGroup validates the roster size against the app, freezes the
// per-member price and admin fee, and inserts the group together with the
// owner membership in one transaction. The owner joins automatically with
// nothing owed.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID uuid.UUID, req models.GroupCreateRequest) (*models.Group, error) {
	var app models.App
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, base_price, max_group_members, admin_fee_percentage, is_active
		FROM apps WHERE id = $1
	`, req.AppID).Scan(&app.ID, &app.Name, &app.BasePrice, &app.MaxGroupMembers, &app.AdminFeePercentage, &app.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "app not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load app", err)
	}

	if !app.IsActive {
		return nil, apperrors.New(apperrors.KindValidation, "app is not available for new groups")
	}
	if req.MaxMembers < 2 || req.MaxMembers > app.MaxGroupMembers {
		return nil, apperrors.Newf(apperrors.KindValidation,
			"max_members must be between 2 and %d for this app", app.MaxGroupMembers)
	}

	platform := config.GetConfig().Platform
	pricePerMember := PricePerMember(app.BasePrice, req.MaxMembers)
	adminFee := AdminFeePerMember(pricePerMember, app.AdminFeePercentage, platform.FlatAdminFee)

	now := time.Now()
	groupID := uuid.New()

	var description *string
	if req.Description != "" {
		description = &req.Description
	}

	// Invite codes collide only by astronomical bad luck; the unique index
	// is the arbiter and we retry a fresh code on violation.
	var inviteCode string
	for attempt := 0; attempt < inviteCodeRetries; attempt++ {
		inviteCode = GenerateInviteCode()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO groups (id, name, description, app_id, owner_id, invite_code, max_members,
				price_per_member, admin_fee, total_price, group_status, is_public, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, groupID, req.Name, description, req.AppID, ownerID, inviteCode, req.MaxMembers,
			pricePerMember, adminFee, app.BasePrice, models.GroupStatusOpen, req.IsPublic, now, now)
		if err != nil {
			tx.Rollback()
			if isUniqueViolation(err, "groups_invite_code_key") {
				continue
			}
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to create group", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_members (id, group_id, user_id, role, user_status, payment_amount, price_per_member, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New(), groupID, ownerID, models.RoleOwner, models.UserStatusActive, int64(0), pricePerMember, now)
		if err != nil {
			tx.Rollback()
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to add owner membership", err)
		}

		if err := tx.Commit(); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to commit group creation", err)
		}

		s.logger.Info("group created",
			zap.String("group_id", groupID.String()),
			zap.String("app_id", req.AppID),
			zap.String("owner_id", ownerID.String()),
			zap.Int64("price_per_member", pricePerMember),
			zap.Int64("admin_fee", adminFee))

		return &models.Group{
			ID:             groupID,
			Name:           req.Name,
			Description:    description,
			AppID:          req.AppID,
			OwnerID:        ownerID,
			InviteCode:     inviteCode,
			MaxMembers:     req.MaxMembers,
			CurrentMembers: 1,
			PricePerMember: pricePerMember,
			AdminFee:       adminFee,
			TotalPrice:     app.BasePrice,
			GroupStatus:    models.GroupStatusOpen,
			IsPublic:       req.IsPublic,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, nil
	}

	return nil, apperrors.New(apperrors.KindInternal, "could not allocate a unique invite code")
}

// EditGroup changes name and description only. Roster size, app binding and
// pricing are frozen after creation so members' dues never shift under them.
func (s *GroupService) EditGroup(ctx context.Context, groupID, actorID uuid.UUID, req models.GroupUpdateRequest) error {
	var ownerID uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM groups WHERE id = $1`, groupID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.New(apperrors.KindNotFound, "group not found")
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to load group", err)
	}
	if ownerID != actorID {
		return apperrors.New(apperrors.KindPermission, "only the group owner can edit the group")
	}

	if req.MaxMembers != nil {
		var roster int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND user_status != 'removed'
		`, groupID).Scan(&roster)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to count members", err)
		}
		if *req.MaxMembers < roster {
			return apperrors.Newf(apperrors.KindPrecondition, "max_members cannot shrink below the current roster of %d", roster)
		}
		return apperrors.New(apperrors.KindValidation, "max_members cannot be changed after creation")
	}

	if req.Name == nil && req.Description == nil {
		return apperrors.New(apperrors.KindValidation, "nothing to update")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE groups
		SET name = COALESCE($1, name), description = COALESCE($2, description), updated_at = NOW()
		WHERE id = $3
	`, req.Name, req.Description, groupID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to update group", err)
	}
	return nil
}

// UpdateGroupStatus applies an owner-initiated transition (closing the group
// or toggling open/private visibility) after validating it against the state
// machine.
func (s *GroupService) UpdateGroupStatus(ctx context.Context, groupID, actorID uuid.UUID, newStatus models.GroupStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	var ownerID uuid.UUID
	var current models.GroupStatus
	err = tx.QueryRowContext(ctx, `
		SELECT owner_id, group_status FROM groups WHERE id = $1 FOR UPDATE
	`, groupID).Scan(&ownerID, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.New(apperrors.KindNotFound, "group not found")
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to load group", err)
	}
	if ownerID != actorID {
		return apperrors.New(apperrors.KindPermission, "only the group owner can update status")
	}
	if err := CheckGroupTransition(current, newStatus); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE groups SET group_status = $1, updated_at = NOW() WHERE id = $2
	`, newStatus, groupID); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to update group status", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to commit status update", err)
	}

	s.logger.Info("group status updated",
		zap.String("group_id", groupID.String()),
		zap.String("from", string(current)),
		zap.String("to", string(newStatus)))
	return nil
}

// DeleteGroup closes the group and clears the roster. Owner or platform
// admin only; both writes commit together.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, actorID uuid.UUID, actorIsAdmin bool) error {
	var ownerID uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM groups WHERE id = $1`, groupID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.New(apperrors.KindNotFound, "group not found")
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to load group", err)
	}
	if ownerID != actorID && !actorIsAdmin {
		return apperrors.New(apperrors.KindPermission, "only the group owner or an admin can delete the group")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE groups SET group_status = $1, updated_at = NOW() WHERE id = $2
	`, models.GroupStatusClosed, groupID); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to close group", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM group_members WHERE group_id = $1
	`, groupID); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to remove members", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to commit group deletion", err)
	}

	s.logger.Info("group deleted",
		zap.String("group_id", groupID.String()),
		zap.String("actor_id", actorID.String()))
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}
