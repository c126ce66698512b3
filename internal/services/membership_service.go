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
	"go.uber.org/zap"
)

// MembershipService is the ledger of who sits in which group, what they owe
// and whether they have paid. Join, payment recording and ownership transfer
// each run inside a single transaction that locks the group row, so the
// capacity and single-owner invariants hold under concurrent requests.
type MembershipService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMembershipService(db *sql.DB, logger *zap.Logger) *MembershipService {
	return &MembershipService{db: db, logger: logger}
}

// lockGroup reads the fields every roster mutation needs, under FOR UPDATE.
type lockedGroup struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	MaxMembers     int
	PricePerMember int64
	AdminFee       int64
	GroupStatus    models.GroupStatus
}

func lockGroupByID(ctx context.Context, tx *sql.Tx, groupID uuid.UUID) (*lockedGroup, error) {
	var g lockedGroup
	err := tx.QueryRowContext(ctx, `
		SELECT id, owner_id, max_members, price_per_member, admin_fee, group_status
		FROM groups WHERE id = $1 FOR UPDATE
	`, groupID).Scan(&g.ID, &g.OwnerID, &g.MaxMembers, &g.PricePerMember, &g.AdminFee, &g.GroupStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "group not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to lock group", err)
	}
	return &g, nil
}

func lockGroupByInviteCode(ctx context.Context, tx *sql.Tx, code string) (*lockedGroup, error) {
	var g lockedGroup
	err := tx.QueryRowContext(ctx, `
		SELECT id, owner_id, max_members, price_per_member, admin_fee, group_status
		FROM groups WHERE invite_code = $1 FOR UPDATE
	`, code).Scan(&g.ID, &g.OwnerID, &g.MaxMembers, &g.PricePerMember, &g.AdminFee, &g.GroupStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "invalid invite code")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to lock group", err)
	}
	return &g, nil
}

func countRoster(ctx context.Context, tx *sql.Tx, groupID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM group_members
		WHERE group_id = $1 AND user_status != 'removed'
	`, groupID).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "failed to count members", err)
	}
	return count, nil
}

// Join resolves an invite code (raw or link form) and admits the user as a
// pending member owing price_per_member + admin_fee. The group row lock makes
// the capacity check and the insert atomic: of N concurrent joins for the
// last slot exactly one commits.
func (s *MembershipService) Join(ctx context.Context, rawCode string, userID uuid.UUID) (*models.GroupMember, error) {
	code, err := ParseInviteCode(rawCode)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	group, err := lockGroupByInviteCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	switch group.GroupStatus {
	case models.GroupStatusOpen, models.GroupStatusPrivate:
		// joinable
	case models.GroupStatusFull:
		return nil, apperrors.New(apperrors.KindCapacity, "group is full")
	default:
		return nil, apperrors.Newf(apperrors.KindPrecondition, "group is %s and no longer accepts members", group.GroupStatus)
	}

	count, err := countRoster(ctx, tx, group.ID)
	if err != nil {
		return nil, err
	}
	if count >= group.MaxMembers {
		return nil, apperrors.New(apperrors.KindCapacity, "group is full")
	}

	var existingID uuid.UUID
	var existingStatus models.UserStatus
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_status FROM group_members WHERE group_id = $1 AND user_id = $2
	`, group.ID, userID).Scan(&existingID, &existingStatus)
	switch {
	case err == nil && existingStatus != models.UserStatusRemoved:
		return nil, apperrors.New(apperrors.KindAlreadyMember, "user is already a member of this group")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to check membership", err)
	}

	now := time.Now()
	deadline := now.Add(time.Duration(config.GetConfig().Platform.PaymentTimeoutHours) * time.Hour)
	amount := MemberCharge(group.PricePerMember, group.AdminFee)

	member := &models.GroupMember{
		GroupID:         group.ID,
		UserID:          userID,
		Role:            models.RoleMember,
		UserStatus:      models.UserStatusPending,
		PaymentAmount:   amount,
		PricePerMember:  group.PricePerMember,
		JoinedAt:        now,
		PaymentDeadline: &deadline,
	}

	if err == nil {
		// A previously removed member rejoins on their old row.
		member.ID = existingID
		_, err = tx.ExecContext(ctx, `
			UPDATE group_members
			SET role = $1, user_status = $2, payment_amount = $3, price_per_member = $4,
			    joined_at = $5, payment_deadline = $6, paid_at = NULL, removed_at = NULL, removed_reason = NULL
			WHERE id = $7
		`, models.RoleMember, models.UserStatusPending, amount, group.PricePerMember, now, deadline, existingID)
	} else {
		member.ID = uuid.New()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_members (id, group_id, user_id, role, user_status, payment_amount, price_per_member, joined_at, payment_deadline)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, member.ID, group.ID, userID, models.RoleMember, models.UserStatusPending, amount, group.PricePerMember, now, deadline)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to join group", err)
	}

	if count+1 >= group.MaxMembers {
		if _, err := tx.ExecContext(ctx, `
			UPDATE groups SET group_status = $1, updated_at = NOW() WHERE id = $2
		`, models.GroupStatusFull, group.ID); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to mark group full", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to commit join", err)
	}

	s.logger.Info("member joined",
		zap.String("group_id", group.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("payment_amount", amount),
		zap.Int("roster", count+1))
	return member, nil
}

// RecordPayment marks a member paid and, when the last unpaid member
// settles, promotes the whole group to paid_group and activates everyone.
// Re-confirming an already paid membership is a no-op.
func (s *MembershipService) RecordPayment(ctx context.Context, groupID, userID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	if err := s.recordPaymentTx(ctx, tx, groupID, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to commit payment", err)
	}
	return nil
}

// recordPaymentTx is the transactional body of RecordPayment, shared with
// payment reconciliation so the payment row and the ledger update commit
// together.
func (s *MembershipService) recordPaymentTx(ctx context.Context, tx *sql.Tx, groupID, userID uuid.UUID) error {
	group, err := lockGroupByID(ctx, tx, groupID)
	if err != nil {
		return err
	}

	var status models.UserStatus
	err = tx.QueryRowContext(ctx, `
		SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.New(apperrors.KindNotFound, "membership not found")
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to load membership", err)
	}

	if status == models.UserStatusPaid || status == models.UserStatusActive {
		return nil
	}
	if err := CheckUserTransition(status, models.UserStatusPaid); err != nil {
		return err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE group_members
		SET user_status = $1, paid_at = $2, payment_deadline = NULL
		WHERE group_id = $3 AND user_id = $4
	`, models.UserStatusPaid, now, groupID, userID); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to record payment", err)
	}

	var unpaid int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM group_members
		WHERE group_id = $1 AND user_status = 'pending'
	`, groupID).Scan(&unpaid)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to count unpaid members", err)
	}

	if unpaid == 0 {
		// paid_group is one-way: a later refund or dispute never reverts
		// it automatically, only the admin override path can.
		if err := CheckGroupTransition(group.GroupStatus, models.GroupStatusPaidGroup); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE groups SET group_status = $1, all_paid_at = $2, updated_at = $2 WHERE id = $3
		`, models.GroupStatusPaidGroup, now, groupID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to mark group paid", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE group_members
			SET user_status = $1, activated_at = $2
			WHERE group_id = $3 AND user_status = $4
		`, models.UserStatusActive, now, groupID, models.UserStatusPaid); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to activate members", err)
		}

		s.logger.Info("group fully paid",
			zap.String("group_id", groupID.String()))
	}

	return nil
}

// RemoveMember kicks a member out. Only the owner or a platform admin may do
// it, the owner themselves can never be removed, and a full group reopens.
func (s *MembershipService) RemoveMember(ctx context.Context, groupID, targetID, actorID uuid.UUID, reason string, actorIsAdmin bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	group, err := lockGroupByID(ctx, tx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actorID && actorID != targetID && !actorIsAdmin {
		return apperrors.New(apperrors.KindPermission, "only the group owner or an admin can remove members")
	}
	if group.OwnerID == targetID {
		return apperrors.New(apperrors.KindPrecondition, "the owner must transfer ownership before leaving")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE group_members
		SET user_status = $1, removed_at = NOW(), removed_reason = $2
		WHERE group_id = $3 AND user_id = $4 AND user_status != $1
	`, models.UserStatusRemoved, reason, groupID, targetID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to remove member", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return apperrors.New(apperrors.KindNotFound, "membership not found")
	}

	if group.GroupStatus == models.GroupStatusFull {
		if _, err := tx.ExecContext(ctx, `
			UPDATE groups SET group_status = $1, updated_at = NOW() WHERE id = $2
		`, models.GroupStatusOpen, groupID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to reopen group", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to commit removal", err)
	}

	s.logger.Info("member removed",
		zap.String("group_id", groupID.String()),
		zap.String("user_id", targetID.String()),
		zap.String("reason", reason))
	return nil
}

// Leave is a self-removal: the member asks out, the owner cannot.
func (s *MembershipService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.RemoveMember(ctx, groupID, userID, userID, "left the group", false)
}

// TransferOwnership swaps the owner role to another settled member. Both
// role updates and the group's owner_id land in one transaction, so a
// concurrent reader never observes zero or two owners.
func (s *MembershipService) TransferOwnership(ctx context.Context, groupID, newOwnerID, actorID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	group, err := lockGroupByID(ctx, tx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actorID {
		return apperrors.New(apperrors.KindPermission, "only the group owner can transfer ownership")
	}
	if newOwnerID == actorID {
		return apperrors.New(apperrors.KindValidation, "cannot transfer ownership to yourself")
	}

	var newOwnerStatus models.UserStatus
	err = tx.QueryRowContext(ctx, `
		SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, newOwnerID).Scan(&newOwnerStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.New(apperrors.KindPrecondition, "new owner must be a member of the group")
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to load new owner membership", err)
	}
	if newOwnerStatus != models.UserStatusActive && newOwnerStatus != models.UserStatusPaid {
		return apperrors.New(apperrors.KindPrecondition, "new owner must be a settled member of the group")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE groups SET owner_id = $1, updated_at = NOW() WHERE id = $2
	`, newOwnerID, groupID); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to update group owner", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE group_members SET role = $1 WHERE group_id = $2 AND user_id = $3
	`, models.RoleOwner, groupID, newOwnerID); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to promote new owner", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE group_members SET role = $1 WHERE group_id = $2 AND user_id = $3
	`, models.RoleMember, groupID, actorID); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to demote old owner", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to commit ownership transfer", err)
	}

	s.logger.Info("ownership transferred",
		zap.String("group_id", groupID.String()),
		zap.String("from", actorID.String()),
		zap.String("to", newOwnerID.String()))
	return nil
}

// AddMemberByAdmin seats a user directly, skipping the invite code and the
// payment deadline. The hard capacity ceiling still applies.
func (s *MembershipService) AddMemberByAdmin(ctx context.Context, groupID, userID uuid.UUID, role models.MemberRole) error {
	if role != models.RoleAdmin && role != models.RoleMember {
		return apperrors.New(apperrors.KindValidation, "role must be admin or member")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	group, err := lockGroupByID(ctx, tx, groupID)
	if err != nil {
		return err
	}
	count, err := countRoster(ctx, tx, groupID)
	if err != nil {
		return err
	}
	if count >= group.MaxMembers {
		return apperrors.New(apperrors.KindCapacity, "group is full")
	}

	amount := MemberCharge(group.PricePerMember, group.AdminFee)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, user_id, role, user_status, payment_amount, price_per_member, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, uuid.New(), groupID, userID, role, models.UserStatusPending, amount, group.PricePerMember)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.New(apperrors.KindAlreadyMember, "user is already a member of this group")
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to add member", err)
	}

	if count+1 >= group.MaxMembers {
		if _, err := tx.ExecContext(ctx, `
			UPDATE groups SET group_status = $1, updated_at = NOW() WHERE id = $2
		`, models.GroupStatusFull, groupID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to mark group full", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to commit admin add", err)
	}
	return nil
}

// ExpireOverduePayments removes members whose payment deadline lapsed and
// reopens their groups. Run from the cron scheduler.
func (s *MembershipService) ExpireOverduePayments(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, user_id FROM group_members
		WHERE user_status = 'pending' AND payment_deadline IS NOT NULL AND payment_deadline < NOW()
	`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "failed to scan for overdue payments", err)
	}
	defer rows.Close()

	type overdue struct{ groupID, userID uuid.UUID }
	var batch []overdue
	for rows.Next() {
		var o overdue
		if err := rows.Scan(&o.groupID, &o.userID); err != nil {
			return 0, apperrors.Wrap(apperrors.KindInternal, "failed to scan overdue row", err)
		}
		batch = append(batch, o)
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "failed to iterate overdue rows", err)
	}

	removed := 0
	for _, o := range batch {
		if err := s.RemoveMember(ctx, o.groupID, o.userID, o.userID, "payment timeout", true); err != nil {
			s.logger.Warn("failed to expire overdue member",
				zap.String("group_id", o.groupID.String()),
				zap.String("user_id", o.userID.String()),
				zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
