package services

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"salome-be/internal/apperrors"
	"salome-be/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMembershipService(t *testing.T) (*MembershipService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMembershipService(db, zap.NewNop()), mock
}

var (
	lockByCodeRe  = regexp.QuoteMeta("FROM groups WHERE invite_code = $1 FOR UPDATE")
	lockByIDRe    = regexp.QuoteMeta("FROM groups WHERE id = $1 FOR UPDATE")
	countRosterRe = regexp.QuoteMeta("SELECT COUNT(*) FROM group_members")
	memberRowRe   = regexp.QuoteMeta("SELECT id, user_status FROM group_members WHERE group_id = $1 AND user_id = $2")
)

func groupRows(id, owner uuid.UUID, maxMembers int, status models.GroupStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "max_members", "price_per_member", "admin_fee", "group_status"}).
		AddRow(id, owner, maxMembers, int64(46500), int64(3500), string(status))
}

func TestJoinAdmitsPendingMember(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByCodeRe).WithArgs("AB12CD34").
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusOpen))
	mock.ExpectQuery(countRosterRe).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(memberRowRe).WithArgs(groupID, userID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	member, err := svc.Join(context.Background(), "AB12CD34", userID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPending, member.UserStatus)
	assert.Equal(t, int64(50000), member.PaymentAmount)
	assert.NotNil(t, member.PaymentDeadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinLastSlotMarksGroupFull(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByCodeRe).WithArgs("AB12CD34").
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusOpen))
	mock.ExpectQuery(countRosterRe).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(memberRowRe).WithArgs(groupID, userID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET group_status")).
		WithArgs(models.GroupStatusFull, groupID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := svc.Join(context.Background(), "AB12CD34", userID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinRejectsFullGroup(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByCodeRe).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusFull))
	mock.ExpectRollback()

	_, err := svc.Join(context.Background(), "AB12CD34", uuid.New())
	assert.Equal(t, apperrors.KindCapacity, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinRejectsAtCapacityUnderLock(t *testing.T) {
	// The status flip to full may still be in flight; the roster count under
	// the row lock is the authority.
	svc, mock := newMembershipService(t)
	groupID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByCodeRe).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusOpen))
	mock.ExpectQuery(countRosterRe).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	_, err := svc.Join(context.Background(), "AB12CD34", uuid.New())
	assert.Equal(t, apperrors.KindCapacity, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinRejectsPaidGroup(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByCodeRe).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusPaidGroup))
	mock.ExpectRollback()

	_, err := svc.Join(context.Background(), "AB12CD34", uuid.New())
	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
}

func TestJoinRejectsExistingMember(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByCodeRe).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusOpen))
	mock.ExpectQuery(countRosterRe).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(memberRowRe).WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_status"}).AddRow(uuid.New(), "pending"))
	mock.ExpectRollback()

	_, err := svc.Join(context.Background(), "AB12CD34", userID)
	assert.Equal(t, apperrors.KindAlreadyMember, apperrors.KindOf(err))
}

func TestJoinRevivesRemovedMember(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, userID := uuid.New(), uuid.New(), uuid.New()
	oldRowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByCodeRe).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusOpen))
	mock.ExpectQuery(countRosterRe).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(memberRowRe).WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_status"}).AddRow(oldRowID, "removed"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	member, err := svc.Join(context.Background(), "AB12CD34", userID)
	require.NoError(t, err)
	assert.Equal(t, oldRowID, member.ID, "a rejoin reuses the old ledger row")
	assert.Equal(t, models.UserStatusPending, member.UserStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentIsIdempotent(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, userID := uuid.New(), uuid.New(), uuid.New()

	memberStatusRe := regexp.QuoteMeta("SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2")

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusFull))
	mock.ExpectQuery(memberStatusRe).WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_status"}).AddRow("paid"))
	mock.ExpectCommit()

	require.NoError(t, svc.RecordPayment(context.Background(), groupID, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentPromotesGroupWhenLastMemberSettles(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, userID := uuid.New(), uuid.New(), uuid.New()

	memberStatusRe := regexp.QuoteMeta("SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2")

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusFull))
	mock.ExpectQuery(memberStatusRe).WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("user_status = 'pending'")).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET group_status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, svc.RecordPayment(context.Background(), groupID, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentLeavesGroupWhileOthersOwe(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, userID := uuid.New(), uuid.New(), uuid.New()

	memberStatusRe := regexp.QuoteMeta("SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2")

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusFull))
	mock.ExpectQuery(memberStatusRe).WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("user_status = 'pending'")).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	require.NoError(t, svc.RecordPayment(context.Background(), groupID, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferOwnershipSwapsRolesAtomically(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, newOwnerID := uuid.New(), uuid.New(), uuid.New()

	memberStatusRe := regexp.QuoteMeta("SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2")

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusPaidGroup))
	mock.ExpectQuery(memberStatusRe).WithArgs(groupID, newOwnerID).
		WillReturnRows(sqlmock.NewRows([]string{"user_status"}).AddRow("active"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET owner_id")).
		WithArgs(newOwnerID, groupID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET role")).
		WithArgs(models.RoleOwner, groupID, newOwnerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET role")).
		WithArgs(models.RoleMember, groupID, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.TransferOwnership(context.Background(), groupID, newOwnerID, ownerID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferOwnershipRequiresOwner(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusPaidGroup))
	mock.ExpectRollback()

	err := svc.TransferOwnership(context.Background(), groupID, uuid.New(), uuid.New())
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))
}

func TestTransferOwnershipRequiresSettledTarget(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, newOwnerID := uuid.New(), uuid.New(), uuid.New()

	memberStatusRe := regexp.QuoteMeta("SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2")

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusFull))
	mock.ExpectQuery(memberStatusRe).WithArgs(groupID, newOwnerID).
		WillReturnRows(sqlmock.NewRows([]string{"user_status"}).AddRow("pending"))
	mock.ExpectRollback()

	err := svc.TransferOwnership(context.Background(), groupID, newOwnerID, ownerID)
	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
}

func TestRemoveMemberReopensFullGroup(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID, targetID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusFull))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET group_status")).
		WithArgs(models.GroupStatusOpen, groupID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.RemoveMember(context.Background(), groupID, targetID, ownerID, "missed payment", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveMemberForbidsRemovingOwner(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusOpen))
	mock.ExpectRollback()

	err := svc.RemoveMember(context.Background(), groupID, ownerID, ownerID, "leaving", false)
	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
}

func TestRemoveMemberRequiresOwnerOrAdmin(t *testing.T) {
	svc, mock := newMembershipService(t)
	groupID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusOpen))
	mock.ExpectRollback()

	err := svc.RemoveMember(context.Background(), groupID, uuid.New(), uuid.New(), "kick", false)
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))
}
