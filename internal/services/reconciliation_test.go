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

func newReconciliationService(t *testing.T) (*ReconciliationService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	membership := NewMembershipService(db, zap.NewNop())
	return NewReconciliationService(db, zap.NewNop(), nil, membership, nil), mock
}

var paymentLookupRe = regexp.QuoteMeta("FROM payments WHERE provider_order_id = $1")

func paymentRow(id, groupID, userID uuid.UUID, amount int64, status models.PaymentStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "group_id", "user_id", "amount", "status"}).
		AddRow(id, groupID, userID, amount, string(status))
}

func settlementNotif(orderID string, amount string) *models.PaymentNotification {
	return &models.PaymentNotification{
		OrderID:           orderID,
		TransactionID:     "mid-" + uuid.New().String(),
		TransactionStatus: "settlement",
		PaymentType:       "bca_va",
		GrossAmount:       amount,
	}
}

func TestHandleNotificationSettlesAndRecordsPayment(t *testing.T) {
	svc, mock := newReconciliationService(t)
	paymentID, groupID, userID, ownerID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(paymentLookupRe).WithArgs("SLM-1").
		WillReturnRows(paymentRow(paymentID, groupID, userID, 50000, models.PaymentStatusPending))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// recordPaymentTx inside the same transaction
	mock.ExpectQuery(lockByIDRe).WithArgs(groupID).
		WillReturnRows(groupRows(groupID, ownerID, 4, models.GroupStatusFull))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_status FROM group_members")).
		WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("user_status = 'pending'")).WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	err := svc.HandleNotification(context.Background(), settlementNotif("SLM-1", "50000.00"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleNotificationDuplicateDeliveryIsNoOp(t *testing.T) {
	svc, mock := newReconciliationService(t)
	paymentID, groupID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(paymentLookupRe).WithArgs("SLM-2").
		WillReturnRows(paymentRow(paymentID, groupID, userID, 50000, models.PaymentStatusPaid))

	err := svc.HandleNotification(context.Background(), settlementNotif("SLM-2", "50000.00"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleNotificationRaceLostToConcurrentDelivery(t *testing.T) {
	// The payment read pending but another delivery settled it first; the
	// guarded UPDATE affects zero rows and the whole thing rolls back.
	svc, mock := newReconciliationService(t)
	paymentID, groupID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(paymentLookupRe).WithArgs("SLM-3").
		WillReturnRows(paymentRow(paymentID, groupID, userID, 50000, models.PaymentStatusPending))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := svc.HandleNotification(context.Background(), settlementNotif("SLM-3", "50000.00"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleNotificationAmountMismatchParksPayment(t *testing.T) {
	svc, mock := newReconciliationService(t)
	paymentID, groupID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(paymentLookupRe).WithArgs("SLM-4").
		WillReturnRows(paymentRow(paymentID, groupID, userID, 50000, models.PaymentStatusPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.HandleNotification(context.Background(), settlementNotif("SLM-4", "45000.00"))
	assert.Equal(t, apperrors.KindMismatch, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleNotificationUnknownOrder(t *testing.T) {
	svc, mock := newReconciliationService(t)

	mock.ExpectQuery(paymentLookupRe).WithArgs("SLM-missing").
		WillReturnError(sql.ErrNoRows)

	err := svc.HandleNotification(context.Background(), settlementNotif("SLM-missing", "50000.00"))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestHandleNotificationExpiredCancelsPayment(t *testing.T) {
	svc, mock := newReconciliationService(t)
	paymentID, groupID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(paymentLookupRe).WithArgs("SLM-5").
		WillReturnRows(paymentRow(paymentID, groupID, userID, 50000, models.PaymentStatusPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	notif := settlementNotif("SLM-5", "50000.00")
	notif.TransactionStatus = "expire"
	require.NoError(t, svc.HandleNotification(context.Background(), notif))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseGrossAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"50000.00", 50000, false},
		{"50000", 50000, false},
		{"50000.000", 50000, false},
		{"50000.50", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseGrossAmount(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
