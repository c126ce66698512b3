package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"salome-be/internal/apperrors"
	"salome-be/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBroadcastService(t *testing.T) (*BroadcastService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBroadcastService(db, zap.NewNop(), nil), mock
}

var broadcastLookupRe = regexp.QuoteMeta("FROM broadcasts WHERE id = $1")

func broadcastRow(id, adminID uuid.UUID, status models.BroadcastStatus, targetType string, targetIDs []string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "admin_id", "title", "message", "target_type", "target_group_ids",
		"priority", "status", "start_date", "end_date", "sent_at", "created_at", "updated_at",
	}).AddRow(id, adminID, "Maintenance window", "Salome is down tonight", targetType,
		pq.StringArray(targetIDs), 2, string(status), now, nil, nil, now, now)
}

func TestCreateBroadcastValidation(t *testing.T) {
	svc, _ := newBroadcastService(t)
	adminID := uuid.New()

	_, err := svc.Create(context.Background(), adminID, &models.CreateBroadcastRequest{
		Title:      "t",
		Message:    "m",
		TargetType: models.BroadcastTargetSelected,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err),
		"selected targeting needs group ids")

	_, err = svc.Create(context.Background(), adminID, &models.CreateBroadcastRequest{
		Title:      "t",
		Message:    "m",
		TargetType: models.BroadcastTargetAll,
		Priority:   9,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.Create(context.Background(), adminID, &models.CreateBroadcastRequest{
		Title:          "t",
		Message:        "m",
		TargetType:     models.BroadcastTargetSelected,
		TargetGroupIDs: []string{"not-a-uuid"},
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCreateBroadcastDraftNow(t *testing.T) {
	svc, mock := newBroadcastService(t)
	adminID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO broadcasts")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := svc.Create(context.Background(), adminID, &models.CreateBroadcastRequest{
		Title:      "Welcome",
		Message:    "New apps this week",
		TargetType: models.BroadcastTargetAll,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BroadcastStatusDraft, b.Status)
	assert.Equal(t, 1, b.Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBroadcastFutureStartIsScheduled(t *testing.T) {
	svc, mock := newBroadcastService(t)
	adminID := uuid.New()
	start := time.Now().Add(2 * time.Hour).Format(time.RFC3339)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO broadcasts")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := svc.Create(context.Background(), adminID, &models.CreateBroadcastRequest{
		Title:      "Heads up",
		Message:    "Prices change next month",
		TargetType: models.BroadcastTargetAll,
		StartDate:  &start,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BroadcastStatusScheduled, b.Status)
}

func TestSendRejectsAlreadySentBroadcast(t *testing.T) {
	svc, mock := newBroadcastService(t)
	id, adminID := uuid.New(), uuid.New()

	mock.ExpectQuery(broadcastLookupRe).WithArgs(id).
		WillReturnRows(broadcastRow(id, adminID, models.BroadcastStatusSent, models.BroadcastTargetAll, nil))

	_, err := svc.Send(context.Background(), id)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
}

func TestSendWritesNotificationsAndStampsSentAt(t *testing.T) {
	svc, mock := newBroadcastService(t)
	id, adminID := uuid.New(), uuid.New()
	u1, u2 := uuid.New(), uuid.New()

	mock.ExpectQuery(broadcastLookupRe).WithArgs(id).
		WillReturnRows(broadcastRow(id, adminID, models.BroadcastStatusDraft, models.BroadcastTargetAll, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM group_members")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(u1).AddRow(u2))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE broadcasts SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := svc.Send(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.BroadcastStatusSent, b.Status)
	require.NotNil(t, b.SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelSentBroadcastFails(t *testing.T) {
	svc, mock := newBroadcastService(t)
	id, adminID := uuid.New(), uuid.New()

	mock.ExpectQuery(broadcastLookupRe).WithArgs(id).
		WillReturnRows(broadcastRow(id, adminID, models.BroadcastStatusSent, models.BroadcastTargetAll, nil))

	err := svc.Cancel(context.Background(), id)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
}

func TestSendRaceLostToConcurrentSend(t *testing.T) {
	svc, mock := newBroadcastService(t)
	id, adminID := uuid.New(), uuid.New()
	u1 := uuid.New()

	mock.ExpectQuery(broadcastLookupRe).WithArgs(id).
		WillReturnRows(broadcastRow(id, adminID, models.BroadcastStatusDraft, models.BroadcastTargetAll, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM group_members")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(u1))
	mock.ExpectBegin()
	// Another sender committed first: the guarded update matches nothing.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE broadcasts SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.Send(context.Background(), id)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDraftBroadcast(t *testing.T) {
	svc, mock := newBroadcastService(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM broadcasts")).
		WithArgs(id, string(models.BroadcastStatusDraft), string(models.BroadcastStatusCancelled)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSentBroadcastFails(t *testing.T) {
	svc, mock := newBroadcastService(t)
	id, adminID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM broadcasts")).
		WithArgs(id, string(models.BroadcastStatusDraft), string(models.BroadcastStatusCancelled)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(broadcastLookupRe).WithArgs(id).
		WillReturnRows(broadcastRow(id, adminID, models.BroadcastStatusSent, models.BroadcastTargetAll, nil))

	err := svc.Delete(context.Background(), id)
	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
}
