package services

import (
	"testing"

	"salome-be/internal/apperrors"
	"salome-be/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestGroupTransitions(t *testing.T) {
	allowed := []struct{ from, to models.GroupStatus }{
		{models.GroupStatusOpen, models.GroupStatusPrivate},
		{models.GroupStatusOpen, models.GroupStatusFull},
		{models.GroupStatusOpen, models.GroupStatusPaidGroup},
		{models.GroupStatusOpen, models.GroupStatusClosed},
		{models.GroupStatusPrivate, models.GroupStatusOpen},
		{models.GroupStatusPrivate, models.GroupStatusFull},
		{models.GroupStatusPrivate, models.GroupStatusPaidGroup},
		{models.GroupStatusPrivate, models.GroupStatusClosed},
		{models.GroupStatusFull, models.GroupStatusOpen},
		{models.GroupStatusFull, models.GroupStatusPaidGroup},
		{models.GroupStatusFull, models.GroupStatusClosed},
		{models.GroupStatusPaidGroup, models.GroupStatusClosed},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransitionGroup(tr.from, tr.to), "%s -> %s should be allowed", tr.from, tr.to)
		assert.NoError(t, CheckGroupTransition(tr.from, tr.to))
	}

	forbidden := []struct{ from, to models.GroupStatus }{
		{models.GroupStatusFull, models.GroupStatusPrivate},
		{models.GroupStatusPaidGroup, models.GroupStatusOpen},
		{models.GroupStatusPaidGroup, models.GroupStatusFull},
		{models.GroupStatusClosed, models.GroupStatusOpen},
		{models.GroupStatusClosed, models.GroupStatusPaidGroup},
		{models.GroupStatusOpen, models.GroupStatusOpen},
	}
	for _, tr := range forbidden {
		assert.False(t, CanTransitionGroup(tr.from, tr.to), "%s -> %s should be forbidden", tr.from, tr.to)
		err := CheckGroupTransition(tr.from, tr.to)
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	}
}

func TestClosedIsTerminal(t *testing.T) {
	for _, to := range []models.GroupStatus{
		models.GroupStatusOpen, models.GroupStatusPrivate, models.GroupStatusFull,
		models.GroupStatusPaidGroup, models.GroupStatusClosed,
	} {
		assert.False(t, CanTransitionGroup(models.GroupStatusClosed, to))
	}
}

func TestUserTransitions(t *testing.T) {
	assert.True(t, CanTransitionUser(models.UserStatusPending, models.UserStatusPaid))
	assert.True(t, CanTransitionUser(models.UserStatusPending, models.UserStatusRemoved))
	assert.True(t, CanTransitionUser(models.UserStatusPaid, models.UserStatusActive))
	assert.True(t, CanTransitionUser(models.UserStatusPaid, models.UserStatusRemoved))
	assert.True(t, CanTransitionUser(models.UserStatusActive, models.UserStatusRemoved))

	assert.False(t, CanTransitionUser(models.UserStatusPending, models.UserStatusActive),
		"a member cannot activate without paying first")
	assert.False(t, CanTransitionUser(models.UserStatusActive, models.UserStatusPending))
	assert.False(t, CanTransitionUser(models.UserStatusRemoved, models.UserStatusPending))
	assert.False(t, CanTransitionUser(models.UserStatusRemoved, models.UserStatusPaid))
}

func TestBroadcastTransitions(t *testing.T) {
	assert.NoError(t, CheckBroadcastTransition(models.BroadcastStatusDraft, models.BroadcastStatusScheduled))
	assert.NoError(t, CheckBroadcastTransition(models.BroadcastStatusDraft, models.BroadcastStatusSent))
	assert.NoError(t, CheckBroadcastTransition(models.BroadcastStatusDraft, models.BroadcastStatusCancelled))
	assert.NoError(t, CheckBroadcastTransition(models.BroadcastStatusScheduled, models.BroadcastStatusSent))
	assert.NoError(t, CheckBroadcastTransition(models.BroadcastStatusScheduled, models.BroadcastStatusCancelled))

	for _, from := range []models.BroadcastStatus{models.BroadcastStatusSent, models.BroadcastStatusCancelled} {
		for _, to := range []models.BroadcastStatus{
			models.BroadcastStatusDraft, models.BroadcastStatusScheduled,
			models.BroadcastStatusSent, models.BroadcastStatusCancelled,
		} {
			err := CheckBroadcastTransition(from, to)
			assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
		}
	}
}

func TestValidStatusHelpers(t *testing.T) {
	assert.True(t, ValidGroupStatus("paid_group"))
	assert.False(t, ValidGroupStatus("archived"))
	assert.True(t, ValidUserStatus("pending"))
	assert.False(t, ValidUserStatus("banned"))
}
