package services

import (
	"salome-be/internal/apperrors"
	"salome-be/internal/models"
)

// Transition tables for the two lifecycle machines. Every status write in
// this package goes through one of these checks; an empty entry is a terminal
// state.

var groupTransitions = map[models.GroupStatus][]models.GroupStatus{
	models.GroupStatusOpen:      {models.GroupStatusPrivate, models.GroupStatusFull, models.GroupStatusPaidGroup, models.GroupStatusClosed},
	models.GroupStatusPrivate:   {models.GroupStatusOpen, models.GroupStatusFull, models.GroupStatusPaidGroup, models.GroupStatusClosed},
	models.GroupStatusFull:      {models.GroupStatusOpen, models.GroupStatusPaidGroup, models.GroupStatusClosed},
	models.GroupStatusPaidGroup: {models.GroupStatusClosed},
	models.GroupStatusClosed:    {},
}

var userTransitions = map[models.UserStatus][]models.UserStatus{
	models.UserStatusPending: {models.UserStatusPaid, models.UserStatusRemoved},
	models.UserStatusPaid:    {models.UserStatusActive, models.UserStatusRemoved},
	models.UserStatusActive:  {models.UserStatusRemoved},
	models.UserStatusRemoved: {},
}

func CanTransitionGroup(from, to models.GroupStatus) bool {
	for _, allowed := range groupTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func CanTransitionUser(from, to models.UserStatus) bool {
	for _, allowed := range userTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckGroupTransition returns a typed error when the move is illegal, so
// callers can surface it directly.
func CheckGroupTransition(from, to models.GroupStatus) error {
	if !CanTransitionGroup(from, to) {
		return apperrors.Newf(apperrors.KindInvalidTransition,
			"group status cannot change from %s to %s", from, to)
	}
	return nil
}

func CheckUserTransition(from, to models.UserStatus) error {
	if !CanTransitionUser(from, to) {
		return apperrors.Newf(apperrors.KindInvalidTransition,
			"member status cannot change from %s to %s", from, to)
	}
	return nil
}

func ValidGroupStatus(s string) bool {
	switch models.GroupStatus(s) {
	case models.GroupStatusOpen, models.GroupStatusPrivate, models.GroupStatusFull,
		models.GroupStatusPaidGroup, models.GroupStatusClosed:
		return true
	}
	return false
}

func ValidUserStatus(s string) bool {
	switch models.UserStatus(s) {
	case models.UserStatusPending, models.UserStatusPaid,
		models.UserStatusActive, models.UserStatusRemoved:
		return true
	}
	return false
}
