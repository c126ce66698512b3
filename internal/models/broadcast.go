package models

import (
	"time"

	"github.com/google/uuid"
)

type BroadcastStatus string

const (
	BroadcastStatusDraft     BroadcastStatus = "draft"
	BroadcastStatusScheduled BroadcastStatus = "scheduled"
	BroadcastStatusSent      BroadcastStatus = "sent"
	BroadcastStatusCancelled BroadcastStatus = "cancelled"
)

const (
	BroadcastTargetAll      = "all"
	BroadcastTargetSelected = "selected"
)

type Broadcast struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	AdminID        uuid.UUID       `json:"admin_id" db:"admin_id"`
	Title          string          `json:"title" db:"title"`
	Message        string          `json:"message" db:"message"`
	TargetType     string          `json:"target_type" db:"target_type"`
	TargetGroupIDs []string        `json:"target_group_ids,omitempty" db:"target_group_ids"`
	Priority       int             `json:"priority" db:"priority"` // 1=normal, 2=high, 3=urgent
	Status         BroadcastStatus `json:"status" db:"status"`
	StartDate      time.Time       `json:"start_date" db:"start_date"`
	EndDate        *time.Time      `json:"end_date,omitempty" db:"end_date"`
	SentAt         *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateBroadcastRequest struct {
	Title          string   `json:"title" binding:"required"`
	Message        string   `json:"message" binding:"required"`
	TargetType     string   `json:"target_type" binding:"required,oneof=all selected"`
	TargetGroupIDs []string `json:"target_group_ids,omitempty"`
	Priority       int      `json:"priority,omitempty"`
	StartDate      *string  `json:"start_date,omitempty"`
	EndDate        *string  `json:"end_date,omitempty"`
}

type UpdateBroadcastRequest struct {
	Title          *string  `json:"title,omitempty"`
	Message        *string  `json:"message,omitempty"`
	TargetType     *string  `json:"target_type,omitempty"`
	TargetGroupIDs []string `json:"target_group_ids,omitempty"`
	Priority       *int     `json:"priority,omitempty"`
	StartDate      *string  `json:"start_date,omitempty"`
	EndDate        *string  `json:"end_date,omitempty"`
}

type BroadcastListResponse struct {
	Broadcasts []Broadcast `json:"broadcasts"`
	Total      int         `json:"total"`
}
