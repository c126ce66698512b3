package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupStatus is the lifecycle stage of a patungan group. Transitions are
// validated in services.StateMachine; handlers never write raw strings.
type GroupStatus string

const (
	GroupStatusOpen      GroupStatus = "open"
	GroupStatusPrivate   GroupStatus = "private"
	GroupStatusFull      GroupStatus = "full"
	GroupStatusPaidGroup GroupStatus = "paid_group"
	GroupStatusClosed    GroupStatus = "closed"
)

// UserStatus tracks a member's payment lifecycle inside one group.
type UserStatus string

const (
	UserStatusPending UserStatus = "pending"
	UserStatusPaid    UserStatus = "paid"
	UserStatusActive  UserStatus = "active"
	UserStatusRemoved UserStatus = "removed"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type Group struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Name           string        `json:"name" db:"name"`
	Description    *string       `json:"description" db:"description"`
	AppID          string        `json:"app_id" db:"app_id"`
	OwnerID        uuid.UUID     `json:"owner_id" db:"owner_id"`
	InviteCode     string        `json:"invite_code" db:"invite_code"`
	MaxMembers     int           `json:"max_members" db:"max_members"`
	CurrentMembers int           `json:"current_members" db:"current_members"`
	PricePerMember int64         `json:"price_per_member" db:"price_per_member"`
	AdminFee       int64         `json:"admin_fee" db:"admin_fee"`
	TotalPrice     int64         `json:"total_price" db:"total_price"`
	GroupStatus    GroupStatus   `json:"group_status" db:"group_status"`
	IsPublic       bool          `json:"is_public" db:"is_public"`
	ExpiresAt      *time.Time    `json:"expires_at" db:"expires_at"`
	AllPaidAt      *time.Time    `json:"all_paid_at" db:"all_paid_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
	Members        []GroupMember `json:"members,omitempty"`
	App            *App          `json:"app,omitempty"`
	Owner          *UserResponse `json:"owner,omitempty"`
}

type GroupMember struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	GroupID         uuid.UUID    `json:"group_id" db:"group_id"`
	UserID          uuid.UUID    `json:"user_id" db:"user_id"`
	Role            MemberRole   `json:"role" db:"role"`
	UserStatus      UserStatus   `json:"user_status" db:"user_status"`
	PaymentAmount   int64        `json:"payment_amount" db:"payment_amount"`
	PricePerMember  int64        `json:"price_per_member" db:"price_per_member"`
	JoinedAt        time.Time    `json:"joined_at" db:"joined_at"`
	PaymentDeadline *time.Time   `json:"payment_deadline" db:"payment_deadline"`
	PaidAt          *time.Time   `json:"paid_at" db:"paid_at"`
	ActivatedAt     *time.Time   `json:"activated_at" db:"activated_at"`
	RemovedAt       *time.Time   `json:"removed_at" db:"removed_at"`
	RemovedReason   *string      `json:"removed_reason" db:"removed_reason"`
	User            UserResponse `json:"user,omitempty"`
}

type GroupCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	AppID       string `json:"app_id" binding:"required"`
	MaxMembers  int    `json:"max_members" binding:"required,min=2,max=50"`
	IsPublic    bool   `json:"is_public"`
}

type GroupUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	// MaxMembers is accepted so the handler can reject it with a proper
	// error. Per-member pricing is frozen at creation, so the roster size
	// can never change afterwards.
	MaxMembers *int `json:"max_members,omitempty"`
}

type GroupJoinRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id" binding:"required"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

type RemoveMemberRequest struct {
	Reason string `json:"reason"`
}

type GroupListResponse struct {
	Groups     []Group `json:"groups"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}

// AdminUserStatusRequest is the admin override for a member's status.
type AdminUserStatusRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	GroupID       string `json:"group_id" binding:"required"`
	NewStatus     string `json:"new_status" binding:"required"`
	RemovedReason string `json:"removed_reason,omitempty"`
}

type AdminGroupStatusRequest struct {
	GroupID   string `json:"group_id" binding:"required"`
	NewStatus string `json:"new_status" binding:"required"`
}
