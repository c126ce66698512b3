package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"salome-be/internal/apperrors"
	"salome-be/internal/metrics"
	"salome-be/internal/middleware"
	"salome-be/internal/models"
	"salome-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GroupHandler struct {
	db         *sql.DB
	logger     *zap.Logger
	groups     *services.GroupService
	membership *services.MembershipService
}

func NewGroupHandler(db *sql.DB, logger *zap.Logger, groups *services.GroupService, membership *services.MembershipService) *GroupHandler {
	return &GroupHandler{db: db, logger: logger, groups: groups, membership: membership}
}

const groupColumns = `g.id, g.name, g.description, g.app_id, g.owner_id, g.invite_code, g.max_members,
	(SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id AND gm.user_status != 'removed') AS current_members,
	g.price_per_member, g.admin_fee, g.total_price, g.group_status, g.is_public, g.expires_at, g.all_paid_at, g.created_at, g.updated_at`

func scanGroup(row interface{ Scan(...any) error }) (models.Group, error) {
	var g models.Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.AppID, &g.OwnerID, &g.InviteCode,
		&g.MaxMembers, &g.CurrentMembers, &g.PricePerMember, &g.AdminFee, &g.TotalPrice,
		&g.GroupStatus, &g.IsPublic, &g.ExpiresAt, &g.AllPaidAt, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req models.GroupCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// ListMine returns the groups where the caller holds a live membership.
func (h *GroupHandler) ListMine(c *gin.Context) {
	userID := middleware.UserID(c)

	rows, err := h.db.Query(`
		SELECT `+groupColumns+`
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1 AND gm.user_status != 'removed'
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list groups"})
		return
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan group"})
			return
		}
		groups = append(groups, g)
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "total": len(groups)})
}

// ListPublic returns joinable public groups, newest first.
func (h *GroupHandler) ListPublic(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	appID := c.Query("app_id")

	where := "WHERE g.is_public = TRUE AND g.group_status = 'open'"
	args := []any{}
	if appID != "" {
		args = append(args, appID)
		where += " AND g.app_id = $" + strconv.Itoa(len(args))
	}

	var total int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM groups g "+where, args...).Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count groups"})
		return
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := h.db.Query(
		"SELECT "+groupColumns+" FROM groups g "+where+
			" ORDER BY g.created_at DESC"+
			" LIMIT $"+strconv.Itoa(len(args)-1)+" OFFSET $"+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list groups"})
		return
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan group"})
			return
		}
		groups = append(groups, g)
	}

	c.JSON(http.StatusOK, models.GroupListResponse{
		Groups:     groups,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	})
}

func (h *GroupHandler) Get(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	group, err := scanGroup(h.db.QueryRow("SELECT "+groupColumns+" FROM groups g WHERE g.id = $1", groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load group"})
		return
	}

	if app, err := scanApp(h.db.QueryRow("SELECT "+appColumns+" FROM apps WHERE id = $1", group.AppID)); err == nil {
		group.App = &app
	}
	var owner models.UserResponse
	err = h.db.QueryRow(`
		SELECT id, email, full_name, avatar_url, is_admin, status, created_at FROM users WHERE id = $1
	`, group.OwnerID).Scan(&owner.ID, &owner.Email, &owner.FullName, &owner.AvatarURL,
		&owner.IsAdmin, &owner.Status, &owner.CreatedAt)
	if err == nil {
		group.Owner = &owner
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// Members lists the group roster with user details.
func (h *GroupHandler) Members(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	rows, err := h.db.Query(`
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.user_status, gm.payment_amount, gm.price_per_member,
		       gm.joined_at, gm.payment_deadline, gm.paid_at, gm.activated_at, gm.removed_at, gm.removed_reason,
		       u.id, u.email, u.full_name, u.avatar_url, u.is_admin, u.status, u.created_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1 AND gm.user_status != 'removed'
		ORDER BY gm.joined_at ASC
	`, groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
		return
	}
	defer rows.Close()

	members := []models.GroupMember{}
	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.UserStatus, &m.PaymentAmount,
			&m.PricePerMember, &m.JoinedAt, &m.PaymentDeadline, &m.PaidAt, &m.ActivatedAt,
			&m.RemovedAt, &m.RemovedReason,
			&m.User.ID, &m.User.Email, &m.User.FullName, &m.User.AvatarURL,
			&m.User.IsAdmin, &m.User.Status, &m.User.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan member"})
			return
		}
		members = append(members, m)
	}
	c.JSON(http.StatusOK, gin.H{"members": members, "total": len(members)})
}

func (h *GroupHandler) Join(c *gin.Context) {
	var req models.GroupJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.membership.Join(c.Request.Context(), req.InviteCode, middleware.UserID(c))
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindCapacity:
			metrics.GroupJoins.WithLabelValues("full").Inc()
		default:
			metrics.GroupJoins.WithLabelValues("rejected").Inc()
		}
		respondError(c, err)
		return
	}
	metrics.GroupJoins.WithLabelValues("joined").Inc()
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

func (h *GroupHandler) Leave(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	if err := h.membership.Leave(c.Request.Context(), groupID, middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left the group"})
}

func (h *GroupHandler) Update(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	var req models.GroupUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.groups.EditGroup(c.Request.Context(), groupID, middleware.UserID(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group updated"})
}

// UpdateStatus lets the owner move the group along its lifecycle, e.g.
// toggling open and private or closing it.
func (h *GroupHandler) UpdateStatus(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !services.ValidGroupStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown group status"})
		return
	}

	if err := h.groups.UpdateGroupStatus(c.Request.Context(), groupID, middleware.UserID(c), models.GroupStatus(req.Status)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group status updated"})
}

func (h *GroupHandler) TransferOwnership(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	var req models.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newOwnerID, err := uuid.Parse(req.NewOwnerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid new owner id"})
		return
	}

	if err := h.membership.TransferOwnership(c.Request.Context(), groupID, newOwnerID, middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ownership transferred"})
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var req models.RemoveMemberRequest
	_ = c.ShouldBindJSON(&req)
	reason := req.Reason
	if reason == "" {
		reason = "removed by owner"
	}

	if err := h.membership.RemoveMember(c.Request.Context(), groupID, targetID, middleware.UserID(c), reason, false); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

func (h *GroupHandler) Delete(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	if err := h.groups.DeleteGroup(c.Request.Context(), groupID, middleware.UserID(c), false); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}
