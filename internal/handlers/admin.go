package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"salome-be/internal/models"
	"salome-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AdminHandler is the operator surface: catalog management, account
// suspension, member status overrides and the mismatched-payment queue.
// Overrides bypass the owner checks but still respect the state machines.
type AdminHandler struct {
	db             *sql.DB
	logger         *zap.Logger
	membership     *services.MembershipService
	reconciliation *services.ReconciliationService
}

func NewAdminHandler(db *sql.DB, logger *zap.Logger, membership *services.MembershipService, reconciliation *services.ReconciliationService) *AdminHandler {
	return &AdminHandler{db: db, logger: logger, membership: membership, reconciliation: reconciliation}
}

func (h *AdminHandler) CreateApp(c *gin.Context) {
	var req models.AppCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.db.Exec(`
		INSERT INTO apps (id, name, description, category, icon_url, website_url, base_price, max_group_members, admin_fee_percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.ID, req.Name, req.Description, req.Category, req.IconURL, req.WebsiteURL,
		req.BasePrice, req.MaxGroupMembers, req.AdminFeePercentage)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "App id already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create app"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "App created", "id": req.ID})
}

// UpdateApp patches catalog fields. Existing groups keep the prices they
// froze at creation.
func (h *AdminHandler) UpdateApp(c *gin.Context) {
	appID := c.Param("id")

	var req models.AppUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BasePrice != nil && *req.BasePrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "base_price must be positive"})
		return
	}
	if req.MaxGroupMembers != nil && *req.MaxGroupMembers < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_group_members must be at least 2"})
		return
	}
	if req.AdminFeePercentage != nil && (*req.AdminFeePercentage < 0 || *req.AdminFeePercentage > 100) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admin_fee_percentage must be between 0 and 100"})
		return
	}

	res, err := h.db.Exec(`
		UPDATE apps SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			category = COALESCE($3, category),
			icon_url = COALESCE($4, icon_url),
			website_url = COALESCE($5, website_url),
			base_price = COALESCE($6, base_price),
			max_group_members = COALESCE($7, max_group_members),
			admin_fee_percentage = COALESCE($8, admin_fee_percentage),
			is_popular = COALESCE($9, is_popular),
			updated_at = NOW()
		WHERE id = $10
	`, req.Name, req.Description, req.Category, req.IconURL, req.WebsiteURL,
		req.BasePrice, req.MaxGroupMembers, req.AdminFeePercentage, req.IsPopular, appID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update app"})
		return
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "App not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "App updated"})
}

// SetAppActive toggles catalog visibility. Deactivation stops new groups;
// existing groups run to completion.
func (h *AdminHandler) SetAppActive(c *gin.Context) {
	appID := c.Param("id")

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.db.Exec(`UPDATE apps SET is_active = $1, updated_at = NOW() WHERE id = $2`, *req.IsActive, appID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update app"})
		return
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "App not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "App updated"})
}

// DeleteApp removes a catalog entry. Apps with groups bound to them cannot
// be deleted, only deactivated, so existing groups keep their frozen pricing.
func (h *AdminHandler) DeleteApp(c *gin.Context) {
	appID := c.Param("id")

	var referenced bool
	if err := h.db.QueryRow("SELECT EXISTS(SELECT 1 FROM groups WHERE app_id = $1)", appID).Scan(&referenced); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check app usage"})
		return
	}
	if referenced {
		c.JSON(http.StatusConflict, gin.H{"error": "App has groups bound to it, deactivate it instead"})
		return
	}

	res, err := h.db.Exec("DELETE FROM apps WHERE id = $1", appID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete app"})
		return
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "App not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "App deleted"})
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
		return
	}

	rows, err := h.db.Query(`
		SELECT id, email, full_name, avatar_url, is_admin, status, balance, total_spent, created_at
		FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	defer rows.Close()

	users := []models.UserResponse{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &u.IsAdmin, &u.Status,
			&u.Balance, &u.TotalSpent, &u.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan user"})
			return
		}
		users = append(users, u.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": total, "page": page, "page_size": pageSize})
}

// SetUserAccountStatus suspends or restores a platform account.
func (h *AdminHandler) SetUserAccountStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=active suspended deleted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.db.Exec(`UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2`, req.Status, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	h.logger.Info("user account status changed",
		zap.String("user_id", userID.String()),
		zap.String("status", req.Status))
	c.JSON(http.StatusOK, gin.H{"message": "User status updated"})
}

func (h *AdminHandler) ListGroups(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	status := c.Query("status")

	where := ""
	args := []any{}
	if status != "" {
		if !services.ValidGroupStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown group status"})
			return
		}
		args = append(args, status)
		where = " WHERE g.group_status = $1"
	}

	var total int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM groups g"+where, args...).Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count groups"})
		return
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := h.db.Query(
		"SELECT "+groupColumns+" FROM groups g"+where+
			" ORDER BY g.created_at DESC LIMIT $"+strconv.Itoa(len(args)-1)+" OFFSET $"+strconv.Itoa(len(args)),
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

// SetGroupStatus is the operator override for a group's lifecycle, e.g.
// reverting a paid_group after a refund. It still validates the transition
// table.
func (h *AdminHandler) SetGroupStatus(c *gin.Context) {
	var req models.AdminGroupStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}
	if !services.ValidGroupStatus(req.NewStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown group status"})
		return
	}

	var current models.GroupStatus
	err = h.db.QueryRow("SELECT group_status FROM groups WHERE id = $1", groupID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load group"})
		return
	}

	target := models.GroupStatus(req.NewStatus)
	// The override may also unwind paid_group, which the normal table forbids.
	if !services.CanTransitionGroup(current, target) && !(current == models.GroupStatusPaidGroup && target == models.GroupStatusOpen) {
		respondError(c, services.CheckGroupTransition(current, target))
		return
	}

	if _, err := h.db.Exec(`UPDATE groups SET group_status = $1, updated_at = NOW() WHERE id = $2`, target, groupID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update group"})
		return
	}
	h.logger.Info("admin group status override",
		zap.String("group_id", groupID.String()),
		zap.String("from", string(current)),
		zap.String("to", string(target)))
	c.JSON(http.StatusOK, gin.H{"message": "Group status updated"})
}

// SetMemberStatus is the operator override for one membership, validated
// against the member state machine.
func (h *AdminHandler) SetMemberStatus(c *gin.Context) {
	var req models.AdminUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	if !services.ValidUserStatus(req.NewStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown member status"})
		return
	}
	target := models.UserStatus(req.NewStatus)

	switch target {
	case models.UserStatusRemoved:
		reason := req.RemovedReason
		if reason == "" {
			reason = "removed by admin"
		}
		adminID := uuid.Nil
		if id, exists := c.Get("user_id"); exists {
			adminID, _ = id.(uuid.UUID)
		}
		if err := h.membership.RemoveMember(c.Request.Context(), groupID, userID, adminID, reason, true); err != nil {
			respondError(c, err)
			return
		}
	case models.UserStatusPaid:
		if err := h.membership.RecordPayment(c.Request.Context(), groupID, userID); err != nil {
			respondError(c, err)
			return
		}
	default:
		var current models.UserStatus
		err := h.db.QueryRow(`
			SELECT user_status FROM group_members WHERE group_id = $1 AND user_id = $2
		`, groupID, userID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load membership"})
			return
		}
		if err := services.CheckUserTransition(current, target); err != nil {
			respondError(c, err)
			return
		}
		if _, err := h.db.Exec(`
			UPDATE group_members SET user_status = $1 WHERE group_id = $2 AND user_id = $3
		`, target, groupID, userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update membership"})
			return
		}
	}

	h.logger.Info("admin member status override",
		zap.String("group_id", groupID.String()),
		zap.String("user_id", userID.String()),
		zap.String("to", req.NewStatus))
	c.JSON(http.StatusOK, gin.H{"message": "Member status updated"})
}

// AddMember seats a user directly, bypassing the invite flow.
func (h *AdminHandler) AddMember(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	role := models.MemberRole(req.Role)
	if role == "" {
		role = models.RoleMember
	}

	if err := h.membership.AddMemberByAdmin(c.Request.Context(), groupID, userID, role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Member added"})
}

// MismatchedPayments lists payments parked for review after an amount
// mismatch.
func (h *AdminHandler) MismatchedPayments(c *gin.Context) {
	payments, err := h.reconciliation.ListMismatched(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "total": len(payments)})
}
