package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"salome-be/internal/middleware"
	"salome-be/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountCredentialsHandler stores the identity a user wants registered on
// an app's shared account. One row per (user, app), upserted.
type AccountCredentialsHandler struct {
	db *sql.DB
}

func NewAccountCredentialsHandler(db *sql.DB) *AccountCredentialsHandler {
	return &AccountCredentialsHandler{db: db}
}

func (h *AccountCredentialsHandler) Upsert(c *gin.Context) {
	userID := middleware.UserID(c)

	var req models.AccountCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var exists bool
	if err := h.db.QueryRow("SELECT EXISTS(SELECT 1 FROM apps WHERE id = $1)", req.AppID).Scan(&exists); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check app"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "App not found"})
		return
	}

	cred := models.AccountCredentials{
		UserID:   userID,
		AppID:    req.AppID,
		Username: req.Username,
		Email:    req.Email,
	}
	err := h.db.QueryRow(`
		INSERT INTO account_credentials (id, user_id, app_id, username, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, app_id)
		DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, uuid.New(), userID, req.AppID, req.Username, req.Email).Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"credentials": cred})
}

func (h *AccountCredentialsHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)
	appID := c.Param("appId")

	var cred models.AccountCredentials
	err := h.db.QueryRow(`
		SELECT id, user_id, app_id, username, email, created_at, updated_at
		FROM account_credentials WHERE user_id = $1 AND app_id = $2
	`, userID, appID).Scan(&cred.ID, &cred.UserID, &cred.AppID, &cred.Username, &cred.Email,
		&cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credentials not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": cred})
}

func (h *AccountCredentialsHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	rows, err := h.db.Query(`
		SELECT ac.id, ac.user_id, ac.app_id, ac.username, ac.email, ac.created_at, ac.updated_at
		FROM account_credentials ac WHERE ac.user_id = $1 ORDER BY ac.updated_at DESC
	`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list credentials"})
		return
	}
	defer rows.Close()

	creds := []models.AccountCredentials{}
	for rows.Next() {
		var cred models.AccountCredentials
		if err := rows.Scan(&cred.ID, &cred.UserID, &cred.AppID, &cred.Username, &cred.Email,
			&cred.CreatedAt, &cred.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan credentials"})
			return
		}
		creds = append(creds, cred)
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds, "total": len(creds)})
}

// ListForGroup returns the credentials every current member registered for
// the group's app, for the admin subscription flow.
func (h *AccountCredentialsHandler) ListForGroup(c *gin.Context) {
	groupID := c.Param("id")

	rows, err := h.db.Query(`
		SELECT ac.id, ac.user_id, ac.app_id, ac.username, ac.email, ac.created_at, ac.updated_at
		FROM account_credentials ac
		JOIN groups g ON g.app_id = ac.app_id
		JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = ac.user_id
		WHERE g.id = $1 AND gm.user_status != 'removed'
		ORDER BY ac.updated_at DESC
	`, groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list credentials"})
		return
	}
	defer rows.Close()

	creds := []models.AccountCredentials{}
	for rows.Next() {
		var cred models.AccountCredentials
		if err := rows.Scan(&cred.ID, &cred.UserID, &cred.AppID, &cred.Username, &cred.Email,
			&cred.CreatedAt, &cred.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan credentials"})
			return
		}
		creds = append(creds, cred)
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds, "total": len(creds)})
}
