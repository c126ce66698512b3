package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"salome-be/internal/models"
	"salome-be/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppHandler serves the catalog of subscribable apps. Listing filters to
// active entries for regular users; admins see everything.
type AppHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAppHandler(db *sql.DB, logger *zap.Logger) *AppHandler {
	return &AppHandler{db: db, logger: logger}
}

const appColumns = `id, name, description, category, icon_url, website_url, base_price, max_group_members, admin_fee_percentage, is_popular, is_active, created_at, updated_at`

func scanApp(row interface{ Scan(...any) error }) (models.App, error) {
	var a models.App
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.IconURL, &a.WebsiteURL,
		&a.BasePrice, &a.MaxGroupMembers, &a.AdminFeePercentage, &a.IsPopular, &a.IsActive,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (h *AppHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	category := c.Query("category")
	search := c.Query("q")
	includeInactive := c.Query("include_inactive") == "true"

	where := "WHERE 1=1"
	args := []any{}
	if !includeInactive {
		where += " AND is_active = TRUE"
	}
	if category != "" {
		args = append(args, category)
		where += " AND category = $" + strconv.Itoa(len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += " AND name ILIKE $" + strconv.Itoa(len(args))
	}

	var stats models.AppListStats
	err := h.db.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active), COUNT(*) FILTER (WHERE NOT is_active)
		FROM apps
	`).Scan(&stats.Total, &stats.Active, &stats.Inactive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load app stats"})
		return
	}

	var total int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM apps "+where, args...).Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count apps"})
		return
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := h.db.Query(
		"SELECT "+appColumns+" FROM apps "+where+
			" ORDER BY is_popular DESC, name ASC"+
			" LIMIT $"+strconv.Itoa(len(args)-1)+" OFFSET $"+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list apps"})
		return
	}
	defer rows.Close()

	apps := []models.App{}
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan app"})
			return
		}
		apps = append(apps, a)
	}

	totalPages := (total + pageSize - 1) / pageSize
	c.JSON(http.StatusOK, models.AppListResponse{
		Data:       apps,
		Stats:      stats,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func (h *AppHandler) Get(c *gin.Context) {
	appID := c.Param("id")
	app, err := scanApp(h.db.QueryRow("SELECT "+appColumns+" FROM apps WHERE id = $1", appID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "App not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load app"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"app": app})
}

func (h *AppHandler) Categories(c *gin.Context) {
	rows, err := h.db.Query(`
		SELECT category, COUNT(*) FROM apps
		WHERE is_active = true
		GROUP BY category ORDER BY category
	`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories"})
		return
	}
	defer rows.Close()

	type categoryCount struct {
		Category string `json:"category"`
		AppCount int    `json:"app_count"`
	}
	categories := []categoryCount{}
	for rows.Next() {
		var cc categoryCount
		if err := rows.Scan(&cc.Category, &cc.AppCount); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan categories"})
			return
		}
		categories = append(categories, cc)
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// PricePreview shows what each member would pay for a given group size.
func (h *AppHandler) PricePreview(c *gin.Context) {
	appID := c.Param("id")
	maxMembers, err := strconv.Atoi(c.DefaultQuery("members", "0"))
	if err != nil || maxMembers < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "members must be an integer of at least 2"})
		return
	}

	app, err := scanApp(h.db.QueryRow("SELECT "+appColumns+" FROM apps WHERE id = $1 AND is_active = TRUE", appID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "App not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load app"})
		return
	}
	if maxMembers > app.MaxGroupMembers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "members exceeds the app limit"})
		return
	}

	price := services.PricePerMember(app.BasePrice, maxMembers)
	c.JSON(http.StatusOK, gin.H{
		"app_id":           app.ID,
		"members":          maxMembers,
		"base_price":       app.BasePrice,
		"price_per_member": price,
	})
}
