package models

import (
	"time"
)

// App is a catalog entry for a subscribable service. base_price is the full
// subscription price in the smallest currency unit; groups splitting the app
// freeze their own per-member price at creation, so editing an App never
// changes existing groups.
type App struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Description        string    `json:"description" db:"description"`
	Category           string    `json:"category" db:"category"`
	IconURL            string    `json:"icon_url" db:"icon_url"`
	WebsiteURL         string    `json:"website_url" db:"website_url"`
	BasePrice          int64     `json:"base_price" db:"base_price"`
	MaxGroupMembers    int       `json:"max_group_members" db:"max_group_members"`
	AdminFeePercentage int       `json:"admin_fee_percentage" db:"admin_fee_percentage"`
	IsPopular          bool      `json:"is_popular" db:"is_popular"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

type AppCreateRequest struct {
	ID                 string `json:"id" binding:"required"`
	Name               string `json:"name" binding:"required"`
	Description        string `json:"description"`
	Category           string `json:"category" binding:"required"`
	IconURL            string `json:"icon_url"`
	WebsiteURL         string `json:"website_url"`
	BasePrice          int64  `json:"base_price" binding:"required,min=1"`
	MaxGroupMembers    int    `json:"max_group_members" binding:"required,min=2"`
	AdminFeePercentage int    `json:"admin_fee_percentage" binding:"min=0,max=100"`
}

type AppUpdateRequest struct {
	Name               *string `json:"name,omitempty"`
	Description        *string `json:"description,omitempty"`
	Category           *string `json:"category,omitempty"`
	IconURL            *string `json:"icon_url,omitempty"`
	WebsiteURL         *string `json:"website_url,omitempty"`
	BasePrice          *int64  `json:"base_price,omitempty"`
	MaxGroupMembers    *int    `json:"max_group_members,omitempty"`
	AdminFeePercentage *int    `json:"admin_fee_percentage,omitempty"`
	IsPopular          *bool   `json:"is_popular,omitempty"`
}

type AppListStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

type AppListResponse struct {
	Data       []App        `json:"data"`
	Stats      AppListStats `json:"stats"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}
