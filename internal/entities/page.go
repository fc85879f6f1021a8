package entities

import "time"

// Page is a connected Facebook Page (one row per user+page pair).
type Page struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PageID      string    `json:"page_id"` // external Facebook page id
	PageName    string    `json:"page_name"`
	AccessToken string    `json:"-"` // page access token, never serialized
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
