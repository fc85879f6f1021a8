package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pageflow/internal/entities"
)

type PageRepository struct {
	db *pgxpool.Pool
}

func NewPageRepository(db *pgxpool.Pool) *PageRepository {
	return &PageRepository{db: db}
}

// Upsert inserts a connected page or refreshes its token/name if the
// (user, external page id) pair already exists. Reconnecting a page
// must never create a second row.
func (r *PageRepository) Upsert(ctx context.Context, page *entities.Page) (*entities.Page, error) {
	if page.ID == "" {
		page.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO pages (id, user_id, page_id, page_name, access_token, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, page_id) DO UPDATE SET
			page_name = EXCLUDED.page_name,
			access_token = EXCLUDED.access_token,
			is_active = EXCLUDED.is_active
		RETURNING id, created_at`,
		page.ID, page.UserID, page.PageID, page.PageName, page.AccessToken, page.IsActive,
	).Scan(&page.ID, &page.CreatedAt)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetByPageID resolves an external Facebook page id to the connected
// page record. Used by the webhook path; not owner-scoped.
func (r *PageRepository) GetByPageID(ctx context.Context, externalPageID string) (*entities.Page, error) {
	var page entities.Page
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, page_id, page_name, access_token, is_active, created_at
		FROM pages WHERE page_id = $1`,
		externalPageID,
	).Scan(&page.ID, &page.UserID, &page.PageID, &page.PageName, &page.AccessToken, &page.IsActive, &page.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetForUser returns a page only if it belongs to the given user.
// Ownership is enforced in SQL; all dashboard handlers go through this.
func (r *PageRepository) GetForUser(ctx context.Context, userID, id string) (*entities.Page, error) {
	var page entities.Page
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, page_id, page_name, access_token, is_active, created_at
		FROM pages WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&page.ID, &page.UserID, &page.PageID, &page.PageName, &page.AccessToken, &page.IsActive, &page.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// ListForUser returns all pages connected by the given user.
func (r *PageRepository) ListForUser(ctx context.Context, userID string) ([]entities.Page, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, page_id, page_name, access_token, is_active, created_at
		FROM pages WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []entities.Page
	for rows.Next() {
		var page entities.Page
		if err := rows.Scan(&page.ID, &page.UserID, &page.PageID, &page.PageName, &page.AccessToken, &page.IsActive, &page.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}
