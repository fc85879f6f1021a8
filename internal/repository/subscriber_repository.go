package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pageflow/internal/entities"
)

type SubscriberRepository struct {
	db *pgxpool.Pool
}

func NewSubscriberRepository(db *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) GetByPSID(ctx context.Context, pageID, psid string) (*entities.Subscriber, error) {
	var sub entities.Subscriber
	err := r.db.QueryRow(ctx, `
		SELECT id, page_id, psid, first_name, last_name, profile_pic, locale, gender, tags, last_interaction_at
		FROM subscribers WHERE page_id = $1 AND psid = $2`,
		pageID, psid,
	).Scan(&sub.ID, &sub.PageID, &sub.PSID, &sub.FirstName, &sub.LastName,
		&sub.ProfilePic, &sub.Locale, &sub.Gender, &sub.Tags, &sub.LastInteractionAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Insert creates a subscriber. Two first-contact events can race here;
// the (page_id, psid) constraint turns the loser into a conflict that
// is resolved by returning the row the winner created.
func (r *SubscriberRepository) Insert(ctx context.Context, sub *entities.Subscriber) (*entities.Subscriber, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Tags == nil {
		sub.Tags = []string{}
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO subscribers (id, page_id, psid, first_name, last_name, profile_pic, locale, gender, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (page_id, psid) DO NOTHING`,
		sub.ID, sub.PageID, sub.PSID, sub.FirstName, sub.LastName,
		sub.ProfilePic, sub.Locale, sub.Gender, sub.Tags)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// Lost the race: re-read the existing row.
		return r.GetByPSID(ctx, sub.PageID, sub.PSID)
	}
	return sub, nil
}

func (r *SubscriberRepository) TouchLastInteraction(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE subscribers SET last_interaction_at = NOW() WHERE id = $1", id)
	return err
}

// AddTag appends a tag only if not already present. The set union is a
// single conditional UPDATE, so concurrent tag additions cannot lose
// each other's writes.
func (r *SubscriberRepository) AddTag(ctx context.Context, id, tag string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE subscribers SET tags = array_append(tags, $2)
		WHERE id = $1 AND NOT ($2 = ANY(tags))`,
		id, tag)
	return err
}

// ListForPage returns a page's subscribers for the dashboard, newest
// interaction first. Callers verify page ownership before calling.
func (r *SubscriberRepository) ListForPage(ctx context.Context, pageID string) ([]entities.Subscriber, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, page_id, psid, first_name, last_name, profile_pic, locale, gender, tags, last_interaction_at
		FROM subscribers WHERE page_id = $1 ORDER BY last_interaction_at DESC`,
		pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []entities.Subscriber
	for rows.Next() {
		var sub entities.Subscriber
		if err := rows.Scan(&sub.ID, &sub.PageID, &sub.PSID, &sub.FirstName, &sub.LastName,
			&sub.ProfilePic, &sub.Locale, &sub.Gender, &sub.Tags, &sub.LastInteractionAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *SubscriberRepository) GetByID(ctx context.Context, id string) (*entities.Subscriber, error) {
	var sub entities.Subscriber
	err := r.db.QueryRow(ctx, `
		SELECT id, page_id, psid, first_name, last_name, profile_pic, locale, gender, tags, last_interaction_at
		FROM subscribers WHERE id = $1`,
		id,
	).Scan(&sub.ID, &sub.PageID, &sub.PSID, &sub.FirstName, &sub.LastName,
		&sub.ProfilePic, &sub.Locale, &sub.Gender, &sub.Tags, &sub.LastInteractionAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
