package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pageflow/internal/entities"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByPageAndSubscriber(ctx context.Context, pageID, subscriberID string) (*entities.Conversation, error) {
	var conv entities.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT id, page_id, subscriber_id, status, last_message_at, last_message_preview, unread_count
		FROM conversations WHERE page_id = $1 AND subscriber_id = $2`,
		pageID, subscriberID,
	).Scan(&conv.ID, &conv.PageID, &conv.SubscriberID, &conv.Status,
		&conv.LastMessageAt, &conv.LastMessagePreview, &conv.UnreadCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Insert creates a conversation with status=open. A racing duplicate
// insert resolves to the existing row via the (page_id, subscriber_id)
// constraint.
func (r *ConversationRepository) Insert(ctx context.Context, conv *entities.Conversation) (*entities.Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Status == "" {
		conv.Status = entities.ConversationOpen
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO conversations (id, page_id, subscriber_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (page_id, subscriber_id) DO NOTHING`,
		conv.ID, conv.PageID, conv.SubscriberID, conv.Status)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return r.GetByPageAndSubscriber(ctx, conv.PageID, conv.SubscriberID)
	}
	return conv, nil
}

// RecordInbound refreshes last-message bookkeeping for an inbound event
// and forces the conversation open. The unread increment happens in the
// same UPDATE, so concurrent inbound events cannot lose counts.
func (r *ConversationRepository) RecordInbound(ctx context.Context, id, preview string, incrementUnread bool) error {
	increment := 0
	if incrementUnread {
		increment = 1
	}
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET
			unread_count = unread_count + $2,
			last_message_at = NOW(),
			last_message_preview = $3,
			status = 'open'
		WHERE id = $1`,
		id, increment, truncatePreview(preview))
	return err
}

// RecordOutbound refreshes last-message bookkeeping after a send. Bot
// sends leave the unread counter alone.
func (r *ConversationRepository) RecordOutbound(ctx context.Context, id, preview string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET
			last_message_at = NOW(),
			last_message_preview = $2
		WHERE id = $1`,
		id, truncatePreview(preview))
	return err
}

// ResetUnread zeroes the unread counter and refreshes the preview.
// Used by the human reply path: answering a conversation marks it read.
func (r *ConversationRepository) ResetUnread(ctx context.Context, id, preview string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET
			unread_count = 0,
			last_message_at = NOW(),
			last_message_preview = $2
		WHERE id = $1`,
		id, truncatePreview(preview))
	return err
}

// MarkRead zeroes the unread counter without touching the preview.
// Used when an operator opens a conversation in the inbox.
func (r *ConversationRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE conversations SET unread_count = 0 WHERE id = $1", id)
	return err
}

// GetForUser returns a conversation only if its page belongs to the user.
func (r *ConversationRepository) GetForUser(ctx context.Context, userID, id string) (*entities.Conversation, error) {
	var conv entities.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT c.id, c.page_id, c.subscriber_id, c.status, c.last_message_at, c.last_message_preview, c.unread_count
		FROM conversations c
		JOIN pages p ON p.id = c.page_id
		WHERE c.id = $1 AND p.user_id = $2`,
		id, userID,
	).Scan(&conv.ID, &conv.PageID, &conv.SubscriberID, &conv.Status,
		&conv.LastMessageAt, &conv.LastMessagePreview, &conv.UnreadCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the inbox: all conversations across the user's
// pages, most recently active first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]entities.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.page_id, c.subscriber_id, c.status, c.last_message_at, c.last_message_preview, c.unread_count
		FROM conversations c
		JOIN pages p ON p.id = c.page_id
		WHERE p.user_id = $1
		ORDER BY c.last_message_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []entities.Conversation
	for rows.Next() {
		var conv entities.Conversation
		if err := rows.Scan(&conv.ID, &conv.PageID, &conv.SubscriberID, &conv.Status,
			&conv.LastMessageAt, &conv.LastMessagePreview, &conv.UnreadCount); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// truncatePreview caps the stored preview at 100 chars.
func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= 100 {
		return s
	}
	return string(runes[:100])
}
