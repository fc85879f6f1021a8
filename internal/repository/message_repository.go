package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pageflow/internal/entities"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// InsertInbound appends an inbound message. Facebook may redeliver the
// same event; the partial unique index on fb_message_id makes the
// second insert a no-op, reported via inserted=false so the caller
// skips flow matching for the duplicate.
func (r *MessageRepository) InsertInbound(ctx context.Context, msg *entities.Message) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, page_id, subscriber_id, direction, message_type, content, payload, fb_message_id, status, sent_by)
		VALUES ($1, $2, $3, $4, 'inbound', $5, $6, $7, NULLIF($8, ''), 'sent', 'subscriber')
		ON CONFLICT (fb_message_id) WHERE fb_message_id IS NOT NULL DO NOTHING`,
		msg.ID, msg.ConversationID, msg.PageID, msg.SubscriberID,
		msg.MessageType, msg.Content, msg.Payload, msg.FBMessageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InsertOutbound appends an outbound message (bot or human).
func (r *MessageRepository) InsertOutbound(ctx context.Context, msg *entities.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = entities.MessageStatusSent
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, page_id, subscriber_id, direction, message_type, content, payload, fb_message_id, status, sent_by)
		VALUES ($1, $2, $3, $4, 'outbound', $5, $6, $7, NULLIF($8, ''), $9, $10)`,
		msg.ID, msg.ConversationID, msg.PageID, msg.SubscriberID,
		msg.MessageType, msg.Content, msg.Payload, msg.FBMessageID, msg.Status, msg.SentBy)
	return err
}

// MarkDelivered backfills delivered_at for the receipt's message ids,
// scoped to the page so an id collision on another page is untouched.
func (r *MessageRepository) MarkDelivered(ctx context.Context, pageID string, fbMessageIDs []string) error {
	if len(fbMessageIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE messages SET delivered_at = NOW()
		WHERE page_id = $1 AND fb_message_id = ANY($2) AND delivered_at IS NULL`,
		pageID, fbMessageIDs)
	return err
}

// MarkReadUpTo backfills read_at on the page's outbound messages created
// at or before the read receipt's watermark.
func (r *MessageRepository) MarkReadUpTo(ctx context.Context, pageID string, watermark time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE page_id = $1 AND direction = 'outbound' AND read_at IS NULL AND created_at <= $2`,
		pageID, watermark)
	return err
}

// ListForConversation returns a conversation's history in insertion order.
func (r *MessageRepository) ListForConversation(ctx context.Context, conversationID string) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, page_id, subscriber_id, direction, message_type, content,
		       COALESCE(payload, 'null'::jsonb), COALESCE(fb_message_id, ''), status, sent_by,
		       delivered_at, read_at, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []entities.Message
	for rows.Next() {
		var msg entities.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.PageID, &msg.SubscriberID,
			&msg.Direction, &msg.MessageType, &msg.Content, &msg.Payload, &msg.FBMessageID,
			&msg.Status, &msg.SentBy, &msg.DeliveredAt, &msg.ReadAt, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
