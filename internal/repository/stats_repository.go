package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepository struct {
	db *pgxpool.Pool
}

type DailyActivity struct {
	Date             time.Time `json:"date"`
	MessagesSent     int       `json:"messages_sent"`
	MessagesReceived int       `json:"messages_received"`
	AutomatedSent    int       `json:"automated_sent"`
}

type AccountOverview struct {
	PageCount         int `json:"page_count"`
	SubscriberCount   int `json:"subscriber_count"`
	OpenConversations int `json:"open_conversations"`
	UnreadTotal       int `json:"unread_total"`
	ActiveFlows       int `json:"active_flows"`
}

func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// Overview aggregates account-wide counts for the authenticated user.
func (r *StatsRepository) Overview(ctx context.Context, userID string) (*AccountOverview, error) {
	var o AccountOverview
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pages WHERE user_id = $1),
			(SELECT COUNT(*) FROM subscribers s JOIN pages p ON p.id = s.page_id WHERE p.user_id = $1),
			(SELECT COUNT(*) FROM conversations c JOIN pages p ON p.id = c.page_id WHERE p.user_id = $1 AND c.status = 'open'),
			(SELECT COALESCE(SUM(c.unread_count), 0) FROM conversations c JOIN pages p ON p.id = c.page_id WHERE p.user_id = $1),
			(SELECT COUNT(*) FROM flows f JOIN pages p ON p.id = f.page_id WHERE p.user_id = $1 AND f.is_active)
	`, userID).Scan(&o.PageCount, &o.SubscriberCount, &o.OpenConversations, &o.UnreadTotal, &o.ActiveFlows)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// PageActivity returns per-day message volume for a page over the last
// N days, derived from the messages table. Days with no traffic are
// omitted.
func (r *StatsRepository) PageActivity(ctx context.Context, pageID string, days int) ([]DailyActivity, error) {
	startDate := time.Now().AddDate(0, 0, -days)
	rows, err := r.db.Query(ctx, `
		SELECT
			date_trunc('day', created_at) AS day,
			COUNT(*) FILTER (WHERE direction = 'outbound') AS sent,
			COUNT(*) FILTER (WHERE direction = 'inbound') AS received,
			COUNT(*) FILTER (WHERE direction = 'outbound' AND sent_by = 'bot') AS automated
		FROM messages
		WHERE page_id = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day ASC
	`, pageID, startDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity := []DailyActivity{}
	for rows.Next() {
		var a DailyActivity
		if err := rows.Scan(&a.Date, &a.MessagesSent, &a.MessagesReceived, &a.AutomatedSent); err != nil {
			return nil, err
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}
