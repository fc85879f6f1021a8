package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	// Auto-migrate schema
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	// Users Table
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	// Connected Pages. One row per (user, external page id); OAuth
	// reconnects upsert on this pair.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pages (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			page_id VARCHAR(64) NOT NULL,
			page_name VARCHAR(255) NOT NULL DEFAULT '',
			access_token TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, page_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create pages table: %w", err)
	}

	// Subscribers. The (page_id, psid) constraint is what turns a racing
	// second first-contact insert into a resolvable conflict.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS subscribers (
			id UUID PRIMARY KEY,
			page_id UUID NOT NULL REFERENCES pages(id),
			psid VARCHAR(64) NOT NULL,
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			profile_pic TEXT NOT NULL DEFAULT '',
			locale VARCHAR(16) NOT NULL DEFAULT '',
			gender VARCHAR(16) NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			last_interaction_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (page_id, psid)
		);
	`)
	if err != nil {
		return fmt.Errorf("create subscribers table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			page_id UUID NOT NULL REFERENCES pages(id),
			subscriber_id UUID NOT NULL REFERENCES subscribers(id),
			status VARCHAR(16) NOT NULL DEFAULT 'open',
			last_message_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			last_message_preview VARCHAR(100) NOT NULL DEFAULT '',
			unread_count INT NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
			UNIQUE (page_id, subscriber_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			page_id UUID NOT NULL REFERENCES pages(id),
			subscriber_id UUID NOT NULL REFERENCES subscribers(id),
			direction VARCHAR(16) NOT NULL,
			message_type VARCHAR(32) NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			payload JSONB,
			fb_message_id VARCHAR(128),
			status VARCHAR(16) NOT NULL DEFAULT 'sent',
			sent_by VARCHAR(16) NOT NULL,
			delivered_at TIMESTAMPTZ,
			read_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	// Dedup on the provider message id: a redelivered webhook event must
	// not create a second row or re-trigger a flow.
	_, err = p.Pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS messages_fb_message_id_key
		ON messages (fb_message_id) WHERE fb_message_id IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("create messages dedup index: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS messages_conversation_created_idx
		ON messages (conversation_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("create messages conversation index: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS flows (
			id UUID PRIMARY KEY,
			page_id UUID NOT NULL REFERENCES pages(id),
			user_id UUID NOT NULL REFERENCES users(id),
			name VARCHAR(255) NOT NULL,
			trigger_type VARCHAR(32) NOT NULL,
			trigger_value VARCHAR(255),
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create flows table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS flow_steps (
			id UUID PRIMARY KEY,
			flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
			step_order INT NOT NULL,
			step_type VARCHAR(32) NOT NULL,
			config JSONB NOT NULL,
			UNIQUE (flow_id, step_order)
		);
	`)
	if err != nil {
		return fmt.Errorf("create flow_steps table: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
