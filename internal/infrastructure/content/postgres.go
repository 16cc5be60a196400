package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-topic-relay/internal/infrastructure/hub"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS topic_content (
	topic      TEXT PRIMARY KEY,
	content    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore reads topic content from a JSONB column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres content store requires a database URL")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetContent(ctx context.Context, topic string) (hub.Payload, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT content FROM topic_content WHERE topic = $1", topic,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoContent
	}
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}

	var payload hub.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return payload, nil
}

func (s *PostgresStore) PutContent(ctx context.Context, topic string, payload hub.Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO topic_content (topic, content, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (topic) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`,
		topic, raw,
	)
	if err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
