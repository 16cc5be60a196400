package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go-topic-relay/internal/infrastructure/hub"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS topic_content (
	topic      TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteStore keeps topic content as JSON in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path (":memory:" works for tests) and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// one connection: sqlite wants a single writer and ":memory:" is per
	// connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetContent(ctx context.Context, topic string) (hub.Payload, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM topic_content WHERE topic = ?`, topic,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoContent
	}
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}

	var payload hub.Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return payload, nil
}

func (s *SQLiteStore) PutContent(ctx context.Context, topic string, payload hub.Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO topic_content (topic, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		topic, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
