package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore implements Store on a single SQLite database file. WAL mode and
// a busy timeout let the portal and the bot worker share the file from
// independent processes; SQLite's serialized writes provide the per-row
// atomicity the claim and confirmation operations rely on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "data.db"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			chat_id TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			mac TEXT NOT NULL,
			dispatched INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			request_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			message_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_request ON notifications (request_id)`,
		`CREATE TABLE IF NOT EXISTS confirmations (
			request_id TEXT PRIMARY KEY,
			duration INTEGER NOT NULL,
			approver TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) AddChannel(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (chat_id) VALUES (?)`, chatID)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrChannelExists
		}
		return fmt.Errorf("add channel: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ChatID); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (s *SQLiteStore) AddRequest(ctx context.Context, id, name, mac string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, name, mac, dispatched) VALUES (?, ?, ?, 0)`,
		id, name, mac)
	if err != nil {
		return fmt.Errorf("add request: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUndispatched(ctx context.Context) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, mac FROM requests WHERE dispatched = 0 ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list undispatched: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.Name, &r.MAC); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// ClaimDispatch is a compare-and-set on the dispatched flag. The WHERE clause
// only matches the undispatched row, so exactly one concurrent caller observes
// an affected row.
func (s *SQLiteStore) ClaimDispatch(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET dispatched = 1 WHERE id = ? AND dispatched = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claim dispatch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim dispatch: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) RecordNotification(ctx context.Context, requestID, chatID, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (request_id, chat_id, message_id) VALUES (?, ?, ?)`,
		requestID, chatID, messageID)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, requestID string) ([]SentNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, chat_id, message_id FROM notifications WHERE request_id = ?`,
		requestID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []SentNotification
	for rows.Next() {
		var n SentNotification
		if err := rows.Scan(&n.RequestID, &n.ChatID, &n.MessageID); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, mac, dispatched FROM requests WHERE id = ?`, id)

	var r Request
	var dispatched int
	if err := row.Scan(&r.ID, &r.Name, &r.MAC, &dispatched); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	r.Dispatched = dispatched != 0
	return &r, nil
}

// RecordConfirmation relies on the confirmations primary key: the second
// insert for a request fails the constraint and maps to ErrAlreadyConfirmed.
func (s *SQLiteStore) RecordConfirmation(ctx context.Context, requestID string, durationMinutes int, approver string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO confirmations (request_id, duration, approver) VALUES (?, ?, ?)`,
		requestID, durationMinutes, approver)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrAlreadyConfirmed
		}
		return fmt.Errorf("record confirmation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConfirmation(ctx context.Context, requestID string) (*Confirmation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, duration, approver FROM confirmations WHERE request_id = ?`,
		requestID)

	var c Confirmation
	if err := row.Scan(&c.RequestID, &c.DurationMinutes, &c.Approver); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get confirmation: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint")
}
