// Package sqlite is the default durable store, backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dkeye/chatrelay/internal/domain"
)

// Fixed width so that text ordering equals time ordering.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	DB  *sql.DB
	now func() time.Time
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open DB: %w", err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set WAL: %w", err)
	}

	s := &Store{DB: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

// dsn adds per-connection pragmas; database/sql may open several connections.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS chat_rooms (
			id         TEXT PRIMARY KEY CHECK(length(id) > 0 AND length(id) <= 64),
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			content      TEXT NOT NULL,
			sent_by_id   TEXT,
			chat_room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			created_at   TEXT NOT NULL
		)`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages (chat_room_id, created_at, id)`,
	},
}

// SchemaVersion is the user_version a fully migrated database carries.
func SchemaVersion() int { return len(migrations) }

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("sqlite: read user_version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if err := s.applyMigration(ctx, i+1, migrations[i]); err != nil {
			return err
		}
	}
	return nil
}

// applyMigration runs one step and bumps user_version in the same transaction.
func (s *Store) applyMigration(ctx context.Context, version int, stmts []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: migrate v%d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate v%d: %w", version, err)
		}
	}
	// PRAGMA takes no bind parameters; version is an int we control.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("sqlite: set user_version %d: %w", version, err)
	}
	return tx.Commit()
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

// ---- Rooms ----

func (s *Store) EnsureRoom(ctx context.Context, room domain.Room) error {
	if err := room.Validate(); err != nil {
		return fmt.Errorf("sqlite: ensure room: %w", err)
	}
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO chat_rooms (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING",
		string(room.ID), string(room.Name), formatDBTime(s.now()))
	if err != nil {
		return fmt.Errorf("sqlite: ensure room %q: %w", room.ID, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, "SELECT 1 FROM chat_rooms WHERE id = ?", string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: room exists: %w", err)
	}
	return true, nil
}

// ---- Messages ----

func (s *Store) Append(ctx context.Context, room domain.RoomID, user domain.UserID, content string) (domain.Message, error) {
	var sender sql.NullString
	if user != "" {
		sender = sql.NullString{String: string(user), Valid: true}
	}
	at := s.now().UTC()
	res, err := s.DB.ExecContext(ctx,
		"INSERT INTO messages (content, sent_by_id, chat_room_id, created_at) VALUES (?, ?, ?, ?)",
		content, sender, string(room), formatDBTime(at))
	if err != nil {
		return domain.Message{}, fmt.Errorf("sqlite: create message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, fmt.Errorf("sqlite: message id: %w", err)
	}
	at, _ = parseDBTime(formatDBTime(at))
	return domain.NewMessage(id, room, user, content, at), nil
}

// Recent reads the newest limit messages and returns them oldest first.
// A limit <= 0 returns the whole room.
func (s *Store) Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, content, sent_by_id, chat_room_id, created_at
		FROM messages
		WHERE chat_room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, string(room), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var (
			m         domain.Message
			sender    sql.NullString
			roomID    string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.Content, &sender, &roomID, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		m.ChatRoomID = domain.RoomID(roomID)
		if sender.Valid {
			u := domain.UserID(sender.String)
			m.SentByID = &u
		}
		if m.CreatedAt, err = parseDBTime(createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
