package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"replaybot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the persistence API for scheduled tasks.
//
// All methods present a single logical result; Insert is atomic per row.
// FindByChatAndID returns (nil, nil) when no row matches.
type Store interface {
	Insert(ctx context.Context, t Task) (Task, error)
	ListAll(ctx context.Context) ([]Task, error)
	ListByChat(ctx context.Context, chatID int64) ([]Task, error)
	FindByChatAndID(ctx context.Context, chatID, id int64) (*Task, error)
	DeleteByChat(ctx context.Context, chatID int64) (int64, error)
	Close() error
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the sqlite database and ensures the tasks table
// exists. Safe to call on every startup.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Insert(ctx context.Context, t Task) (Task, error) {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(chat_id, cron, msg, caption, msg_type, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?)`,
		t.ChatID, t.Cron, t.Msg, nullStr(t.Caption), string(t.Type),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, fmt.Errorf("insert task id: %w", err)
	}
	t.ID = id
	return t, nil
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]Task, error) {
	return s.list(ctx, `SELECT id, chat_id, cron, msg, caption, msg_type, created_at, updated_at FROM tasks`)
}

func (s *sqliteStore) ListByChat(ctx context.Context, chatID int64) ([]Task, error) {
	return s.list(ctx,
		`SELECT id, chat_id, cron, msg, caption, msg_type, created_at, updated_at FROM tasks WHERE chat_id = ? ORDER BY id`,
		chatID)
}

func (s *sqliteStore) list(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) FindByChatAndID(ctx context.Context, chatID, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, cron, msg, caption, msg_type, created_at, updated_at FROM tasks WHERE chat_id = ? AND id = ?`,
		chatID, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqliteStore) DeleteByChat(ctx context.Context, chatID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var (
		t       Task
		caption sql.NullString
		msgType string
		created string
		updated string
	)
	if err := r.Scan(&t.ID, &t.ChatID, &t.Cron, &t.Msg, &caption, &msgType, &created, &updated); err != nil {
		return Task{}, err
	}
	t.Caption = caption.String
	t.Type = MsgType(msgType)
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		t.UpdatedAt = ts
	}
	return t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
