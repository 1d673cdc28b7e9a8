package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"paperchat/internal/models"
	"paperchat/internal/util"
)

// SQLiteSessionStore keeps chat sessions in a local SQLite file so history
// survives restarts without a Postgres dependency.
type SQLiteSessionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteSessionStore(dbPath string, logger *slog.Logger) (*SQLiteSessionStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("cannot open session database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLiteSessionStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteSessionStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id           TEXT PRIMARY KEY,
		document_ids TEXT NOT NULL,
		created_at   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_session_documents (
		session_id  TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		document_id TEXT NOT NULL,
		PRIMARY KEY (session_id, document_id)
	);
	CREATE INDEX IF NOT EXISTS idx_session_documents_doc ON chat_session_documents(document_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		sources    TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);
	`)
	return err
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteSessionStore) GetOrCreate(ctx context.Context, sessionID string, documentIDs []string) (models.ChatSession, error) {
	if sessionID != "" {
		return s.Get(ctx, sessionID)
	}
	if documentIDs == nil {
		documentIDs = []string{}
	}
	sess := models.ChatSession{
		SessionID:   uuid.NewString(),
		DocumentIDs: documentIDs,
		Messages:    []models.ChatMessage{},
		CreatedAt:   time.Now().UTC(),
	}
	ids, _ := json.Marshal(documentIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("begin create session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `INSERT INTO chat_sessions (id, document_ids, created_at) VALUES (?, ?, ?)`,
		sess.SessionID, string(ids), sess.CreatedAt); err != nil {
		return models.ChatSession{}, fmt.Errorf("insert session: %w", err)
	}
	for _, d := range documentIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO chat_session_documents (session_id, document_id) VALUES (?, ?)`,
			sess.SessionID, d); err != nil {
			return models.ChatSession{}, fmt.Errorf("link session document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.ChatSession{}, fmt.Errorf("commit session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteSessionStore) Get(ctx context.Context, sessionID string) (models.ChatSession, error) {
	var (
		sess models.ChatSession
		ids  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, document_ids, created_at FROM chat_sessions WHERE id = ?`, sessionID).
		Scan(&sess.SessionID, &ids, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatSession{}, util.ErrNotFound
	}
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &sess.DocumentIDs); err != nil {
		return models.ChatSession{}, fmt.Errorf("decode session documents: %w", err)
	}
	msgs, err := s.messages(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	sess.Messages = msgs
	return sess, nil
}

func (s *SQLiteSessionStore) Append(ctx context.Context, sessionID string, msgs ...models.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return util.ErrNotFound
	}
	for _, m := range msgs {
		if m.Sources == nil {
			m.Sources = []models.Source{}
		}
		src, err := json.Marshal(m.Sources)
		if err != nil {
			return fmt.Errorf("encode sources: %w", err)
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (session_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
			sessionID, m.Role, m.Content, string(src), m.Timestamp); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteSessionStore) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

func (s *SQLiteSessionStore) messages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, sources, created_at FROM chat_messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	out := []models.ChatMessage{}
	for rows.Next() {
		var (
			m   models.ChatMessage
			src string
		)
		if err := rows.Scan(&m.Role, &m.Content, &src, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(src), &m.Sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteSessionStore) DeleteByDocument(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE id IN (SELECT session_id FROM chat_session_documents WHERE document_id = ?)`, documentID)
	if err != nil {
		return fmt.Errorf("delete sessions for document: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("deleted chat sessions", "document_id", documentID, "count", n)
	}
	return nil
}
