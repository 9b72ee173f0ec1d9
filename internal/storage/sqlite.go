package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alienxp03/sparring/internal/core"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		stance TEXT NOT NULL,
		ai_stance TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		persona_id TEXT NOT NULL DEFAULT '',
		grp TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		student_turns INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT 'other',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		session_id TEXT PRIMARY KEY,
		clarity INTEGER NOT NULL,
		evidence INTEGER NOT NULL,
		relevance INTEGER NOT NULL,
		comment TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS daily_usage (
		day TEXT NOT NULL,
		grp TEXT NOT NULL,
		session_count INTEGER NOT NULL DEFAULT 0,
		message_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, grp)
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_participant ON sessions(participant_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session.
func (s *SQLiteStorage) CreateSession(sess *core.Session) error {
	query := `
	INSERT INTO sessions (id, participant_id, topic_id, stance, ai_stance, difficulty, persona_id, grp, status, student_turns, created_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		sess.ID, sess.ParticipantID, sess.TopicID,
		string(sess.Stance), string(sess.AIStance), string(sess.Difficulty),
		sess.PersonaID, sess.Group, string(sess.Status),
		sess.StudentTurns, sess.CreatedAt, sess.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns (nil, nil) when absent.
func (s *SQLiteStorage) GetSession(id string) (*core.Session, error) {
	query := `
	SELECT id, participant_id, topic_id, stance, ai_stance, difficulty, persona_id, grp, status, student_turns, created_at, finished_at
	FROM sessions WHERE id = ?
	`
	sess := &core.Session{}
	var finishedAt sql.NullTime
	err := s.db.QueryRow(query, id).Scan(
		&sess.ID, &sess.ParticipantID, &sess.TopicID,
		&sess.Stance, &sess.AIStance, &sess.Difficulty,
		&sess.PersonaID, &sess.Group, &sess.Status,
		&sess.StudentTurns, &sess.CreatedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if finishedAt.Valid {
		sess.FinishedAt = &finishedAt.Time
	}
	return sess, nil
}

// MarkSessionEnded flips a session to ended. Already-ended sessions are
// left untouched, keeping the original finished timestamp.
func (s *SQLiteStorage) MarkSessionEnded(id string, at time.Time) error {
	query := `UPDATE sessions SET status = ?, finished_at = ? WHERE id = ? AND status != ?`
	if _, err := s.db.Exec(query, string(core.StatusEnded), at, id, string(core.StatusEnded)); err != nil {
		return fmt.Errorf("failed to mark session ended: %w", err)
	}
	return nil
}

// AppendTurnPair writes both turns, bumps the student turn count, and
// optionally ends the session, all in one transaction.
func (s *SQLiteStorage) AppendTurnPair(student, ai *core.Turn, endSession bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO turns (id, session_id, sender, text, label, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	for _, turn := range []*core.Turn{student, ai} {
		if _, err := tx.Exec(insert,
			turn.ID, turn.SessionID, string(turn.Sender), turn.Text, string(turn.Label), turn.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE sessions SET student_turns = student_turns + 1 WHERE id = ?`, student.SessionID); err != nil {
		return fmt.Errorf("failed to bump turn count: %w", err)
	}

	if endSession {
		if _, err := tx.Exec(
			`UPDATE sessions SET status = ?, finished_at = ? WHERE id = ? AND status != ?`,
			string(core.StatusEnded), ai.CreatedAt, student.SessionID, string(core.StatusEnded),
		); err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn pair: %w", err)
	}
	return nil
}

// GetTurns retrieves all turns for a session in creation order.
func (s *SQLiteStorage) GetTurns(sessionID string) ([]*core.Turn, error) {
	query := `
	SELECT id, session_id, sender, text, label, created_at
	FROM turns WHERE session_id = ? ORDER BY rowid ASC
	`
	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	var turns []*core.Turn
	for rows.Next() {
		t := &core.Turn{}
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Sender, &t.Text, &t.Label, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// CountTurns returns the number of turns in a session.
func (s *SQLiteStorage) CountTurns(sessionID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return n, nil
}

// CreateEvaluation inserts the evaluation for a finished session.
func (s *SQLiteStorage) CreateEvaluation(e *core.Evaluation) error {
	query := `
	INSERT INTO evaluations (session_id, clarity, evidence, relevance, comment, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, e.SessionID, e.Clarity, e.Evidence, e.Relevance, e.Comment, e.CreatedAt); err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}
	return nil
}

// GetEvaluation retrieves a session's evaluation. Returns (nil, nil)
// when absent.
func (s *SQLiteStorage) GetEvaluation(sessionID string) (*core.Evaluation, error) {
	query := `
	SELECT session_id, clarity, evidence, relevance, comment, created_at
	FROM evaluations WHERE session_id = ?
	`
	e := &core.Evaluation{}
	err := s.db.QueryRow(query, sessionID).Scan(&e.SessionID, &e.Clarity, &e.Evidence, &e.Relevance, &e.Comment, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return e, nil
}

// Usage reads the daily counter for a (day, group) key. Returns
// (nil, nil) when no record exists yet.
func (s *SQLiteStorage) Usage(ctx context.Context, day, group string) (*core.DailyUsage, error) {
	query := `SELECT day, grp, session_count, message_count FROM daily_usage WHERE day = ? AND grp = ?`
	u := &core.DailyUsage{}
	err := s.db.QueryRowContext(ctx, query, day, group).Scan(&u.Day, &u.Group, &u.SessionCount, &u.MessageCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return u, nil
}

// IncrSessions atomically increments the session counter, creating the
// record on first use of the day.
func (s *SQLiteStorage) IncrSessions(ctx context.Context, day, group string) error {
	query := `
	INSERT INTO daily_usage (day, grp, session_count, message_count) VALUES (?, ?, 1, 0)
	ON CONFLICT(day, grp) DO UPDATE SET session_count = session_count + 1
	`
	if _, err := s.db.ExecContext(ctx, query, day, group); err != nil {
		return fmt.Errorf("failed to increment session count: %w", err)
	}
	return nil
}

// IncrMessages atomically increments the message counter.
func (s *SQLiteStorage) IncrMessages(ctx context.Context, day, group string) error {
	query := `
	INSERT INTO daily_usage (day, grp, session_count, message_count) VALUES (?, ?, 0, 1)
	ON CONFLICT(day, grp) DO UPDATE SET message_count = message_count + 1
	`
	if _, err := s.db.ExecContext(ctx, query, day, group); err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}
	return nil
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sparring.db"
	}
	return filepath.Join(home, ".sparring", "sparring.db")
}
