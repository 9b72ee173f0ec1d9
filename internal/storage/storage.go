// Package storage provides persistence for debate sessions.
package storage

import (
	"context"
	"time"

	"github.com/alienxp03/sparring/internal/core"
)

// Storage defines the interface for session persistence. Lookups return
// (nil, nil) when the record does not exist.
type Storage interface {
	// Initialize sets up the storage (creates tables, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// Session operations
	CreateSession(s *core.Session) error
	GetSession(id string) (*core.Session, error)
	MarkSessionEnded(id string, at time.Time) error

	// Turn operations. AppendTurnPair writes the student turn and the AI
	// turn in one transaction, bumps the session's student turn count,
	// and optionally flips the session to ended. No half-written pair
	// is ever visible to a later read.
	AppendTurnPair(student, ai *core.Turn, endSession bool) error
	GetTurns(sessionID string) ([]*core.Turn, error)
	CountTurns(sessionID string) (int, error)

	// Evaluation operations
	CreateEvaluation(e *core.Evaluation) error
	GetEvaluation(sessionID string) (*core.Evaluation, error)

	// Daily usage counters, keyed by (UTC date, group).
	Usage(ctx context.Context, day, group string) (*core.DailyUsage, error)
	IncrSessions(ctx context.Context, day, group string) error
	IncrMessages(ctx context.Context, day, group string) error
}
