// Package core contains the domain types shared across the debate engine.
package core

import (
	"fmt"
	"time"
)

// Stance is the side a participant argues in a debate.
type Stance string

const (
	StancePro Stance = "pro"
	StanceCon Stance = "con"
)

// Opposite returns the complementary stance.
func (s Stance) Opposite() Stance {
	if s == StancePro {
		return StanceCon
	}
	return StancePro
}

// ParseStance validates a stance string.
func ParseStance(s string) (Stance, error) {
	switch Stance(s) {
	case StancePro, StanceCon:
		return Stance(s), nil
	}
	return "", fmt.Errorf("invalid stance: %q", s)
}

// Difficulty controls how hard the AI opponent argues.
type Difficulty string

const (
	DifficultyLow  Difficulty = "low"
	DifficultyMid  Difficulty = "mid"
	DifficultyHigh Difficulty = "high"
)

// ParseDifficulty validates a difficulty string. Only the three
// enumerated levels are accepted at session creation.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case DifficultyLow, DifficultyMid, DifficultyHigh:
		return Difficulty(s), nil
	}
	return "", fmt.Errorf("invalid difficulty: %q", s)
}

// Phase describes how close a session is to its turn budget.
// It is derived from the turn index, never stored.
type Phase string

const (
	PhaseNormal         Phase = "normal"
	PhaseClosingWarning Phase = "closing-warning"
	PhaseClosingFinal   Phase = "closing-final"
)

// PhaseFor derives the phase for a turn. The last two turns before the
// budget are closing-warning; at or past the budget is closing-final.
func PhaseFor(turnIndex, maxTurns int) Phase {
	switch {
	case turnIndex >= maxTurns:
		return PhaseClosingFinal
	case turnIndex >= maxTurns-2:
		return PhaseClosingWarning
	default:
		return PhaseNormal
	}
}

// Label classifies the rhetorical role of a turn.
type Label string

const (
	LabelClaim           Label = "claim"
	LabelReason          Label = "reason"
	LabelEvidence        Label = "evidence"
	LabelCounterargument Label = "counterargument"
	LabelRebuttal        Label = "rebuttal"
	LabelOther           Label = "other"
)

// ParseLabel maps a string onto a known label, defaulting to other.
func ParseLabel(s string) Label {
	switch Label(s) {
	case LabelClaim, LabelReason, LabelEvidence, LabelCounterargument, LabelRebuttal:
		return Label(s)
	}
	return LabelOther
}

// Sender identifies who authored a turn.
type Sender string

const (
	SenderStudent Sender = "student"
	SenderAI      Sender = "ai"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusEnded  SessionStatus = "ended"
)

// Session is one student's attempt at one topic, bounded by a turn budget.
type Session struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participant_id"`
	TopicID       string        `json:"topic_id"`
	Stance        Stance        `json:"stance"`
	AIStance      Stance        `json:"ai_stance"`
	Difficulty    Difficulty    `json:"difficulty"`
	PersonaID     string        `json:"persona_id,omitempty"`
	Group         string        `json:"group,omitempty"`
	Status        SessionStatus `json:"status"`
	StudentTurns  int           `json:"student_turns"`
	CreatedAt     time.Time     `json:"created_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}

// Ended reports whether the session has reached its terminal state.
func (s *Session) Ended() bool {
	return s.Status == StatusEnded
}

// Turn is one message exchanged within a session. Turns are immutable
// once created and strictly ordered by creation.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Label     Label     `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// Evaluation is the rubric score produced once at session end.
// Scores are always integers in [1,5].
type Evaluation struct {
	SessionID string    `json:"session_id"`
	Clarity   int       `json:"clarity"`
	Evidence  int       `json:"evidence"`
	Relevance int       `json:"relevance"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyUsage is the per-(day, group) admission counter. SessionCount
// gates new sessions; MessageCount is informational only.
type DailyUsage struct {
	Day          string `json:"day"` // UTC date, 2006-01-02
	Group        string `json:"group"`
	SessionCount int    `json:"session_count"`
	MessageCount int    `json:"message_count"`
}
