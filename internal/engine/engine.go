// Package engine orchestrates debate sessions between a student and an
// AI opponent: turn progression, the turn budget, and end-of-session
// scoring.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alienxp03/sparring/internal/core"
	"github.com/alienxp03/sparring/internal/llm"
	"github.com/alienxp03/sparring/internal/prompt"
	"github.com/alienxp03/sparring/internal/quota"
	"github.com/alienxp03/sparring/internal/safety"
	"github.com/alienxp03/sparring/internal/storage"
	"github.com/alienxp03/sparring/internal/topic"
)

// Config holds the engine's turn-budget knobs.
type Config struct {
	// MaxTurns is the student turn budget per session.
	MaxTurns int
	// MaxMessageChars caps one student message, counted in runes.
	MaxMessageChars int
	// HistoryWindow is how many recent turns accompany a model call.
	HistoryWindow int
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 20
	}
	if c.MaxMessageChars <= 0 {
		c.MaxMessageChars = 100
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 6
	}
	return c
}

// Engine drives session lifecycle and turn-by-turn progression.
type Engine struct {
	storage  storage.Storage
	client   llm.Client
	gate     *safety.Gate
	composer *prompt.Composer
	guard    *quota.Guard
	topics   *topic.Registry
	cfg      Config
}

// New creates a debate engine.
func New(store storage.Storage, client llm.Client, gate *safety.Gate, composer *prompt.Composer, guard *quota.Guard, topics *topic.Registry, cfg Config) *Engine {
	return &Engine{
		storage:  store,
		client:   client,
		gate:     gate,
		composer: composer,
		guard:    guard,
		topics:   topics,
		cfg:      cfg.withDefaults(),
	}
}

// StartParams are the inputs for creating a session.
type StartParams struct {
	ParticipantID string
	TopicID       string
	Stance        string
	Difficulty    string
	PersonaID     string
	Group         string
}

// StartSession validates parameters, checks the group's daily quota,
// and creates a session. The quota increment is dispatched without
// blocking session creation.
func (e *Engine) StartSession(ctx context.Context, p StartParams) (*core.Session, error) {
	if p.ParticipantID == "" {
		return nil, fmt.Errorf("%w: participant ID is required", ErrInvalidParams)
	}
	stance, err := core.ParseStance(p.Stance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	difficulty, err := core.ParseDifficulty(p.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if _, ok := e.topics.Get(p.TopicID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, p.TopicID)
	}

	if err := e.guard.Allow(ctx, p.Group); err != nil {
		return nil, err
	}

	sess := &core.Session{
		ID:            core.GenerateID(),
		ParticipantID: p.ParticipantID,
		TopicID:       p.TopicID,
		Stance:        stance,
		AIStance:      stance.Opposite(),
		Difficulty:    difficulty,
		PersonaID:     p.PersonaID,
		Group:         p.Group,
		Status:        core.StatusActive,
		CreatedAt:     time.Now(),
	}
	if err := e.storage.CreateSession(sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Best-effort counter bump off the critical path. The session is
	// already committed; a failed increment never rolls it back.
	go e.guard.RecordSession(context.Background(), p.Group)

	slog.Info("session started",
		"session_id", sess.ID,
		"topic", sess.TopicID,
		"stance", sess.Stance,
		"difficulty", sess.Difficulty,
	)
	return sess, nil
}

// TurnResult is the pair of turns produced by one submission.
type TurnResult struct {
	Student      *core.Turn `json:"student_turn"`
	AI           *core.Turn `json:"ai_turn"`
	SessionEnded bool       `json:"session_ended"`
}

// SubmitTurn advances a session by one student turn. On a model-client
// failure the student's turn is still recorded alongside a synthetic
// apology turn; the attempt is consumed but the session is not ended,
// so the participant can keep going within the remaining budget.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID, rawText string) (*TurnResult, error) {
	sess, err := e.storage.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Ended() || sess.StudentTurns >= e.cfg.MaxTurns {
		return nil, ErrSessionEnded
	}

	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > e.cfg.MaxMessageChars {
		return nil, ErrMessageTooLong
	}

	if res := e.gate.Check(text); !res.Allowed {
		// Local, recoverable rejection: nothing recorded, counters
		// unchanged, not a fault.
		slog.Info("message blocked by safety gate", "session_id", sess.ID, "reason", res.Reason)
		return nil, &BlockedError{Reason: res.Reason, FlaggedTerms: res.FlaggedTerms}
	}

	turnIndex := sess.StudentTurns + 1
	phase := core.PhaseFor(turnIndex, e.cfg.MaxTurns)
	topicTitle := e.topicTitle(sess.TopicID)

	instruction, err := e.composer.Render(prompt.TemplateBattle, map[string]string{
		"topic":     topicTitle,
		"stance":    string(sess.Stance),
		"aiStance":  string(sess.AIStance),
		"turnIndex": strconv.Itoa(turnIndex),
		"maxTurns":  strconv.Itoa(e.cfg.MaxTurns),
		"phase":     string(phase),
		"level":     prompt.LevelFor(sess.Difficulty),
	}, sess.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compose instruction: %w", err)
	}

	history, err := e.recentHistory(sess.ID)
	if err != nil {
		return nil, err
	}

	userMessage := fmt.Sprintf("[topic: %s | my stance: %s]\n%s", topicTitle, sess.Stance, text)

	now := time.Now()
	studentTurn := &core.Turn{
		ID:        core.GenerateID(),
		SessionID: sess.ID,
		Sender:    core.SenderStudent,
		Text:      text,
		Label:     core.LabelOther,
		CreatedAt: now,
	}

	var aiText string
	aiLabel := core.LabelOther
	ended := false

	raw, sendErr := e.client.Send(ctx, instruction, userMessage, history)
	if sendErr != nil {
		slog.Warn("model call failed, recording apology turn",
			"session_id", sess.ID,
			"turn_index", turnIndex,
			"error", sendErr,
		)
		aiText = apologyText(sendErr)
	} else {
		reply := parseTurnReply(raw)
		aiText = reply.Message
		aiLabel = reply.Label
		ended = turnIndex >= e.cfg.MaxTurns
	}

	aiTurn := &core.Turn{
		ID:        core.GenerateID(),
		SessionID: sess.ID,
		Sender:    core.SenderAI,
		Text:      aiText,
		Label:     aiLabel,
		CreatedAt: time.Now(),
	}

	if err := e.storage.AppendTurnPair(studentTurn, aiTurn, ended); err != nil {
		return nil, fmt.Errorf("failed to record turns: %w", err)
	}

	go e.guard.RecordMessage(context.Background(), sess.Group)

	return &TurnResult{Student: studentTurn, AI: aiTurn, SessionEnded: ended}, nil
}

// EndSession finishes a session and produces its evaluation. Ending is
// idempotent: an already-ended session returns the stored evaluation
// without re-invoking the model.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*core.Evaluation, error) {
	sess, err := e.storage.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	if sess.Ended() {
		eval, err := e.storage.GetEvaluation(sess.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get evaluation: %w", err)
		}
		if eval != nil {
			return eval, nil
		}
		// Ended without an evaluation (e.g. crash between the two
		// writes): score now so the guarantee of exactly one
		// evaluation per finished session still holds.
	}

	turns, err := e.storage.GetTurns(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	if !sess.Ended() && len(turns) < 2 {
		return nil, ErrSessionTooShort
	}

	if !sess.Ended() {
		if err := e.storage.MarkSessionEnded(sess.ID, time.Now()); err != nil {
			return nil, fmt.Errorf("failed to end session: %w", err)
		}
	}

	eval := e.scoreSession(ctx, sess, turns)
	if err := e.storage.CreateEvaluation(eval); err != nil {
		return nil, fmt.Errorf("failed to store evaluation: %w", err)
	}

	slog.Info("session evaluated",
		"session_id", sess.ID,
		"clarity", eval.Clarity,
		"evidence", eval.Evidence,
		"relevance", eval.Relevance,
	)
	return eval, nil
}

// GetSession retrieves a session by ID.
func (e *Engine) GetSession(id string) (*core.Session, error) {
	sess, err := e.storage.GetSession(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetTurns retrieves a session's turns in order.
func (e *Engine) GetTurns(sessionID string) ([]*core.Turn, error) {
	if _, err := e.GetSession(sessionID); err != nil {
		return nil, err
	}
	return e.storage.GetTurns(sessionID)
}

// recentHistory maps the last HistoryWindow turns onto model roles.
func (e *Engine) recentHistory(sessionID string) ([]llm.Message, error) {
	turns, err := e.storage.GetTurns(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if len(turns) > e.cfg.HistoryWindow {
		turns = turns[len(turns)-e.cfg.HistoryWindow:]
	}

	history := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Sender == core.SenderAI {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: t.Text})
	}
	return history, nil
}

func (e *Engine) topicTitle(topicID string) string {
	if t, ok := e.topics.Get(topicID); ok {
		return t.Title
	}
	return topicID
}

// apologyText builds the student-safe stand-in message for a failed
// model call. The short description never exposes raw error details.
func apologyText(err error) string {
	desc := "an unexpected problem"
	var upstream *llm.UpstreamError
	var transport *llm.TransportError
	var empty *llm.EmptyResponseError
	switch {
	case errors.As(err, &upstream):
		desc = "the debate service rejected the request"
	case errors.As(err, &transport):
		desc = "a connection problem"
	case errors.As(err, &empty):
		desc = "an empty response"
	}
	return fmt.Sprintf("I'm sorry, I couldn't come up with a response this time because of %s. Your argument was saved; please try sending your next point again.", desc)
}

