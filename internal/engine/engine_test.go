package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alienxp03/sparring/internal/core"
	"github.com/alienxp03/sparring/internal/llm"
	"github.com/alienxp03/sparring/internal/persona"
	"github.com/alienxp03/sparring/internal/prompt"
	"github.com/alienxp03/sparring/internal/quota"
	"github.com/alienxp03/sparring/internal/safety"
	"github.com/alienxp03/sparring/internal/storage"
	"github.com/alienxp03/sparring/internal/topic"
)

const testReply = `{"aiMessage": "I disagree, and here is why.", "labels": ["counterargument"]}`

func setupEngine(t *testing.T, client llm.Client, cfg Config, quotaLimit int) (*Engine, storage.Storage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gate, err := safety.New(safety.DefaultTerms(), nil)
	if err != nil {
		t.Fatalf("failed to build safety gate: %v", err)
	}
	composer := prompt.New(nil, persona.NewRegistry(persona.Builtin()))
	guard := quota.NewGuard(store, quotaLimit)
	topics := topic.NewRegistry(topic.Builtin())

	return New(store, client, gate, composer, guard, topics, cfg), store
}

func startTestSession(t *testing.T, eng *Engine) *core.Session {
	t.Helper()
	sess, err := eng.StartSession(context.Background(), StartParams{
		ParticipantID: "student-1",
		TopicID:       "school-uniforms",
		Stance:        "pro",
		Difficulty:    "mid",
		PersonaID:     "professor",
		Group:         "class-3b",
	})
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	return sess
}

func TestStartSession(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{}, 0)

	sess := startTestSession(t, eng)

	if sess.Stance != core.StancePro || sess.AIStance != core.StanceCon {
		t.Errorf("stances = %s/%s, want pro/con", sess.Stance, sess.AIStance)
	}
	if sess.Status != core.StatusActive {
		t.Errorf("status = %s, want active", sess.Status)
	}
	if sess.StudentTurns != 0 {
		t.Errorf("student turns = %d, want 0", sess.StudentTurns)
	}

	got, err := eng.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Error("session was not persisted")
	}
}

func TestStartSessionValidation(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{}, 0)

	tests := []struct {
		name    string
		params  StartParams
		wantErr error
	}{
		{"missing_participant", StartParams{TopicID: "school-uniforms", Stance: "pro", Difficulty: "mid"}, ErrInvalidParams},
		{"bad_stance", StartParams{ParticipantID: "s1", TopicID: "school-uniforms", Stance: "maybe", Difficulty: "mid"}, ErrInvalidParams},
		{"bad_difficulty", StartParams{ParticipantID: "s1", TopicID: "school-uniforms", Stance: "pro", Difficulty: "extreme"}, ErrInvalidParams},
		{"unknown_topic", StartParams{ParticipantID: "s1", TopicID: "flat-earth", Stance: "pro", Difficulty: "mid"}, ErrUnknownTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eng.StartSession(context.Background(), tt.params); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartSessionQuotaExceeded(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, store := setupEngine(t, mock, Config{}, 2)

	ctx := context.Background()
	day := quota.Day(time.Now())
	for i := 0; i < 2; i++ {
		if err := store.IncrSessions(ctx, day, "class-3b"); err != nil {
			t.Fatalf("failed to bump counter: %v", err)
		}
	}

	_, err := eng.StartSession(ctx, StartParams{
		ParticipantID: "student-1",
		TopicID:       "school-uniforms",
		Stance:        "pro",
		Difficulty:    "mid",
		Group:         "class-3b",
	})
	if !errors.Is(err, quota.ErrExceeded) {
		t.Errorf("err = %v, want ErrExceeded", err)
	}

	// Another group is unaffected.
	if _, err := eng.StartSession(ctx, StartParams{
		ParticipantID: "student-2",
		TopicID:       "school-uniforms",
		Stance:        "con",
		Difficulty:    "low",
		Group:         "class-4a",
	}); err != nil {
		t.Errorf("other group blocked: %v", err)
	}
}

func TestSubmitTurn(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{}, 0)
	sess := startTestSession(t, eng)

	res, err := eng.SubmitTurn(context.Background(), sess.ID, "Uniforms reduce bullying over clothing.")
	if err != nil {
		t.Fatalf("failed to submit turn: %v", err)
	}

	if res.Student.Sender != core.SenderStudent || res.Student.Text != "Uniforms reduce bullying over clothing." {
		t.Errorf("unexpected student turn: %+v", res.Student)
	}
	if res.AI.Sender != core.SenderAI || res.AI.Text != "I disagree, and here is why." {
		t.Errorf("unexpected AI turn: %+v", res.AI)
	}
	if res.AI.Label != core.LabelCounterargument {
		t.Errorf("AI label = %s, want counterargument", res.AI.Label)
	}
	if res.SessionEnded {
		t.Error("session should not end on the first turn")
	}

	if !strings.Contains(mock.LastSystem, "Schools should require uniforms") {
		t.Error("system prompt missing topic title")
	}
	if !strings.Contains(mock.LastSystem, "Professor Gray") {
		t.Error("system prompt missing persona block")
	}
	if !strings.Contains(mock.LastUser, "my stance: pro") {
		t.Error("user message missing stance context")
	}

	got, err := eng.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if got.StudentTurns != 1 {
		t.Errorf("student turns = %d, want 1", got.StudentTurns)
	}

	turns, err := eng.GetTurns(sess.ID)
	if err != nil {
		t.Fatalf("failed to get turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Sender != core.SenderStudent || turns[1].Sender != core.SenderAI {
		t.Error("turns stored out of order")
	}
}

func TestSubmitTurnHistoryWindow(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{HistoryWindow: 4}, 0)
	sess := startTestSession(t, eng)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := eng.SubmitTurn(ctx, sess.ID, fmt.Sprintf("Point number %d.", i+1)); err != nil {
			t.Fatalf("turn %d failed: %v", i+1, err)
		}
	}

	// 6 turns stored before the last call, window keeps the last 4.
	if len(mock.LastHistory) != 4 {
		t.Fatalf("history length = %d, want 4", len(mock.LastHistory))
	}
	if mock.LastHistory[0].Role != llm.RoleUser {
		t.Errorf("history starts with %s, want user", mock.LastHistory[0].Role)
	}
	if mock.LastHistory[2].Content != "Point number 3." {
		t.Errorf("unexpected history content: %q", mock.LastHistory[2].Content)
	}
}

func TestSubmitTurnValidation(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{MaxMessageChars: 20}, 0)
	sess := startTestSession(t, eng)
	ctx := context.Background()

	if _, err := eng.SubmitTurn(ctx, "no-such-session", "hello"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session err = %v, want ErrSessionNotFound", err)
	}
	if _, err := eng.SubmitTurn(ctx, sess.ID, "   \n\t "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank message err = %v, want ErrEmptyMessage", err)
	}
	if _, err := eng.SubmitTurn(ctx, sess.ID, strings.Repeat("a", 21)); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("long message err = %v, want ErrMessageTooLong", err)
	}
	// Rune count, not byte count: 20 multibyte runes fit.
	if _, err := eng.SubmitTurn(ctx, sess.ID, strings.Repeat("가", 20)); err != nil {
		t.Errorf("20-rune message rejected: %v", err)
	}
	if mock.Calls != 1 {
		t.Errorf("model calls = %d, want 1", mock.Calls)
	}
}

func TestSubmitTurnBlocked(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{}, 0)
	sess := startTestSession(t, eng)

	_, err := eng.SubmitTurn(context.Background(), sess.ID, "you are such an idiot")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want BlockedError", err)
	}
	if len(blocked.FlaggedTerms) == 0 {
		t.Error("expected flagged terms")
	}

	// Nothing recorded, no model call, attempt not consumed.
	if mock.Calls != 0 {
		t.Errorf("model calls = %d, want 0", mock.Calls)
	}
	turns, _ := eng.GetTurns(sess.ID)
	if len(turns) != 0 {
		t.Errorf("got %d turns, want 0", len(turns))
	}
	got, _ := eng.GetSession(sess.ID)
	if got.StudentTurns != 0 {
		t.Errorf("student turns = %d, want 0", got.StudentTurns)
	}
}

func TestSubmitTurnModelFailure(t *testing.T) {
	mock := &llm.MockClient{
		Responses: []string{""},
		Errs:      []error{&llm.TransportError{Err: errors.New("connection refused")}},
	}
	eng, _ := setupEngine(t, mock, Config{}, 0)
	sess := startTestSession(t, eng)

	res, err := eng.SubmitTurn(context.Background(), sess.ID, "Opening argument.")
	if err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if !strings.Contains(res.AI.Text, "connection problem") {
		t.Errorf("apology text = %q", res.AI.Text)
	}
	if res.AI.Label != core.LabelOther {
		t.Errorf("apology label = %s, want other", res.AI.Label)
	}
	if res.SessionEnded {
		t.Error("failure must not end the session")
	}

	// The attempt is consumed: both turns persisted, counter bumped,
	// session still active.
	got, _ := eng.GetSession(sess.ID)
	if got.Status != core.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if got.StudentTurns != 1 {
		t.Errorf("student turns = %d, want 1", got.StudentTurns)
	}
	turns, _ := eng.GetTurns(sess.ID)
	if len(turns) != 2 {
		t.Errorf("got %d turns, want 2", len(turns))
	}
}

func TestSubmitTurnBudget(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{MaxTurns: 3}, 0)
	sess := startTestSession(t, eng)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := eng.SubmitTurn(ctx, sess.ID, "Another point.")
		if err != nil {
			t.Fatalf("turn %d failed: %v", i+1, err)
		}
		if res.SessionEnded {
			t.Fatalf("session ended early on turn %d", i+1)
		}
	}

	res, err := eng.SubmitTurn(ctx, sess.ID, "Closing point.")
	if err != nil {
		t.Fatalf("final turn failed: %v", err)
	}
	if !res.SessionEnded {
		t.Error("final turn should end the session")
	}
	got, _ := eng.GetSession(sess.ID)
	if !got.Ended() {
		t.Error("session not marked ended after budget exhausted")
	}

	if _, err := eng.SubmitTurn(ctx, sess.ID, "One more."); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("post-budget err = %v, want ErrSessionEnded", err)
	}
}

func TestEndSession(t *testing.T) {
	judgeReply := `{"clarity":4,"evidence":2,"relevance":5,"comment":"Cite a study next time."}`
	mock := &llm.MockClient{Responses: []string{testReply, judgeReply}}
	eng, _ := setupEngine(t, mock, Config{}, 0)
	sess := startTestSession(t, eng)
	ctx := context.Background()

	if _, err := eng.SubmitTurn(ctx, sess.ID, "Opening argument."); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	eval, err := eng.EndSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if eval.Clarity != 4 || eval.Evidence != 2 || eval.Relevance != 5 {
		t.Errorf("scores = %d/%d/%d, want 4/2/5", eval.Clarity, eval.Evidence, eval.Relevance)
	}
	if eval.Comment != "Cite a study next time." {
		t.Errorf("comment = %q", eval.Comment)
	}

	got, _ := eng.GetSession(sess.ID)
	if !got.Ended() || got.FinishedAt == nil {
		t.Error("session not marked ended")
	}

	// Ending again returns the stored evaluation without another
	// model call.
	callsBefore := mock.Calls
	again, err := eng.EndSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second end failed: %v", err)
	}
	if again.Comment != eval.Comment || again.Clarity != eval.Clarity {
		t.Error("second end returned a different evaluation")
	}
	if mock.Calls != callsBefore {
		t.Errorf("model calls = %d, want %d", mock.Calls, callsBefore)
	}
}

func TestEndSessionTooShort(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{}, 0)
	sess := startTestSession(t, eng)

	if _, err := eng.EndSession(context.Background(), sess.ID); !errors.Is(err, ErrSessionTooShort) {
		t.Errorf("err = %v, want ErrSessionTooShort", err)
	}
	got, _ := eng.GetSession(sess.ID)
	if got.Ended() {
		t.Error("too-short end must leave the session active")
	}
}

func TestEndSessionJudgeFailure(t *testing.T) {
	mock := &llm.MockClient{
		Responses: []string{testReply, ""},
		Errs:      []error{nil, &llm.TransportError{Err: errors.New("timeout")}},
	}
	eng, _ := setupEngine(t, mock, Config{}, 0)
	sess := startTestSession(t, eng)
	ctx := context.Background()

	if _, err := eng.SubmitTurn(ctx, sess.ID, "Opening argument."); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	eval, err := eng.EndSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if eval.Clarity != 3 || eval.Evidence != 3 || eval.Relevance != 3 {
		t.Errorf("fallback scores = %d/%d/%d, want 3/3/3", eval.Clarity, eval.Evidence, eval.Relevance)
	}
	if eval.Comment != fallbackComment {
		t.Errorf("fallback comment = %q", eval.Comment)
	}
	got, _ := eng.GetSession(sess.ID)
	if !got.Ended() {
		t.Error("session must end even when scoring falls back")
	}
}

func TestEndSessionNotFound(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{testReply}}
	eng, _ := setupEngine(t, mock, Config{}, 0)

	if _, err := eng.EndSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestApologyText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"upstream", &llm.UpstreamError{Status: 429, Err: errors.New("rate limited")}, "rejected the request"},
		{"transport", &llm.TransportError{Err: errors.New("dial tcp")}, "connection problem"},
		{"empty", &llm.EmptyResponseError{}, "empty response"},
		{"unknown", errors.New("boom"), "unexpected problem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apologyText(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("apologyText(%v) = %q, want substring %q", tt.err, got, tt.want)
			}
		})
	}
}
