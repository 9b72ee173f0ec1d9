package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alienxp03/sparring/internal/core"
	"github.com/alienxp03/sparring/internal/llm"
	"github.com/alienxp03/sparring/internal/prompt"
)

// fallbackComment is used when the model's evaluation cannot be parsed.
// The evaluation itself is never absent.
const fallbackComment = "The automatic evaluation could not be completed. Please ask your teacher to retry it later."

const fallbackScore = 3

// scoreSession produces the rubric evaluation for a finished session.
// It never fails: any model or parse failure yields the deterministic
// default score.
func (e *Engine) scoreSession(ctx context.Context, sess *core.Session, turns []*core.Turn) *core.Evaluation {
	topicTitle := e.topicTitle(sess.TopicID)
	instruction, err := e.composer.Render(prompt.TemplateJudge, map[string]string{
		"topic":  topicTitle,
		"stance": string(sess.Stance),
	}, "")
	if err != nil {
		slog.Error("failed to render judge template", "session_id", sess.ID, "error", err)
		return fallbackEvaluation(sess.ID)
	}

	raw, err := e.client.Send(ctx, instruction, buildTranscript(turns), nil)
	if err != nil {
		slog.Warn("evaluation call failed, using default score", "session_id", sess.ID, "error", err)
		return fallbackEvaluation(sess.ID)
	}

	eval, ok := parseEvaluation(raw)
	if !ok {
		slog.Warn("evaluation response unparseable, using default score", "session_id", sess.ID)
		return fallbackEvaluation(sess.ID)
	}

	eval.SessionID = sess.ID
	eval.CreatedAt = time.Now()
	return eval
}

// buildTranscript serializes turns as speaker-tagged lines.
func buildTranscript(turns []*core.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		speaker := "Student"
		if t.Sender == core.SenderAI {
			speaker = "Opponent"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// parseEvaluation parses the judge response with the same layered
// strategy as the turn normalizer. All four fields must be present and
// correctly typed; numeric scores are rounded then clamped into [1,5],
// never dropped.
func parseEvaluation(raw string) (*core.Evaluation, bool) {
	obj := decodeObject(llm.StripFences(raw))
	if obj == nil {
		return nil, false
	}

	clarity, ok1 := scoreFrom(obj, "clarity")
	evidence, ok2 := scoreFrom(obj, "evidence")
	relevance, ok3 := scoreFrom(obj, "relevance")
	comment, ok4 := obj["comment"].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, false
	}

	return &core.Evaluation{
		Clarity:   clarity,
		Evidence:  evidence,
		Relevance: relevance,
		Comment:   comment,
	}, true
}

func scoreFrom(obj map[string]any, key string) (int, bool) {
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return clampScore(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return clampScore(f), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return clampScore(f), true
	}
	return 0, false
}

func clampScore(f float64) int {
	n := int(math.Round(f))
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

func fallbackEvaluation(sessionID string) *core.Evaluation {
	return &core.Evaluation{
		SessionID: sessionID,
		Clarity:   fallbackScore,
		Evidence:  fallbackScore,
		Relevance: fallbackScore,
		Comment:   fallbackComment,
		CreatedAt: time.Now(),
	}
}
