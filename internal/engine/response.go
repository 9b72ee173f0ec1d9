package engine

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/alienxp03/sparring/internal/core"
	"github.com/alienxp03/sparring/internal/llm"
)

// messageFields are the accepted names for the message-like field in a
// structured model reply, in priority order.
var messageFields = []string{"aiMessage", "message", "reply", "text", "content"}

var (
	// aiMessageRe recovers the message from otherwise-invalid JSON.
	aiMessageRe = regexp.MustCompile(`"aiMessage"\s*:\s*("(?:[^"\\]|\\.)*")`)

	// inlineLabelRe matches labeling artifacts the model sometimes
	// leaks into the message text, e.g. [labels: claim, reason].
	inlineLabelRe = regexp.MustCompile(`\[\s*labels?\s*:[^\]]*\]`)
)

// turnReply is a normalized model turn.
type turnReply struct {
	Message string
	Label   core.Label
}

// parseTurnReply extracts a displayable turn from unpredictable model
// output. It never fails: the final fallback is the fence-stripped text
// verbatim with label "other".
func parseTurnReply(raw string) turnReply {
	stripped := llm.StripFences(raw)

	if obj := decodeObject(stripped); obj != nil {
		if msg, ok := messageFrom(obj); ok {
			return turnReply{
				Message: scrubInlineLabels(msg),
				Label:   labelFrom(obj),
			}
		}
	}

	if m := aiMessageRe.FindStringSubmatch(stripped); m != nil {
		var msg string
		if err := json.Unmarshal([]byte(m[1]), &msg); err == nil && strings.TrimSpace(msg) != "" {
			return turnReply{Message: scrubInlineLabels(msg), Label: core.LabelOther}
		}
	}

	return turnReply{Message: strings.TrimSpace(stripped), Label: core.LabelOther}
}

// decodeObject tries a direct parse, then the first balanced {...} span.
func decodeObject(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj
	}
	if span, ok := llm.FirstJSONObject(s); ok {
		if err := json.Unmarshal([]byte(span), &obj); err == nil {
			return obj
		}
	}
	return nil
}

func messageFrom(obj map[string]any) (string, bool) {
	for _, field := range messageFields {
		if v, ok := obj[field]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
	}
	return "", false
}

// labelFrom accepts either a "labels" array or a scalar "label" field.
func labelFrom(obj map[string]any) core.Label {
	if v, ok := obj["labels"]; ok {
		if arr, ok := v.([]any); ok && len(arr) > 0 {
			if s, ok := arr[0].(string); ok {
				return core.ParseLabel(strings.ToLower(strings.TrimSpace(s)))
			}
		}
	}
	if v, ok := obj["label"]; ok {
		if s, ok := v.(string); ok {
			return core.ParseLabel(strings.ToLower(strings.TrimSpace(s)))
		}
	}
	return core.LabelOther
}

// scrubInlineLabels removes leaked bookkeeping tokens from the message
// shown to the participant.
func scrubInlineLabels(s string) string {
	return strings.TrimSpace(inlineLabelRe.ReplaceAllString(s, ""))
}
