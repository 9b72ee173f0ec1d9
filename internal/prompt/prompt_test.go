package prompt

import (
	"strings"
	"testing"

	"github.com/alienxp03/sparring/internal/core"
	"github.com/alienxp03/sparring/internal/persona"
)

func testComposer() *Composer {
	return New(nil, persona.NewRegistry(persona.Builtin()))
}

func TestRenderSubstitution(t *testing.T) {
	c := New(map[string]string{
		"test": "Topic: {{topic}}, stance: {{stance}}, turn {{turnIndex}}/{{maxTurns}}",
	}, nil)

	out, err := c.Render("test", map[string]string{
		"topic":     "School uniforms",
		"stance":    "pro",
		"turnIndex": "3",
		"maxTurns":  "20",
	}, "")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	want := "Topic: School uniforms, stance: pro, turn 3/20"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestRenderUnknownPlaceholderLeftVerbatim(t *testing.T) {
	c := New(map[string]string{"test": "known: {{topic}}, unknown: {{mystery}}"}, nil)

	out, err := c.Render("test", map[string]string{"topic": "x"}, "")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "{{mystery}}") {
		t.Errorf("unknown placeholder was not left verbatim: %q", out)
	}
}

func TestRenderMissingVarsNeverError(t *testing.T) {
	c := testComposer()
	if _, err := c.Render(TemplateBattle, map[string]string{}, ""); err != nil {
		t.Errorf("render with empty vars errored: %v", err)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	c := testComposer()
	if _, err := c.Render("nope", nil, ""); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestRenderPersonaBlock(t *testing.T) {
	c := testComposer()
	vars := map[string]string{"topic": "x", "stance": "pro", "aiStance": "con"}

	plain, err := c.Render(TemplateBattle, vars, "")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	withPersona, err := c.Render(TemplateBattle, vars, "professor")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.HasPrefix(withPersona, plain) {
		t.Error("persona block should be appended, not interleaved")
	}
	if !strings.Contains(withPersona, "Professor Gray") {
		t.Error("persona name missing from instruction")
	}
	if !strings.Contains(withPersona, "Never reveal stage directions") {
		t.Error("stage-direction prohibition missing")
	}

	// Unknown persona is silently ignored.
	unknown, err := c.Render(TemplateBattle, vars, "no-such-persona")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if unknown != plain {
		t.Error("unknown persona should leave the instruction unchanged")
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		in   core.Difficulty
		want string
	}{
		{core.DifficultyLow, "Low"},
		{core.DifficultyMid, "Mid"},
		{core.DifficultyHigh, "High"},
		{core.Difficulty("bogus"), "Low"},
		{core.Difficulty(""), "Low"},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.in); got != tt.want {
			t.Errorf("LevelFor(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
