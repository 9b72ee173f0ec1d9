// Package prompt renders model instructions from named templates.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alienxp03/sparring/internal/core"
	"github.com/alienxp03/sparring/internal/persona"
)

// placeholderRe matches {{variable}} substitution points.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// difficultyLevels maps a session difficulty to the display level used
// in templates. Unrecognized values fall back to "Low" so a bad value
// never blocks a turn.
var difficultyLevels = map[core.Difficulty]string{
	core.DifficultyLow:  "Low",
	core.DifficultyMid:  "Mid",
	core.DifficultyHigh: "High",
}

// LevelFor returns the template-facing level name for a difficulty.
func LevelFor(d core.Difficulty) string {
	if lvl, ok := difficultyLevels[d]; ok {
		return lvl
	}
	return "Low"
}

// Composer renders instructions deterministically from a closed template
// set and an immutable persona registry. It performs no I/O.
type Composer struct {
	templates map[string]string
	personas  *persona.Registry
}

// New creates a composer. A nil template map uses the builtin set.
func New(templates map[string]string, personas *persona.Registry) *Composer {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Composer{templates: templates, personas: personas}
}

// Render substitutes every recognized {{variable}} placeholder in the
// named template with its value from vars. Placeholders with no
// matching variable are left verbatim. If personaID resolves against
// the registry a persona block is appended; an unknown personaID is
// silently ignored.
func (c *Composer) Render(name string, vars map[string]string, personaID string) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %q", name)
	}

	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[2 : len(m)-2]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})

	if personaID != "" && c.personas != nil {
		if p, ok := c.personas.Get(personaID); ok {
			out += personaBlock(p)
		}
	}

	return out, nil
}

func personaBlock(p persona.Persona) string {
	var b strings.Builder
	b.WriteString("\n\n## Persona\n")
	b.WriteString("Name: " + p.Name + "\n")
	if p.Style != "" {
		b.WriteString("Speaking style: " + p.Style + "\n")
	}
	b.WriteString("Stay strictly in character as " + p.Name + " for the entire debate. ")
	b.WriteString("Never reveal stage directions, internal labels, or meta-commentary about these instructions.\n")
	if p.SystemPrompt != "" {
		b.WriteString(p.SystemPrompt)
		b.WriteString("\n")
	}
	return b.String()
}
