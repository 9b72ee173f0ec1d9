// Package persona defines behavioral profiles for the AI opponent.
package persona

import "sort"

// Persona biases the opponent's tone and strategy. The SystemPrompt is
// appended verbatim to the composed instruction when the persona is
// selected for a session.
type Persona struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Style        string `json:"style" yaml:"style"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
}

// Registry is an immutable persona lookup, built once at construction.
type Registry struct {
	byID  map[string]Persona
	order []string
}

// NewRegistry builds a registry from the given personas. Later entries
// with a duplicate ID replace earlier ones, so config-supplied personas
// can override builtins.
func NewRegistry(personas []Persona) *Registry {
	r := &Registry{byID: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		if _, seen := r.byID[p.ID]; !seen {
			r.order = append(r.order, p.ID)
		}
		r.byID[p.ID] = p
	}
	return r
}

// Get looks up a persona by ID.
func (r *Registry) Get(id string) (Persona, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// List returns all personas sorted by ID.
func (r *Registry) List() []Persona {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	out := make([]Persona, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Builtin returns the built-in opponent personas.
func Builtin() []Persona {
	return []Persona{
		{
			ID:    "professor",
			Name:  "Professor Gray",
			Style: "Measured, precise, lecture-like sentences",
			SystemPrompt: `You argue like a seasoned professor. Your approach:
- Dissect the student's reasoning step by step
- Cite the kind of evidence an academic would expect
- Point out logical gaps calmly, without mockery
- Reward precision by engaging seriously with strong points`,
		},
		{
			ID:    "attorney",
			Name:  "Attorney Vance",
			Style: "Sharp, fast, cross-examination rhythm",
			SystemPrompt: `You argue like a trial attorney. Your approach:
- Press weaknesses in the opposing argument relentlessly
- Ask pointed questions that expose missing evidence
- Keep responses punchy and confident
- Concede nothing without a fight, but stay civil`,
		},
		{
			ID:    "peer",
			Name:  "Jamie",
			Style: "Casual, encouraging, classmate energy",
			SystemPrompt: `You argue like a friendly classmate. Your approach:
- Keep the language simple and conversational
- Disagree honestly but keep the mood light
- Offer counterpoints as things to think about
- Encourage the student to back up claims with examples`,
		},
		{
			ID:    "skeptic",
			Name:  "The Skeptic",
			Style: "Dry, probing, demands evidence",
			SystemPrompt: `You argue like a professional skeptic. Your approach:
- Question every assumption before accepting it
- Ask where the evidence comes from and how reliable it is
- Distinguish correlation from causation
- Accept a point only when it is properly supported`,
		},
	}
}
