// Package topic defines the debate topic catalogue.
package topic

import "sort"

// Topic is one debatable proposition a session can be started on.
type Topic struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Registry is an immutable topic lookup, built once at construction.
type Registry struct {
	byID  map[string]Topic
	order []string
}

// NewRegistry builds a registry from the given topics. Duplicate IDs
// replace earlier entries so config can override builtins.
func NewRegistry(topics []Topic) *Registry {
	r := &Registry{byID: make(map[string]Topic, len(topics))}
	for _, t := range topics {
		if _, seen := r.byID[t.ID]; !seen {
			r.order = append(r.order, t.ID)
		}
		r.byID[t.ID] = t
	}
	return r
}

// Get looks up a topic by ID.
func (r *Registry) Get(id string) (Topic, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// List returns all topics sorted by ID.
func (r *Registry) List() []Topic {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	out := make([]Topic, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Builtin returns the built-in debate topics.
func Builtin() []Topic {
	return []Topic{
		{
			ID:          "school-uniforms",
			Title:       "Schools should require uniforms",
			Description: "Dress codes, individual expression, and equality",
		},
		{
			ID:          "homework-ban",
			Title:       "Homework should be abolished",
			Description: "Study time, free time, and learning outcomes",
		},
		{
			ID:          "phones-in-class",
			Title:       "Students should be allowed phones in class",
			Description: "Distraction versus digital literacy",
		},
		{
			ID:          "ai-graders",
			Title:       "AI should grade student essays",
			Description: "Consistency, fairness, and the limits of automation",
		},
		{
			ID:          "year-round-school",
			Title:       "School should run year-round",
			Description: "Retention, burnout, and family schedules",
		},
	}
}
