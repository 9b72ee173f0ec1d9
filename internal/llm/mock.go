package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Each call pops the next
// response or error; the last entry repeats once the script runs out.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error

	Calls       int
	LastSystem  string
	LastUser    string
	LastHistory []Message
}

func (m *MockClient) Send(_ context.Context, system, user string, history []Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.Calls
	m.Calls++
	m.LastSystem = system
	m.LastUser = user
	m.LastHistory = append([]Message(nil), history...)

	if len(m.Errs) > 0 {
		i := idx
		if i >= len(m.Errs) {
			i = len(m.Errs) - 1
		}
		if err := m.Errs[i]; err != nil {
			return "", err
		}
	}

	if len(m.Responses) == 0 {
		return "", &EmptyResponseError{}
	}
	i := idx
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}
