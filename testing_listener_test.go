package libemit

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

type mockListener struct {
	mock.Mock
}

func (m *mockListener) OnEvent(receiver any, args ...any) {
	m.Called(receiver, args)
}

type call struct {
	name     string
	receiver any
	args     []any
}

// spyListener records its invocations into a shared journal so tests can assert on
// cross-listener delivery order.
type spyListener struct {
	name    string
	journal *journal
	onEvent func(receiver any, args ...any)
}

func (s *spyListener) OnEvent(receiver any, args ...any) {
	s.journal.add(call{name: s.name, receiver: receiver, args: args})
	if s.onEvent != nil {
		s.onEvent(receiver, args...)
	}
}

type journal struct {
	mu    sync.Mutex
	calls []call
}

func (j *journal) add(c call) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, c)
}

func (j *journal) names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	names := make([]string, len(j.calls))
	for i, c := range j.calls {
		names[i] = c.name
	}
	return names
}

func (j *journal) all() []call {
	j.mu.Lock()
	defer j.mu.Unlock()

	calls := make([]call, len(j.calls))
	copy(calls, j.calls)
	return calls
}

func (j *journal) reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = nil
}

func (j *journal) spy(name string) *spyListener {
	return &spyListener{name: name, journal: j}
}

// replayProducer replays fixed arguments per event.
type replayProducer map[string][]any

func (p replayProducer) InitialEvent(event string) ([]any, bool) {
	args, ok := p[event]
	return args, ok
}
