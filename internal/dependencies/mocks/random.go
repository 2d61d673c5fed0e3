package mocks

import (
	"sync"

	"github.com/mcoot/lobbysync/internal/dependencies/random"
)

// MockRandom returns queued strings in order. Once the queue is drained it
// counts upwards through the alphabet ("AAA", "AAB", ...) so generated IDs
// stay unique and predictable.
type MockRandom struct {
	mu      sync.Mutex
	strings []string
	next    int
	counter int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// String returns the next queued result, or the next counter value
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next < len(r.strings) {
		s := r.strings[r.next]
		r.next++
		return s
	}
	if length <= 0 || alphabet == "" {
		return ""
	}
	out := make([]byte, length)
	n := r.counter
	for i := length - 1; i >= 0; i-- {
		out[i] = alphabet[n%len(alphabet)]
		n /= len(alphabet)
	}
	r.counter++
	return string(out)
}

// QueueString adds values to the result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = append(r.strings, values...)
}

// Reset clears all queued results and restarts the counter
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = nil
	r.next = 0
	r.counter = 0
}
