// Package conversation keeps the append-only record of session turns.
package conversation

import (
	"sync"

	"github.com/valpere/transbench/internal"
)

// Log is an ordered, append-only sequence of messages. Append is the only
// mutator; readers always receive copies.
type Log struct {
	mu       sync.RWMutex
	messages []internal.Message
}

// New returns a log seeded with the given messages.
func New(seed ...internal.Message) *Log {
	l := &Log{}
	l.messages = append(l.messages, seed...)
	return l
}

func (l *Log) Append(m internal.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
}

// All returns the full ordered sequence.
func (l *Log) All() []internal.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]internal.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Since returns the messages appended at or after position i.
func (l *Log) Since(i int) []internal.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(l.messages) {
		return nil
	}
	out := make([]internal.Message, len(l.messages)-i)
	copy(out, l.messages[i:])
	return out
}
