package assistant

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type EntryType string

const (
	EntryDocumentation EntryType = "documentation"
	EntrySQL           EntryType = "sql"
)

// TrainingEntry is one unit of training data.
type TrainingEntry struct {
	ID        string
	Type      EntryType
	Question  string // only set for sql entries
	Content   string
	CreatedAt time.Time
}

type store struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries []TrainingEntry
}

func newStore(clock clockwork.Clock) *store {
	return &store{clock: clock}
}

func (s *store) add(typ EntryType, question, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := "-doc"
	if typ == EntrySQL {
		suffix = "-sql"
	}
	id := uuid.NewString() + suffix
	s.entries = append(s.entries, TrainingEntry{
		ID:        id,
		Type:      typ,
		Question:  question,
		Content:   content,
		CreatedAt: s.clock.Now().UTC(),
	})
	return id
}

func (s *store) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.entries, func(e TrainingEntry) bool { return e.ID == id })
	if i < 0 {
		return false
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return true
}

func (s *store) list() []TrainingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

func (s *store) byType(typ EntryType) []TrainingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TrainingEntry
	for _, e := range s.entries {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
