package progress

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

type memoryKey struct{ lesson, viewer string }

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]Record), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, lessonID, viewer string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[memoryKey{lessonID, viewer}]
	return r, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.LastAccess.IsZero() {
		r.LastAccess = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[memoryKey{r.LessonID, r.Viewer}] = r
	return nil
}

func (m *MemoryStore) List(_ context.Context, viewer string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for k, r := range m.records {
		if k.viewer == viewer {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := b.LastAccess.Compare(a.LastAccess); c != 0 {
			return c
		}
		return cmp.Compare(a.LessonID, b.LessonID)
	})
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
