package engine

import "slices"

// orderedSet keeps insertion order so mutations replay deterministically.
type orderedSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{index: make(map[T]struct{})}
}

func (s *orderedSet[T]) add(v T) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet[T]) has(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *orderedSet[T]) values() []T { return slices.Clone(s.items) }

func (s *orderedSet[T]) len() int { return len(s.items) }

func (s *orderedSet[T]) clear() {
	s.items = s.items[:0]
	clear(s.index)
}
