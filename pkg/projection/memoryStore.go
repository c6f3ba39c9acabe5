package projection

import (
	"context"
	"sync"
)

// MemoryStore is an in-process DocumentStore. It backs tests and is the
// reference model the persistent stores must agree with.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Projection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Projection)}
}

func (s *MemoryStore) Get(ctx context.Context, targetID string) (*Projection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[targetID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (s *MemoryStore) Put(ctx context.Context, targetID string, p *Projection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[targetID] = clone(p)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[targetID]; !ok {
		return ErrNotFound
	}
	delete(s.docs, targetID)
	return nil
}

// Len reports the number of stored projections.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func clone(p *Projection) *Projection {
	out := *p
	out.AppliedEvents = append([]string(nil), p.AppliedEvents...)
	if p.Fields != nil {
		out.Fields = make(map[string]string, len(p.Fields))
		for k, v := range p.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}
