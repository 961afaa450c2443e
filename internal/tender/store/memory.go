package store

import (
	"context"
	"sync"
	"time"

	"tenderwatch/internal/tender/models"
)

// MemoryStore is an in-memory tender store for tests and local development.
// Tenders keep their insertion order, matching the ordering guarantee of the
// PostgreSQL store.
type MemoryStore struct {
	mu      sync.RWMutex
	tenders []models.Tender
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Seed appends tenders to the store.
func (s *MemoryStore) Seed(tenders ...models.Tender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenders = append(s.tenders, tenders...)
}

func (s *MemoryStore) All(_ context.Context) ([]models.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Tender, len(s.tenders))
	copy(out, s.tenders)
	return out, nil
}

func (s *MemoryStore) ByDateRange(_ context.Context, from, to time.Time) ([]models.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Tender
	for _, t := range s.tenders {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) ByCategory(_ context.Context, category string) ([]models.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Tender
	for _, t := range s.tenders {
		if t.Category != nil && *t.Category == category {
			out = append(out, t)
		}
	}
	return out, nil
}
