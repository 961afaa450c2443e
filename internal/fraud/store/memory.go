package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenderwatch/internal/fraud/models"
	"tenderwatch/pkg/platform/sentinel"
)

// MemoryStore is an in-memory result store for tests and local development.
// RunInTx emulates the transactional contract with append-rollback semantics:
// inserts staged by a failed callback are discarded.
type MemoryStore struct {
	mu       sync.RWMutex
	flags    []models.FraudFlag
	clusters []models.FraudCluster
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertFlag(_ context.Context, flag models.FraudFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, flag)
	return nil
}

func (s *MemoryStore) InsertCluster(_ context.Context, cluster models.FraudCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters = append(s.clusters, cluster)
	return nil
}

func (s *MemoryStore) ListFlags(_ context.Context) ([]models.FraudFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FraudFlag, len(s.flags))
	copy(out, s.flags)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListClusters(_ context.Context) ([]models.FraudCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FraudCluster, len(s.clusters))
	copy(out, s.clusters)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateFlagReview(_ context.Context, flagID uuid.UUID, status models.Status, reviewedBy string, reviewedAt time.Time) (*models.FraudFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flags {
		if s.flags[i].ID != flagID {
			continue
		}
		s.flags[i].Status = status
		by := reviewedBy
		at := reviewedAt
		s.flags[i].ReviewedBy = &by
		s.flags[i].ReviewedAt = &at
		flag := s.flags[i]
		return &flag, nil
	}
	return nil, sentinel.ErrNotFound
}

// RunInTx runs fn against a staging view and merges its inserts only when fn
// succeeds, mirroring the commit/rollback contract of the PostgreSQL runner.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx TxStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	staging := &memoryTx{}
	if err := fn(staging); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, staging.flags...)
	s.clusters = append(s.clusters, staging.clusters...)
	return nil
}

type memoryTx struct {
	flags    []models.FraudFlag
	clusters []models.FraudCluster
}

func (t *memoryTx) InsertFlag(_ context.Context, flag models.FraudFlag) error {
	t.flags = append(t.flags, flag)
	return nil
}

func (t *memoryTx) InsertCluster(_ context.Context, cluster models.FraudCluster) error {
	t.clusters = append(t.clusters, cluster)
	return nil
}
