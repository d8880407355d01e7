package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recklessbear/rbsite/internal/models"
	"github.com/recklessbear/rbsite/internal/services"
)

// memoryStore keeps participant rows in memory. It backs development
// mode (no RBSITE_DATABASE_SQLITE_PATH set) and the handler tests; the
// semantics match the SQLite store.
type memoryStore struct {
	mu           sync.RWMutex
	participants map[string]*models.Participant // by record id
}

var _ services.ParticipantStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{participants: map[string]*models.Participant{}}
}

func (s *memoryStore) GetParticipantByEmail(_ context.Context, email string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) UpsertParticipant(_ context.Context, p *models.Participant) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants {
		if strings.EqualFold(existing.Email, p.Email) {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *p
	s.participants[cp.RecordID] = &cp
	out := cp
	return &out, nil
}

func (s *memoryStore) IncrementProgress(_ context.Context, recordID string) (*models.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[recordID]
	if !ok {
		return nil, false, nil
	}
	if p.LogosFound >= models.TotalLogosRequired {
		cp := *p
		return &cp, true, nil
	}
	p.LogosFound++
	if p.LogosFound >= models.TotalLogosRequired {
		p.Status = models.StatusCompleted
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, false, nil
}

func (s *memoryStore) ListParticipants(_ context.Context) ([]*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RecordID < out[j].RecordID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
