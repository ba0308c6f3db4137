package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

// MemoryRepository is a process-local identity store, used when no database
// is configured and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []domain.StoredRecord
	titles  map[string]struct{}
	embeds  map[string]struct{}
	now     func() time.Time
}

var _ ports.IdentityStore = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		titles: map[string]struct{}{},
		embeds: map[string]struct{}{},
		now:    time.Now,
	}
}

// ExistsByTitle reports whether the title was accepted before.
func (m *MemoryRepository) ExistsByTitle(_ context.Context, title string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.titles[title]
	return ok, nil
}

// ExistsByEmbedReference reports whether the embed reference was accepted before.
func (m *MemoryRepository) ExistsByEmbedReference(_ context.Context, ref string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.embeds[ref]
	return ok, nil
}

// Insert appends the record unless either identity key is taken.
func (m *MemoryRepository) Insert(_ context.Context, record domain.DetailRecord) (domain.StoredRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.StoredRecord{}, fmt.Errorf("%w: generate id: %w", domain.ErrStorage, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, titleTaken := m.titles[record.Title]
	_, embedTaken := m.embeds[record.EmbedReference]
	if titleTaken || embedTaken {
		return domain.StoredRecord{}, fmt.Errorf("%w: %q", domain.ErrAlreadyExists, record.Title)
	}

	record.Categories = slices.Clone(record.Categories)
	record.Fighters = slices.Clone(record.Fighters)
	stored := domain.StoredRecord{
		ID:           id.String(),
		DetailRecord: record,
		CreatedAt:    m.now().UTC(),
	}
	m.records = append(m.records, stored)
	m.titles[record.Title] = struct{}{}
	m.embeds[record.EmbedReference] = struct{}{}
	return stored, nil
}

// Records returns a snapshot in insertion order.
func (m *MemoryRepository) Records() []domain.StoredRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}
