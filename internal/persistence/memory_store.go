package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryKey struct {
	documentID string
	chunkIndex int
	targetLang string
}

// MemoryStore is an in-process Store with the same semantics as SQLiteStore.
type MemoryStore struct {
	locks *DocumentLocks

	mu      sync.RWMutex
	entries map[memoryKey]Entry
	runs    []RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:   NewDocumentLocks(),
		entries: make(map[memoryKey]Entry),
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[memoryKey{key.DocumentID, key.ChunkIndex, key.TargetLanguage}]
	if !ok || e.SourceHash != key.SourceHash {
		return "", false, nil
	}
	return e.Translation, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key Key, translation string) error {
	unlock := s.locks.Lock(key.DocumentID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memoryKey{key.DocumentID, key.ChunkIndex, key.TargetLanguage}] = Entry{
		Key:         key,
		Translation: translation,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) ListDocument(_ context.Context, documentID, targetLanguage string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]Entry, 0)
	for k, e := range s.entries {
		if k.documentID == documentID && k.targetLang == targetLanguage {
			ret = append(ret, e)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ChunkIndex < ret[j].ChunkIndex })
	return ret, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].RunID == run.RunID {
			s.runs[i] = run
			return nil
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

func (s *MemoryStore) LoadRuns(_ context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := append([]RunRecord(nil), s.runs...)
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].StartedAt.After(ret[j].StartedAt) })
	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}
	return ret, nil
}

// NopStore is used when caching is disabled: every Get misses and Put
// discards the value.
type NopStore struct{}

func (NopStore) Get(context.Context, Key) (string, bool, error) { return "", false, nil }

func (NopStore) Put(context.Context, Key, string) error { return nil }

func (NopStore) ListDocument(context.Context, string, string) ([]Entry, error) { return nil, nil }
