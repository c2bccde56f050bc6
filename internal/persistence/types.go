package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Key identifies one cached chunk translation. A hit requires the stored
// source hash to match SourceHash; any change to the chunk text is a miss.
type Key struct {
	DocumentID     string
	ChunkIndex     int
	SourceHash     string
	TargetLanguage string
}

type Entry struct {
	Key
	Translation string
	UpdatedAt   time.Time
}

// RunRecord is a persisted run report. Report holds the full JSON document.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
	Skipped    int
	Report     []byte
}

// Store is the resume cache consulted before every chunk translation.
// Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Put(ctx context.Context, key Key, translation string) error
	ListDocument(ctx context.Context, documentID, targetLanguage string) ([]Entry, error)
}

// RunStore persists run reports.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	LoadRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Hash is the content hash used in cache keys.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
