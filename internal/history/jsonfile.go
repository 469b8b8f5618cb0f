package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/service"
)

// jsonEntry matches the on-disk layout of one identity's record.
type jsonEntry struct {
	LastSeen   time.Time `json:"last_seen"`
	FraudCount int       `json:"fraud_count"`
}

// JSONStore keeps the full identity -> count mapping in memory and rewrites
// the backing document atomically (temp file + rename) on every fraud
// mutation, so a crash never leaves a half-written file and no returned
// increment is ever lost.
type JSONStore struct {
	entries map[string]*jsonEntry
	path    string
	mu      sync.RWMutex
}

var _ service.HistoryStore = (*JSONStore)(nil)

// NewJSONStore loads (or creates) the history document at path.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	s := &JSONStore{
		path:    path,
		entries: make(map[string]*jsonEntry),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// load reads the document, quarantining a corrupted file rather than
// discarding it.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		// First run: write an empty document so writability problems
		// surface at startup, not mid-run.
		if flushErr := s.flushLocked(); flushErr != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, flushErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102-150405"))
		if renameErr := os.Rename(s.path, quarantine); renameErr != nil {
			return fmt.Errorf("history file corrupted and could not be quarantined: %w", renameErr)
		}
		slog.Warn("History file corrupted, starting with empty history",
			"path", s.path,
			"quarantined_as", quarantine,
			"error", err)
		s.entries = make(map[string]*jsonEntry)
	}

	return nil
}

// Get returns the current fraud count for an identity, 0 if unknown.
func (s *JSONStore) Get(ctx context.Context, identity string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateIdentity(identity); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[identity]; ok {
		return e.FraudCount, nil
	}
	return 0, nil
}

// RecordVerdict applies one verdict. Fraud verdicts increment and persist
// under the store lock; if the durable write fails the in-memory increment
// is rolled back so memory and disk never diverge.
func (s *JSONStore) RecordVerdict(ctx context.Context, identity string, isFraud bool) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateIdentity(identity); err != nil {
		return 0, err
	}

	if !isFraud {
		return s.Get(ctx, identity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, existed := s.entries[identity]
	if !existed {
		e = &jsonEntry{}
		s.entries[identity] = e
	}

	prevCount, prevSeen := e.FraudCount, e.LastSeen
	e.FraudCount++
	e.LastSeen = time.Now().UTC()

	if err := s.flushLocked(); err != nil {
		if existed {
			e.FraudCount, e.LastSeen = prevCount, prevSeen
		} else {
			delete(s.entries, identity)
		}
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return e.FraudCount, nil
}

// Entries returns all known identities, sorted by identity.
func (s *JSONStore) Entries(ctx context.Context) ([]model.HistoryEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.HistoryEntry, 0, len(s.entries))
	for identity, e := range s.entries {
		entries = append(entries, model.HistoryEntry{
			Identity:   identity,
			FraudCount: e.FraudCount,
			LastSeen:   e.LastSeen,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identity < entries[j].Identity
	})

	return entries, nil
}

// Close is a no-op; every mutation is already durable.
func (s *JSONStore) Close() error {
	return nil
}

// flushLocked rewrites the whole document atomically. Callers must hold the
// write lock.
func (s *JSONStore) flushLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".fraud_history-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	return nil
}
