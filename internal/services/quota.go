package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/logger"
)

// dateKey is the calendar-day key used in the quota document.
const dateKey = "2006-01-02"

// QuotaStore tracks per-identity daily attempt counts in a single JSON
// document keyed by email, then by date. The whole read-check-increment-save
// cycle runs under one mutex so concurrent authorizations can neither admit
// past the limit nor clobber each other's counts.
type QuotaStore struct {
	mu       sync.Mutex
	path     string
	maxDaily int
	exempt   string
}

// QuotaDecision is the outcome of an authorization attempt. Attempt is the
// attempt number granted (or the count already used when denied); it is
// meaningless for the exempt identity.
type QuotaDecision struct {
	Allowed bool
	Attempt int
	Exempt  bool
}

// NewQuotaStore creates a store persisting to path. exempt is the identity
// that bypasses the quota entirely.
func NewQuotaStore(path string, maxDaily int, exempt string) *QuotaStore {
	return &QuotaStore{path: path, maxDaily: maxDaily, exempt: exempt}
}

// Authorize admits or denies a new round for email on the given day. The
// exempt identity is always admitted and never touches the document. A
// denial does not increment the count. A failed save is returned as an
// error: granting play without recording the attempt would make the quota
// unenforceable.
func (s *QuotaStore) Authorize(email string, today time.Time) (QuotaDecision, error) {
	if email == s.exempt {
		return QuotaDecision{Allowed: true, Exempt: true}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	day := today.Format(dateKey)

	counts, ok := data[email]
	if !ok {
		counts = make(map[string]int)
		data[email] = counts
	}

	current := counts[day]
	if current >= s.maxDaily {
		return QuotaDecision{Allowed: false, Attempt: current}, nil
	}

	counts[day] = current + 1
	if err := s.save(data); err != nil {
		return QuotaDecision{}, fmt.Errorf("persist attempt count: %w", err)
	}
	return QuotaDecision{Allowed: true, Attempt: current + 1}, nil
}

// load reads the document, treating a missing or unreadable file as empty.
// Read failures only cost prior counts for the day, never availability.
func (s *QuotaStore) load() map[string]map[string]int {
	data := make(map[string]map[string]int)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warningf("quota store unreadable, treating as empty: %v", err)
		}
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		logger.Warningf("quota store corrupt, treating as empty: %v", err)
		return make(map[string]map[string]int)
	}
	return data
}

// save rewrites the whole document via a temp file and rename so a crash
// mid-write never leaves a truncated store behind.
func (s *QuotaStore) save(data map[string]map[string]int) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".quota-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
