// Package data provides storage and periodic regeneration of the rendered
// artifacts for serve mode.
package data

import (
	"sync"
	"time"
)

// Artifacts is one generation run's output.
type Artifacts struct {
	Playlist     []byte
	Guide        []byte
	ChannelCount int
	ProgramCount int
	GeneratedAt  time.Time
}

// Store provides thread-safe storage for the latest generated artifacts.
type Store struct {
	mu        sync.RWMutex
	artifacts *Artifacts
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the stored artifacts.
func (s *Store) Set(a *Artifacts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts = a
}

// Get returns the latest artifacts.
func (s *Store) Get() (*Artifacts, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.artifacts == nil {
		return nil, false
	}

	return s.artifacts, true
}

// HasData returns true once a generation run has completed.
func (s *Store) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.artifacts != nil
}

// LastRun returns the completion time of the latest run.
func (s *Store) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.artifacts == nil {
		return time.Time{}
	}

	return s.artifacts.GeneratedAt
}
