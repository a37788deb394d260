package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotSelected is returned when no usable API key has been selected.
var ErrNotSelected = errors.New("no API key selected")

// Store holds the process-wide Gemini API key and whether it is currently
// considered selected. It implements veo.CredentialProvider.
type Store struct {
	mu       sync.RWMutex
	key      string
	selected bool
}

// NewStore creates a store seeded with initial; a non-empty key starts selected.
func NewStore(initial string) *Store {
	initial = strings.TrimSpace(initial)
	return &Store{key: initial, selected: initial != ""}
}

// Select makes key the active credential.
func (s *Store) Select(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	s.mu.Lock()
	s.key = key
	s.selected = true
	s.mu.Unlock()

	log.Info().Msg("API key selected")
	return nil
}

// Selected reports whether a key is selected.
func (s *Store) Selected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Reset clears the selected flag. The key must be selected again before use.
func (s *Store) Reset() {
	s.mu.Lock()
	wasSelected := s.selected
	s.selected = false
	s.mu.Unlock()

	if wasSelected {
		log.Warn().Msg("API key selection reset")
	}
}

// Invalidate is called when the remote service rejects the key.
func (s *Store) Invalidate() {
	s.Reset()
}

// APIKey returns the selected key.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.selected || s.key == "" {
		return "", ErrNotSelected
	}
	return s.key, nil
}
