// Package blacklist holds the set of comment authors the bot never answers.
package blacklist

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptyEntry        = errors.New("blacklist entry needs a user_id or a user_name")
	ErrClearNotConfirmed = errors.New("clear_all must be set to true to clear the blacklist")
)

type Entry struct {
	UserID   string `json:"user_id,omitempty" yaml:"user_id"`
	UserName string `json:"user_name,omitempty" yaml:"user_name"`
}

// Blank reports whether the entry names nobody once whitespace is trimmed.
func (e Entry) Blank() bool {
	return strings.TrimSpace(e.UserID) == "" && strings.TrimSpace(e.UserName) == ""
}

// Matches reports whether other names the same author: same id, or same
// name compared case-insensitively.
func (e Entry) Matches(other Entry) bool {
	if e.UserID != "" && e.UserID == other.UserID {
		return true
	}
	return e.UserName != "" && other.UserName != "" && foldName(e.UserName) == foldName(other.UserName)
}

type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{}
	if _, err := r.Add(entries); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace swaps the whole set.
func (r *Registry) Replace(entries []Entry) error {
	cleaned, err := validate(entries)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = cleaned
	return nil
}

// Add inserts the entries no existing entry already matches and returns how many were added.
func (r *Registry) Add(entries []Entry) (int, error) {
	cleaned, err := validate(entries)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, entry := range cleaned {
		if r.matchLocked(entry) {
			continue
		}
		r.entries = append(r.entries, entry)
		added++
	}
	return added, nil
}

// Remove deletes every entry matched by any of the given entries and returns how many were removed.
func (r *Registry) Remove(entries []Entry) (int, error) {
	cleaned, err := validate(entries)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	removed := 0
	for _, existing := range r.entries {
		if matchesAny(cleaned, existing) {
			removed++
			continue
		}
		kept = append(kept, existing)
	}
	r.entries = kept
	return removed, nil
}

// Clear empties the set when confirm is true and returns the number of entries dropped.
func (r *Registry) Clear(confirm bool) (int, error) {
	if !confirm {
		return 0, ErrClearNotConfirmed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	count := len(r.entries)
	r.entries = nil
	return count, nil
}

func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IsBlocked reports whether a comment author is blacklisted by id or name.
func (r *Registry) IsBlocked(authorID, authorName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matchLocked(Entry{UserID: authorID, UserName: authorName})
}

func (r *Registry) matchLocked(candidate Entry) bool {
	for _, existing := range r.entries {
		if existing.Matches(candidate) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []Entry, existing Entry) bool {
	for _, p := range patterns {
		if p.Matches(existing) {
			return true
		}
	}
	return false
}

func validate(entries []Entry) ([]Entry, error) {
	cleaned := make([]Entry, 0, len(entries))
	for i, entry := range entries {
		if entry.Blank() {
			return nil, fmt.Errorf("entry %d: %w", i, ErrEmptyEntry)
		}
		entry.UserID = strings.TrimSpace(entry.UserID)
		entry.UserName = strings.TrimSpace(entry.UserName)
		cleaned = append(cleaned, entry)
	}
	return cleaned, nil
}

// foldName case-folds a display name. A new Caser is built per call since
// Casers carry state and must not be shared between goroutines.
func foldName(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}
