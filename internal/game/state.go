package game

import (
	"sort"
	"time"

	"github.com/tastehub/server/internal/store"
)

// State is the authoritative in-memory game state. It is owned by the
// Engine and only ever mutated under the engine lock.
type State struct {
	chips       []string
	votes       store.Votes
	activeUsers map[string]bool
	revealMode  bool
	createdAt   time.Time
	lastUpdated time.Time
	importedAt  *time.Time
}

func newState(chips []string, now time.Time) *State {
	return &State{
		chips:       append([]string(nil), chips...),
		votes:       store.Votes{},
		activeUsers: make(map[string]bool),
		createdAt:   now,
		lastUpdated: now,
	}
}

func stateFromSnapshot(snap *store.Snapshot) *State {
	s := &State{
		chips:       append([]string(nil), snap.Chips...),
		votes:       snap.Clone().Votes,
		activeUsers: make(map[string]bool, len(snap.ActiveUsers)),
		revealMode:  snap.RevealMode,
		createdAt:   snap.CreatedAt,
		lastUpdated: snap.LastUpdated,
	}
	for _, user := range snap.ActiveUsers {
		s.activeUsers[user] = true
	}
	if snap.ImportedAt != nil {
		imported := *snap.ImportedAt
		s.importedAt = &imported
	}
	return s
}

// snapshot converts the state to its serialized form. The participant set
// becomes a sorted list.
func (s *State) snapshot() *store.Snapshot {
	users := make([]string, 0, len(s.activeUsers))
	for user := range s.activeUsers {
		users = append(users, user)
	}
	sort.Strings(users)

	snap := &store.Snapshot{
		Chips:       append([]string(nil), s.chips...),
		ActiveUsers: users,
		RevealMode:  s.revealMode,
		CreatedAt:   s.createdAt,
		LastUpdated: s.lastUpdated,
	}
	snap.Votes = (&store.Snapshot{Votes: s.votes}).Clone().Votes
	if s.importedAt != nil {
		imported := *s.importedAt
		snap.ImportedAt = &imported
	}
	return snap
}

func (s *State) hasChip(name string) bool {
	for _, chip := range s.chips {
		if chip == name {
			return true
		}
	}
	return false
}

func (s *State) removeChip(name string) bool {
	for i, chip := range s.chips {
		if chip != name {
			continue
		}
		s.chips = append(s.chips[:i], s.chips[i+1:]...)
		for _, chips := range s.votes {
			delete(chips, name)
		}
		return true
	}
	return false
}
