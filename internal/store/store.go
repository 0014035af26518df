package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates no snapshot file exists yet.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt indicates the snapshot file could not be parsed.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// Votes maps participant -> chip -> criterion -> rating.
type Votes map[string]map[string]map[string]int

// Snapshot is the full serialized game state at a point in time. The field
// names match the game-data.json layout so existing data files load as-is.
type Snapshot struct {
	Chips       []string   `json:"chips"`
	Votes       Votes      `json:"votes"`
	ActiveUsers []string   `json:"activeUsers"`
	RevealMode  bool       `json:"revealMode"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUpdated time.Time  `json:"lastUpdated"`
	ImportedAt  *time.Time `json:"importedAt,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Chips = append([]string(nil), s.Chips...)
	out.ActiveUsers = append([]string(nil), s.ActiveUsers...)
	out.Votes = make(Votes, len(s.Votes))
	for user, chips := range s.Votes {
		userVotes := make(map[string]map[string]int, len(chips))
		for chip, ratings := range chips {
			chipRatings := make(map[string]int, len(ratings))
			for criterion, rating := range ratings {
				chipRatings[criterion] = rating
			}
			userVotes[chip] = chipRatings
		}
		out.Votes[user] = userVotes
	}
	if s.ImportedAt != nil {
		imported := *s.ImportedAt
		out.ImportedAt = &imported
	}
	return &out
}

// FileStore persists snapshots to a single JSON file. Writes are atomic
// (temp file then rename) and serialized relative to each other.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the current snapshot. Returns ErrNotFound if no file exists
// and ErrCorrupt if the file contents cannot be parsed.
func (fs *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Votes == nil {
		snap.Votes = Votes{}
	}
	if snap.Chips == nil {
		snap.Chips = []string{}
	}

	return &snap, nil
}

// Save writes the snapshot, replacing any previous file. The participant
// list is sorted so files are deterministic.
func (fs *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := snap.Clone()
	sort.Strings(out.ActiveUsers)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".game-data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	return nil
}
