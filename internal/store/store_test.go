package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Snapshot{
		Chips: []string{"Classic Paprika", "Salt & Vinegar"},
		Votes: Votes{
			"alice": {"Classic Paprika": {"taste": 4, "appearance": 5}},
		},
		ActiveUsers: []string{"bob", "alice"},
		RevealMode:  true,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "game-data.json"))

	require.NoError(t, fs.Save(ctx, testSnapshot()))

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot().Chips, loaded.Chips)
	assert.Equal(t, testSnapshot().Votes, loaded.Votes)
	assert.True(t, loaded.RevealMode)
	// Participant set is serialized as a sorted list.
	assert.Equal(t, []string{"alice", "bob"}, loaded.ActiveUsers)
}

func TestFileStoreLoadMissing(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game-data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "game-data.json"))

	require.NoError(t, fs.Save(ctx, testSnapshot()))

	second := testSnapshot()
	second.Chips = append(second.Chips, "Sour Cream & Onion")
	require.NoError(t, fs.Save(ctx, second))

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Chips, 3)
}

func TestSnapshotClone(t *testing.T) {
	original := testSnapshot()
	clone := original.Clone()

	clone.Chips[0] = "changed"
	clone.Votes["alice"]["Classic Paprika"]["taste"] = 1
	clone.ActiveUsers[0] = "changed"

	assert.Equal(t, "Classic Paprika", original.Chips[0])
	assert.Equal(t, 4, original.Votes["alice"]["Classic Paprika"]["taste"])
	assert.Equal(t, "bob", original.ActiveUsers[0])
}
