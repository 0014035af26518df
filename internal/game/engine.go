package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/tastehub/server/internal/config"
	"github.com/tastehub/server/internal/store"
)

// Store persists full game-state snapshots.
type Store interface {
	Load(ctx context.Context) (*store.Snapshot, error)
	Save(ctx context.Context, snap *store.Snapshot) error
}

// Broadcaster receives the publish step that follows every accepted
// mutation. Implementations fan the messages out to connected viewers;
// the engine itself stays transport-agnostic.
type Broadcaster interface {
	GameData(snap *store.Snapshot)
	UserUpdate(users []string)
	RevealMode(on bool)
	AdminNotice(message string)
}

type noopBroadcaster struct{}

func (noopBroadcaster) GameData(*store.Snapshot) {}
func (noopBroadcaster) UserUpdate([]string)      {}
func (noopBroadcaster) RevealMode(bool)          {}
func (noopBroadcaster) AdminNotice(string)       {}

// ImportDocument is a snapshot document submitted for wholesale import.
type ImportDocument struct {
	Chips      []string    `json:"chips"`
	Votes      store.Votes `json:"votes"`
	RevealMode bool        `json:"revealMode"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// ImportStats summarizes the result of an accepted import.
type ImportStats struct {
	Chips          int  `json:"chips"`
	UsersWithVotes int  `json:"users"`
	RevealMode     bool `json:"revealMode"`
}

// ExportDocument is a self-contained backup of the game state.
type ExportDocument struct {
	*store.Snapshot
	BackupCreated time.Time `json:"backupCreated"`
}

// HealthStats summarizes the game state for the health endpoint.
type HealthStats struct {
	ActiveUsers int       `json:"activeUsers"`
	ChipCount   int       `json:"chipCount"`
	TotalVotes  int       `json:"totalVotes"`
	RevealMode  bool      `json:"revealMode"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Engine owns the authoritative game state. Every mutation entry point
// funnels through it: validate, mutate under the lock, persist, publish.
// RemoveChip touches both the chip list and every participant's vote map,
// so the whole read-modify-write runs as one critical section.
type Engine struct {
	mu    sync.Mutex
	state *State

	store Store
	bc    Broadcaster
	clock clockwork.Clock
	cfg   *config.Config
}

// NewEngine creates an engine seeded with the configured default chips.
// Call Load to adopt a persisted snapshot before serving traffic.
func NewEngine(st Store, cfg *config.Config, clock clockwork.Clock) *Engine {
	return &Engine{
		state: newState(cfg.DefaultChips, clock.Now().UTC()),
		store: st,
		bc:    noopBroadcaster{},
		clock: clock,
		cfg:   cfg,
	}
}

// SetBroadcaster attaches the publish step. Must be called before the
// engine starts accepting mutations.
func (e *Engine) SetBroadcaster(bc Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bc = bc
}

// Load adopts the persisted snapshot. A missing file seeds defaults and
// writes the initial snapshot; a corrupt file falls back to defaults.
// Load never fails the startup.
func (e *Engine) Load(ctx context.Context) {
	snap, err := e.store.Load(ctx)
	switch {
	case err == nil:
		e.mu.Lock()
		e.state = stateFromSnapshot(snap)
		e.mu.Unlock()
		log.Info().
			Int("chips", len(snap.Chips)).
			Int("users_with_votes", len(snap.Votes)).
			Msg("game data loaded from file")
	case errors.Is(err, store.ErrNotFound):
		log.Info().Msg("no existing data file found, starting fresh")
		e.persist(ctx, e.SnapshotState())
	case errors.Is(err, store.ErrCorrupt):
		log.Error().Err(err).Msg("data file corrupt, starting fresh")
	default:
		log.Error().Err(err).Msg("failed to load game data, starting fresh")
	}
}

// Join adds name to the active participant roster. Idempotent.
func (e *Engine) Join(ctx context.Context, name string) {
	e.mu.Lock()
	e.state.activeUsers[name] = true
	e.state.lastUpdated = e.clock.Now().UTC()
	snap := e.state.snapshot()
	bc := e.bc
	e.mu.Unlock()

	log.Info().Str("user", name).Msg("participant joined the tasting")
	e.persist(ctx, snap)
	bc.UserUpdate(snap.ActiveUsers)
}

// AddChip appends a new chip. Empty or duplicate names are ignored
// without error.
func (e *Engine) AddChip(ctx context.Context, name string, isAdmin bool) error {
	if !isAdmin {
		return ErrUnauthorized
	}

	e.mu.Lock()
	if name == "" || e.state.hasChip(name) {
		e.mu.Unlock()
		return nil
	}
	e.state.chips = append(e.state.chips, name)
	e.state.lastUpdated = e.clock.Now().UTC()
	snap := e.state.snapshot()
	bc := e.bc
	e.mu.Unlock()

	log.Info().Str("chip", name).Msg("admin added chip")
	e.persist(ctx, snap)
	bc.GameData(snap)
	return nil
}

// RemoveChip removes a chip and every vote recorded for it. Returns
// whether a chip was actually removed so the caller can confirm.
func (e *Engine) RemoveChip(ctx context.Context, name string, isAdmin bool) (bool, error) {
	if !isAdmin {
		return false, ErrUnauthorized
	}

	e.mu.Lock()
	if !e.state.removeChip(name) {
		e.mu.Unlock()
		return false, nil
	}
	e.state.lastUpdated = e.clock.Now().UTC()
	snap := e.state.snapshot()
	bc := e.bc
	e.mu.Unlock()

	log.Info().Str("chip", name).Msg("admin removed chip")
	e.persist(ctx, snap)
	bc.GameData(snap)
	return true, nil
}

// SubmitVote records a rating for one (participant, chip, criterion)
// triple. Overwrites any prior rating; last write wins.
func (e *Engine) SubmitVote(ctx context.Context, user, chip, criterion string, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	e.mu.Lock()
	if e.state.votes[user] == nil {
		e.state.votes[user] = make(map[string]map[string]int)
	}
	if e.state.votes[user][chip] == nil {
		e.state.votes[user][chip] = make(map[string]int)
	}
	e.state.votes[user][chip][criterion] = rating
	e.state.lastUpdated = e.clock.Now().UTC()
	snap := e.state.snapshot()
	bc := e.bc
	e.mu.Unlock()

	log.Info().
		Str("user", user).
		Str("chip", chip).
		Str("criterion", criterion).
		Int("rating", rating).
		Msg("vote recorded")
	e.persist(ctx, snap)
	bc.GameData(snap)
	return nil
}

// ToggleReveal sets the reveal mode. Idempotent when unchanged.
func (e *Engine) ToggleReveal(ctx context.Context, on bool, isAdmin bool) error {
	if !isAdmin {
		return ErrUnauthorized
	}

	e.mu.Lock()
	e.state.revealMode = on
	e.state.lastUpdated = e.clock.Now().UTC()
	snap := e.state.snapshot()
	bc := e.bc
	e.mu.Unlock()

	log.Info().Bool("reveal", on).Msg("admin toggled reveal mode")
	e.persist(ctx, snap)
	bc.RevealMode(on)
	bc.GameData(snap)
	return nil
}

// Reset wipes the game back to the configured default chips. Votes and
// the participant roster are cleared; connected users must rejoin to
// reappear.
func (e *Engine) Reset(ctx context.Context, isAdmin bool) error {
	if !isAdmin {
		return ErrUnauthorized
	}

	e.mu.Lock()
	e.state = newState(e.cfg.DefaultChips, e.clock.Now().UTC())
	snap := e.state.snapshot()
	bc := e.bc
	e.mu.Unlock()

	log.Info().Msg("admin reset the game")
	e.persist(ctx, snap)
	bc.GameData(snap)
	bc.RevealMode(false)
	bc.AdminNotice("Game reset successfully!")
	return nil
}

// Import replaces chips, votes and reveal mode wholesale from the
// document. The live participant roster is preserved.
func (e *Engine) Import(ctx context.Context, doc ImportDocument, isAdmin bool) (ImportStats, error) {
	if !isAdmin {
		return ImportStats{}, ErrUnauthorized
	}
	if doc.Chips == nil || doc.Votes == nil {
		return ImportStats{}, ErrInvalidImport
	}

	now := e.clock.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	e.mu.Lock()
	e.state.chips = append([]string(nil), doc.Chips...)
	e.state.votes = (&store.Snapshot{Votes: doc.Votes}).Clone().Votes
	e.state.revealMode = doc.RevealMode
	e.state.createdAt = createdAt
	e.state.lastUpdated = now
	e.state.importedAt = &now
	snap := e.state.snapshot()
	bc := e.bc
	e.mu.Unlock()

	stats := ImportStats{
		Chips:          len(snap.Chips),
		UsersWithVotes: len(snap.Votes),
		RevealMode:     snap.RevealMode,
	}

	log.Info().
		Int("chips", stats.Chips).
		Int("users_with_votes", stats.UsersWithVotes).
		Msg("admin imported game data")
	e.persist(ctx, snap)
	bc.GameData(snap)
	bc.RevealMode(snap.RevealMode)
	return stats, nil
}

// Export returns the full state as a self-contained backup document.
// The capability check happens at the HTTP layer, which compares the
// provided secret per call.
func (e *Engine) Export() ExportDocument {
	return ExportDocument{
		Snapshot:      e.SnapshotState(),
		BackupCreated: e.clock.Now().UTC(),
	}
}

// SnapshotState returns a deep copy of the current state.
func (e *Engine) SnapshotState() *store.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.snapshot()
}

// HealthStats returns summary counters for the health endpoint.
func (e *Engine) HealthStats() HealthStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return HealthStats{
		ActiveUsers: len(e.state.activeUsers),
		ChipCount:   len(e.state.chips),
		TotalVotes:  len(e.state.votes),
		RevealMode:  e.state.revealMode,
		LastUpdated: e.state.lastUpdated,
	}
}

// SaveNow flushes the current state to the store, stamping lastUpdated.
// Used by the autosave loop and the shutdown path.
func (e *Engine) SaveNow(ctx context.Context) error {
	e.mu.Lock()
	e.state.lastUpdated = e.clock.Now().UTC()
	snap := e.state.snapshot()
	e.mu.Unlock()

	if err := e.store.Save(ctx, snap); err != nil {
		return err
	}
	log.Debug().Msg("game data saved to file")
	return nil
}

// RunAutosave periodically flushes the state as a safety net for anything
// not persisted on write. Blocks until ctx is cancelled.
func (e *Engine) RunAutosave(ctx context.Context, interval time.Duration) {
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("autosave started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("autosave stopped")
			return
		case <-ticker.Chan():
			if err := e.SaveNow(ctx); err != nil {
				log.Error().Err(err).Msg("autosave failed")
			}
		}
	}
}

// persist writes the snapshot after a mutation. A failed save is logged
// and swallowed; the in-memory mutation stands and the periodic autosave
// retries.
func (e *Engine) persist(ctx context.Context, snap *store.Snapshot) {
	if err := e.store.Save(ctx, snap); err != nil {
		log.Error().Err(err).Msg("failed to save game data")
	}
}
