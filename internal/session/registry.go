package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/database"
	"github.com/siteclone/siteclone/internal/model"
)

// janitorInterval is how often the retention sweep runs.
const janitorInterval = time.Minute

// Registry is the in-memory session table.
//
// Lookups that miss memory fall through to the database, which is how
// sessions survive a server restart: the startup interrupted-marking
// pass leaves them resumable on disk, and recovery requests adopt them
// back into memory.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*Machine

	cfg    *config.Config
	db     *database.SessionDB
	logger *slog.Logger
}

// NewRegistry creates a session registry. db may be nil, which disables
// persistence and restart recovery.
func NewRegistry(cfg *config.Config, db *database.SessionDB, logger *slog.Logger) *Registry {
	return &Registry{
		machines: make(map[string]*Machine),
		cfg:      cfg,
		db:       db,
		logger:   logger,
	}
}

// Create allocates a new session for the given URL and options.
// The session starts in the starting state with its own output root.
func (r *Registry) Create(rawURL string, opts model.CloneOptions) (*Machine, error) {
	id := uuid.NewString()

	outputRoot, err := filepath.Abs(filepath.Join(r.cfg.OutputDir, id))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputRoot, 0750); err != nil {
		return nil, err
	}

	s := model.Session{
		ID:         id,
		URL:        rawURL,
		Status:     model.StatusStarting,
		StartedAt:  time.Now(),
		Options:    opts,
		OutputRoot: outputRoot,
	}

	m := newMachine(s, r.db, r.logger)

	r.mu.Lock()
	r.machines[id] = m
	r.mu.Unlock()

	m.persistSession(s)
	r.logger.Info("session created", "sessionID", id, "url", rawURL)
	return m, nil
}

// Get returns the in-memory machine for a session ID.
func (r *Registry) Get(id string) (*Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[id]
	return m, ok
}

// Lookup returns the machine for a session, adopting it from the
// database when it is not in memory. Returns ErrNotFound for unknown
// or expired IDs.
func (r *Registry) Lookup(ctx context.Context, id string) (*Machine, error) {
	if m, ok := r.Get(id); ok {
		return m, nil
	}

	if r.db == nil {
		return nil, ErrNotFound
	}

	s, err := r.db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}

	assets, err := r.db.LoadAssets(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check under the write lock; a concurrent lookup may have
	// adopted it first.
	if existing, ok := r.machines[id]; ok {
		return existing, nil
	}

	m := newMachine(*s, r.db, r.logger)
	m.SeedAssets(assets)
	r.machines[id] = m

	r.logger.Info("session adopted from database",
		"sessionID", id, "status", s.Status.String(), "assets", len(assets))
	return m, nil
}

// Remove drops a session from memory. Persistence, if any, is untouched.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, id)
}

// Len returns the number of in-memory sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}

// RunJanitor evicts settled sessions past the retention window until the
// context is cancelled. Run it in its own goroutine.
func (r *Registry) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep runs one retention pass over memory and the database.
func (r *Registry) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.Retention)

	r.mu.Lock()
	var evicted int
	for id, m := range r.machines {
		status := m.Status()
		// Active sessions never expire here; the wall-clock timeout is
		// the runner's job.
		if status.Active() {
			continue
		}
		if m.LastTouched().Before(cutoff) {
			delete(r.machines, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.logger.Info("sessions evicted by retention", "count", evicted)
	}

	if r.db != nil {
		if n, err := r.db.DeleteExpired(ctx, r.cfg.Retention); err != nil {
			r.logger.Warn("retention cleanup failed", "error", err)
		} else if n > 0 {
			r.logger.Info("persisted sessions expired", "count", n)
		}
	}
}
