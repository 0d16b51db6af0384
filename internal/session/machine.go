package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siteclone/siteclone/internal/database"
	"github.com/siteclone/siteclone/internal/model"
)

// Progress weighting: crawling fills the first 90 percent, post-processing
// the last 10. Completed sessions always read exactly 100.
const (
	crawlWeight   = 90.0
	processWeight = 10.0
)

// historyLimit bounds the per-session event history kept for replay when
// a client reconnects.
const historyLimit = 200

// Machine owns one session's mutable state.
//
// All mutation happens here, under the mutex. The crawl engine talks to
// the machine through the crawler.Reporter interface; the push-channel
// server subscribes through SetEmitter and reads snapshots. Events are
// emitted outside the lock, so an emitter may safely call back into
// read methods.
type Machine struct {
	mu sync.Mutex

	s      model.Session
	assets map[string]model.DiscoveredAsset

	// emit pushes events to the subscribed connection, if any.
	emit func(model.Event)

	// history is the bounded recent-event buffer for reconnect replay.
	history []model.Event

	// db persists snapshots and asset records. Nil disables persistence.
	db     *database.SessionDB
	logger *slog.Logger

	// running marks an active execution; at most one per machine.
	running bool

	// cancel stops the active execution. Set while running.
	cancel context.CancelFunc

	// fpFrozen marks that a fingerprint was recorded. Needed because a
	// frozen unknown result is indistinguishable from the zero value.
	fpFrozen bool

	// touched is the last mutation time, driving retention eviction.
	touched time.Time
}

// newMachine wraps a session snapshot. Used by the registry only.
func newMachine(s model.Session, db *database.SessionDB, logger *slog.Logger) *Machine {
	return &Machine{
		s:      s,
		assets: make(map[string]model.DiscoveredAsset),
		db:     db,
		logger: logger,
		// Adopted sessions with a known fingerprint keep it frozen. An
		// adopted unknown is re-frozen on resume, which the engine
		// resolves from the persisted resume state anyway.
		fpFrozen: s.Fingerprint.Known(),
		touched:  time.Now(),
	}
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ID
}

// Snapshot returns a copy of the current session state.
func (m *Machine) Snapshot() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

// Status returns the current lifecycle state.
func (m *Machine) Status() model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Status
}

// Assets returns a copy of every recorded asset.
func (m *Machine) Assets() []model.DiscoveredAsset {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.DiscoveredAsset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	return out
}

// AssetMap returns the assets keyed by source URL, the seed for a
// resumed crawl.
func (m *Machine) AssetMap() map[string]model.DiscoveredAsset {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]model.DiscoveredAsset, len(m.assets))
	for u, a := range m.assets {
		out[u] = a
	}
	return out
}

// PathTable returns the URL to local path assignments recorded so far,
// pages included.
func (m *Machine) PathTable() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := make(map[string]string)
	for u, a := range m.assets {
		if a.LocalPath != "" {
			table[u] = a.LocalPath
		}
	}
	return table
}

// SeedAssets loads previously persisted asset records, used when a
// machine is adopted from the database for recovery.
func (m *Machine) SeedAssets(assets map[string]model.DiscoveredAsset) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for u, a := range assets {
		m.assets[u] = a
	}
	m.s.AssetCount = len(m.assets)
}

// SetEmitter subscribes an event consumer and returns the buffered
// history so the consumer can replay what it missed. Passing nil
// unsubscribes.
func (m *Machine) SetEmitter(emit func(model.Event)) []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.emit = emit
	replay := make([]model.Event, len(m.history))
	copy(replay, m.history)
	return replay
}

// LastTouched returns the time of the last mutation.
func (m *Machine) LastTouched() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touched
}

// Transition moves the session to the next status, enforcing the
// lifecycle table. Terminal transitions stamp CompletedAt; error text is
// recorded on error/timeout transitions.
func (m *Machine) Transition(next model.SessionStatus, errText string) error {
	m.mu.Lock()

	if !m.s.Status.CanTransitionTo(next) {
		from := m.s.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	m.s.Status = next
	m.touched = time.Now()
	if errText != "" {
		m.s.LastError = errText
	}
	if next.Terminal() {
		now := time.Now()
		m.s.CompletedAt = &now
		if next == model.StatusCompleted {
			m.s.Progress = 100
		}
	}

	snapshot := m.s
	event := model.NewStatusEvent(snapshot.ID, next, errText)
	m.appendHistory(event)
	emit := m.emit
	m.mu.Unlock()

	m.persistSession(snapshot)
	if emit != nil {
		emit(event)
	}

	m.logger.Info("session status changed",
		"sessionID", snapshot.ID, "status", next.String(), "error", errText)
	return nil
}

// Interrupt moves an active session to interrupted and cancels its
// execution. Used when the driving connection is lost. A no-op error is
// returned when the session cannot be interrupted (already settled).
func (m *Machine) Interrupt() error {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if err := m.Transition(model.StatusInterrupted, ""); err != nil {
		return err
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// tryStartExecution claims the single execution slot. Returns false if
// an execution is already running.
func (m *Machine) tryStartExecution(cancel context.CancelFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return false
	}
	m.running = true
	m.cancel = cancel
	return true
}

// finishExecution releases the execution slot.
func (m *Machine) finishExecution() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.cancel = nil
}

// Running reports whether an execution currently holds the slot.
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Progress implements crawler.Reporter. The crawl fraction is scaled
// into the 0 to 90 band and clamped monotone: discovery of new work can
// shrink the raw fraction, but reported progress never goes backward.
func (m *Machine) Progress(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	m.setProgress(fraction * crawlWeight)
}

// ProcessingProgress reports post-processing completion, filling the
// final 10 percent band.
func (m *Machine) ProcessingProgress(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	m.setProgress(crawlWeight + fraction*processWeight)
}

// setProgress applies a candidate progress value under the monotone rule.
func (m *Machine) setProgress(p float64) {
	m.mu.Lock()

	if p <= m.s.Progress || m.s.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	m.s.Progress = p
	m.touched = time.Now()

	event := model.NewProgressEvent(m.s.ID, p)
	m.appendHistory(event)
	emit := m.emit
	m.mu.Unlock()

	if emit != nil {
		emit(event)
	}
}

// AssetUpdated implements crawler.Reporter: records the asset, persists
// it, and pushes an asset_found event.
func (m *Machine) AssetUpdated(asset model.DiscoveredAsset) {
	m.mu.Lock()

	m.assets[asset.SourceURL] = asset
	m.s.AssetCount = len(m.assets)
	m.touched = time.Now()

	sessionID := m.s.ID
	event := model.NewAssetEvent(sessionID, asset)
	m.appendHistory(event)
	emit := m.emit
	m.mu.Unlock()

	if m.db != nil {
		if err := m.db.UpsertAsset(context.Background(), sessionID, &asset); err != nil {
			m.logger.Warn("asset persistence failed",
				"sessionID", sessionID, "url", asset.SourceURL, "error", err)
		}
	}
	if emit != nil {
		emit(event)
	}
}

// PageVisited implements crawler.Reporter.
func (m *Machine) PageVisited(pageURL string, count int) {
	m.mu.Lock()
	m.s.PagesVisited = count
	m.touched = time.Now()
	snapshot := m.s
	m.mu.Unlock()

	m.logger.Debug("page visited", "sessionID", snapshot.ID, "url", pageURL, "count", count)
	m.persistSession(snapshot)
}

// FingerprintFrozen implements crawler.Reporter. The first frozen
// fingerprint wins; later calls (which should not happen within one
// session) are ignored.
func (m *Machine) FingerprintFrozen(fp model.Fingerprint) {
	m.mu.Lock()

	if m.fpFrozen {
		m.mu.Unlock()
		return
	}
	m.fpFrozen = true
	m.s.Fingerprint = fp
	m.touched = time.Now()
	snapshot := m.s
	m.mu.Unlock()

	m.persistSession(snapshot)
}

// appendHistory adds an event to the bounded replay buffer.
// Caller must hold the mutex.
func (m *Machine) appendHistory(e model.Event) {
	m.history = append(m.history, e)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
}

// persistSession writes a snapshot to the database if one is configured.
func (m *Machine) persistSession(s model.Session) {
	if m.db == nil {
		return
	}
	if err := m.db.SaveSession(context.Background(), &s); err != nil {
		m.logger.Warn("session persistence failed", "sessionID", s.ID, "error", err)
	}
}
