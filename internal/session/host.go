// Package session owns session identity and lifetime: it maps session ids to
// live engines, serializes input dispatch per session, forces finalization at
// the session deadline, and bridges finished sessions to replay encoding,
// anti-cheat analysis and the persistence store.
package session

import (
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/fruit-merge-go/internal/anticheat"
	"github.com/MJE43/fruit-merge-go/internal/fruit"
	"github.com/MJE43/fruit-merge-go/internal/replay"
	"github.com/MJE43/fruit-merge-go/internal/sim"
	"github.com/MJE43/fruit-merge-go/internal/store"
)

// ErrSessionNotFound covers unknown, expired and already-finalized ids
// uniformly; distinguishing them would leak bookkeeping with no benefit.
var ErrSessionNotFound = errors.New("session not found")

// Session is one live play session: an engine plus its lifetime bookkeeping.
// The mutex serializes all engine access for this session.
type Session struct {
	ID       string
	Identity string

	mu        sync.Mutex
	engine    *sim.Engine
	deadline  *time.Timer
	finalized bool
	result    *FinalResult
}

// FinalResult is the outcome of finalizing a session.
type FinalResult struct {
	SessionID    string           `json:"session_id"`
	Identity     string           `json:"identity"`
	FinalScore   int              `json:"final_score"`
	EndReason    sim.EndReason    `json:"end_reason"`
	NewHighScore bool             `json:"new_high_score"`
	ReplayHash   string           `json:"replay_hash"`
	Suspicion    anticheat.Result `json:"suspicion"`
	NeedsReview  bool             `json:"needs_review"`
	Snapshot     sim.Snapshot     `json:"snapshot"`
}

// Host creates sessions, dispatches inputs and finalizes sessions exactly
// once each. Safe for concurrent use across sessions.
type Host struct {
	cfg        sim.Config
	acCfg      anticheat.Config
	reg        Registry
	db         store.DB
	logger     *log.Logger
	engineOpts []sim.Option

	// finished retains results so a repeat finalize returns the first
	// outcome instead of erroring.
	// TODO: evict finished results after a retention window.
	finishedMu sync.RWMutex
	finished   map[string]*FinalResult
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithEngineOptions forwards options (clock, seed) to every engine the host
// constructs. For tests.
func WithEngineOptions(opts ...sim.Option) HostOption {
	return func(h *Host) { h.engineOpts = opts }
}

// WithLogger replaces the host's logger.
func WithLogger(l *log.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

// NewHost wires a host to its collaborators.
func NewHost(cfg sim.Config, acCfg anticheat.Config, reg Registry, db store.DB, opts ...HostOption) *Host {
	h := &Host{
		cfg:      cfg,
		acCfg:    acCfg,
		reg:      reg,
		db:       db,
		logger:   log.New(os.Stdout, "[HOST] ", log.LstdFlags),
		finished: make(map[string]*FinalResult),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateSession allocates a session for an identity with the given cosmetic
// loadout and arms the forced-finalize deadline. Returns the new session id
// and the initial snapshot.
func (h *Host) CreateSession(identity string, skins map[fruit.Tier]string) (string, sim.Snapshot, error) {
	id := uuid.New().String()
	s := &Session{
		ID:       id,
		Identity: identity,
		engine:   sim.New(h.cfg, skins, h.engineOpts...),
	}

	// The deadline guarantees finalization even for clients that start a
	// game and never poll again. Finalize cancels it on any earlier end.
	s.deadline = time.AfterFunc(h.cfg.SessionDuration+time.Second, func() {
		if _, err := h.Finalize(id, sim.EndTimeout); err != nil && !errors.Is(err, ErrSessionNotFound) {
			h.logger.Printf("deadline_finalize_failed session=%s err=%v", id, err)
		}
	})

	h.reg.Put(id, s)
	h.logger.Printf("session_created session=%s identity=%s", id, identity)

	s.mu.Lock()
	snap := s.engine.Snapshot()
	s.mu.Unlock()
	return id, snap, nil
}

// DispatchInput forwards one drop to the session's engine.
func (h *Host) DispatchInput(id string, x float64) (sim.Snapshot, []sim.MergeEvent, error) {
	s, ok := h.reg.Get(id)
	if !ok {
		return sim.Snapshot{}, nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return sim.Snapshot{}, nil, ErrSessionNotFound
	}
	return s.engine.SubmitInput(x)
}

// Snapshot returns the current read-only view of a live session.
func (h *Host) Snapshot(id string) (sim.Snapshot, error) {
	s, ok := h.reg.Get(id)
	if !ok {
		return sim.Snapshot{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return sim.Snapshot{}, ErrSessionNotFound
	}
	return s.engine.Snapshot(), nil
}

// Finalize ends a session exactly once: captures the final snapshot, encodes
// and hashes the replay, runs the anti-cheat analyzer, commits the session
// record, and removes the session from the live set. Repeat calls return the
// first result.
func (h *Host) Finalize(id string, reason sim.EndReason) (*FinalResult, error) {
	s, ok := h.reg.Get(id)
	if !ok {
		h.finishedMu.RLock()
		res, done := h.finished[id]
		h.finishedMu.RUnlock()
		if done {
			return res, nil
		}
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return s.result, nil
	}

	s.deadline.Stop()
	s.engine.Terminate(reason)
	_, endReason := s.engine.Terminal()
	snap := s.engine.Snapshot()
	inputs := s.engine.InputLog()

	blob, err := replay.Encode(inputs)
	if err != nil {
		// The engine only logs inputs it validated, so this is a bug, not a
		// user condition. The session still finalizes, minus its replay.
		h.logger.Printf("replay_encode_failed session=%s err=%v", id, err)
		blob = nil
	}
	hash := replay.Digest(inputs)
	suspicion := anticheat.Analyze(inputs, h.acCfg)
	review := anticheat.NeedsReview(suspicion, h.acCfg)

	result := &FinalResult{
		SessionID:   id,
		Identity:    s.Identity,
		FinalScore:  s.engine.Score(),
		EndReason:   endReason,
		ReplayHash:  hash,
		Suspicion:   suspicion,
		NeedsReview: review,
		Snapshot:    snap,
	}

	commit, err := h.db.RecordSession(&store.SessionRecord{
		ID:             id,
		Identity:       s.Identity,
		StartedAt:      s.engine.StartedAt(),
		EndedAt:        time.Now().UTC(),
		FinalScore:     int64(result.FinalScore),
		EndReason:      string(endReason),
		Replay:         blob,
		ReplayHash:     hash,
		SuspicionScore: suspicion.Score,
		Flags:          suspicion.Flags,
		NeedsReview:    review,
	})
	if err != nil {
		// Downstream persistence is not this core's concern; the finalize
		// result stands regardless.
		h.logger.Printf("session_commit_failed session=%s err=%v", id, err)
	} else {
		result.NewHighScore = commit.NewHighScore
	}

	s.finalized = true
	s.result = result

	h.finishedMu.Lock()
	h.finished[id] = result
	h.finishedMu.Unlock()
	h.reg.Remove(id)

	h.logger.Printf(
		"session_finalized session=%s identity=%s score=%d reason=%s suspicion=%d review=%t",
		id, s.Identity, result.FinalScore, endReason, suspicion.Score, review,
	)
	return result, nil
}
