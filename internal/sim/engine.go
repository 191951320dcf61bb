package sim

import (
	"math/rand"
	"time"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
)

// Engine is the sole source of truth for one session's physical and scoring
// state. It is not safe for concurrent use; the session host serializes
// access per session.
type Engine struct {
	cfg Config
	st  state
	now func() time.Time
	rng *rand.Rand
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeed fixes the spawn-queue RNG seed, for tests.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// New constructs an engine for a fresh session. skins is the session's
// cosmetic loadout (tier → skin id); nil is a bare loadout.
func New(cfg Config, skins map[fruit.Tier]string, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}

	now := e.now()
	e.st = state{
		nextID:     1,
		multiplier: 1,
		lastMerge:  now,
		startedAt:  now,
		skins:      skins,
	}
	e.st.nextTier = e.scriptedTier(0)
	e.st.queuedTier = e.scriptedTier(1)
	return e
}

// scriptedTier returns the tier for the nth slot of the spawn queue: the
// fixed opening sequence first, then uniform draws from the droppable prefix.
func (e *Engine) scriptedTier(n int) fruit.Tier {
	if n < len(e.cfg.OpeningTiers) {
		return e.cfg.OpeningTiers[n]
	}
	return fruit.Tier(e.rng.Intn(fruit.DroppableCount))
}

// SubmitInput validates and applies one drop. On success it returns the
// updated snapshot and the merge events produced by this step. On failure
// the state is unchanged and the error is one of ErrSessionOver, ErrTooFast
// or ErrInvalidInput.
func (e *Engine) SubmitInput(x float64) (Snapshot, []MergeEvent, error) {
	now := e.now()
	e.expire(now)

	if e.st.terminal {
		return Snapshot{}, nil, ErrSessionOver
	}
	if x < 0 || x > 1 || x != x {
		return Snapshot{}, nil, ErrInvalidInput
	}
	if !e.st.lastDrop.IsZero() && now.Sub(e.st.lastDrop) < e.cfg.MinDropInterval {
		return Snapshot{}, nil, ErrTooFast
	}

	tier := e.st.nextTier
	r := fruit.Radius(tier)

	// Clamp so the fruit never spawns overlapping a wall.
	px := x * e.cfg.BoardWidth
	if px < r {
		px = r
	} else if px > e.cfg.BoardWidth-r {
		px = e.cfg.BoardWidth - r
	}

	e.st.fruits = append(e.st.fruits, &Fruit{
		ID:        e.st.nextID,
		Tier:      tier,
		X:         px,
		Y:         e.cfg.SpawnY,
		Radius:    r,
		CreatedAt: now,
		Skin:      e.st.skins[tier],
	})
	e.st.nextID++

	e.st.dropCount++
	e.st.nextTier = e.st.queuedTier
	e.st.queuedTier = e.scriptedTier(e.st.dropCount + 1)
	e.st.lastDrop = now

	e.st.log = append(e.st.log, DropInput{
		X:    x,
		AtMs: now.UnixMilli(),
		Tier: tier,
	})

	e.decayMultiplier(now)
	events := step(&e.st, e.cfg, now)

	if checkOverflow(&e.st, e.cfg, now) {
		e.st.terminal = true
		e.st.endReason = EndOverflow
	}

	return e.snapshot(now), events, nil
}

// Snapshot returns the read-only view of the current state. The multiplier
// is decayed by read time, and overflow or timeout that matured since the
// last input is confirmed here, so a polling client sees a correct view
// without submitting.
func (e *Engine) Snapshot() Snapshot {
	now := e.now()
	e.expire(now)
	if !e.st.terminal && !e.st.dangerSince.IsZero() && now.Sub(e.st.dangerSince) > e.cfg.OverflowGrace {
		e.st.terminal = true
		e.st.endReason = EndOverflow
	}
	e.decayMultiplier(now)
	return e.snapshot(now)
}

// InputLog returns the accumulated drop sequence for replay and anti-cheat
// use. The caller must not mutate it.
func (e *Engine) InputLog() []DropInput {
	return e.st.log
}

// Terminate forces the session terminal. Idempotent; the first reason wins.
func (e *Engine) Terminate(reason EndReason) {
	if e.st.terminal {
		return
	}
	e.st.terminal = true
	e.st.endReason = reason
}

// Terminal reports whether the session has ended, and why.
func (e *Engine) Terminal() (bool, EndReason) {
	return e.st.terminal, e.st.endReason
}

// Score returns the current cumulative score.
func (e *Engine) Score() int {
	return e.st.score
}

// StartedAt returns the session start time.
func (e *Engine) StartedAt() time.Time {
	return e.st.startedAt
}

func (e *Engine) expire(now time.Time) {
	if !e.st.terminal && now.Sub(e.st.startedAt) >= e.cfg.SessionDuration {
		e.st.terminal = true
		e.st.endReason = EndTimeout
	}
}

func (e *Engine) decayMultiplier(now time.Time) {
	if e.st.multiplier > 1 && now.Sub(e.st.lastMerge) > e.cfg.MultiplierDecay {
		e.st.multiplier = 1
	}
}

func (e *Engine) snapshot(now time.Time) Snapshot {
	fruits := make([]FruitSnapshot, 0, len(e.st.fruits))
	for _, f := range e.st.fruits {
		fruits = append(fruits, FruitSnapshot{
			ID:   f.ID,
			Tier: f.Tier,
			X:    f.X,
			Y:    f.Y,
			Skin: f.Skin,
		})
	}

	remaining := e.cfg.SessionDuration - now.Sub(e.st.startedAt)
	if remaining < 0 || e.st.terminal {
		remaining = 0
	}

	return Snapshot{
		Fruits:      fruits,
		Score:       e.st.score,
		NextTier:    e.st.nextTier,
		QueuedTier:  e.st.queuedTier,
		Multiplier:  e.st.multiplier,
		RemainingMs: remaining.Milliseconds(),
		GameOver:    e.st.terminal,
	}
}
