package sim

import (
	"time"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
)

// Fruit is one live circle on the board. Owned exclusively by a single
// engine; never shared across sessions.
type Fruit struct {
	ID        int64
	Tier      fruit.Tier
	X, Y      float64
	VX, VY    float64
	Radius    float64
	CreatedAt time.Time
	Skin      string // cosmetic skin id, opaque pass-through
}

// DropInput is one accepted drop, as recorded into the input log. X is the
// normalized horizontal position in [0,1]; Tier is resolved by the spawn
// queue, never chosen by the client.
type DropInput struct {
	X    float64    `json:"x"`
	AtMs int64      `json:"at_ms"`
	Tier fruit.Tier `json:"tier"`
}

// MergeEvent describes one merge produced during a simulation step.
type MergeEvent struct {
	SourceA    int64      `json:"source_a"`
	SourceB    int64      `json:"source_b"`
	ResultID   int64      `json:"result_id"`
	ResultTier fruit.Tier `json:"result_tier"`
	Points     int        `json:"points"`
	Multiplier int        `json:"multiplier"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
}

// FruitSnapshot is the immutable per-fruit view exposed to clients.
type FruitSnapshot struct {
	ID       int64      `json:"id"`
	Tier     fruit.Tier `json:"tier"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Rotation float64    `json:"rotation"`
	Skin     string     `json:"skin,omitempty"`
}

// Snapshot is the read-only view of one session's state.
type Snapshot struct {
	Fruits      []FruitSnapshot `json:"fruits"`
	Score       int             `json:"score"`
	NextTier    fruit.Tier      `json:"next_tier"`
	QueuedTier  fruit.Tier      `json:"queued_tier"`
	Multiplier  int             `json:"multiplier"`
	RemainingMs int64           `json:"remaining_ms"`
	GameOver    bool            `json:"game_over"`
}

// EndReason records why a session went terminal.
type EndReason string

const (
	EndTimeout  EndReason = "timeout"
	EndOverflow EndReason = "overflow"
	EndManual   EndReason = "manual"
)

// state is the full mutable simulation state of one session.
type state struct {
	fruits []*Fruit
	nextID int64

	score      int
	multiplier int
	lastMerge  time.Time

	nextTier   fruit.Tier
	queuedTier fruit.Tier
	dropCount  int

	// skins maps tier to the session's cosmetic skin id. Opaque to the
	// engine beyond attaching it to spawned and merged fruit.
	skins map[fruit.Tier]string

	startedAt time.Time
	lastDrop  time.Time

	// dangerSince is nonzero while some settled fruit sits above the danger
	// line; the session ends once it has been set continuously past the
	// overflow grace.
	dangerSince time.Time

	terminal  bool
	endReason EndReason

	log []DropInput
}
