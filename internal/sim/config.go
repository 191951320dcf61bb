package sim

import (
	"time"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
)

// Config holds every tunable constant of the simulation. It is fixed per
// deployment and identical for every session; replay verification depends on
// these never varying at runtime.
type Config struct {
	// Board geometry, in normalized units. Y grows upward, floor at 0.
	BoardWidth  float64
	BoardHeight float64
	SpawnY      float64

	// Physics integration. Each accepted drop runs SubSteps iterations of
	// StepDT seconds. More sub-steps reduce tunneling at the velocities the
	// game actually produces; merges depend on settled overlap.
	SubSteps    int
	StepDT      float64
	Gravity     float64
	Damping     float64
	Restitution float64

	// Overflow detection. A fruit is in danger when its top edge is above
	// DangerLineY and its vertical speed is under RestSpeed. The session ends
	// when some fruit has been in danger continuously for OverflowGrace.
	DangerLineY   float64
	RestSpeed     float64
	OverflowGrace time.Duration

	// GraceWindow is the post-spawn interval during which a fruit cannot
	// participate in a merge.
	GraceWindow time.Duration

	// MinDropInterval throttles input pacing. Drops arriving sooner than this
	// after the previous accepted drop are rejected with ErrTooFast.
	MinDropInterval time.Duration

	// Merge-streak multiplier.
	MultiplierCap   int
	MultiplierDecay time.Duration

	// SessionDuration is the wall-clock play window.
	SessionDuration time.Duration

	// OpeningTiers is the scripted tier sequence for the first drops of a
	// session, designed to guarantee an early safe merge. Subsequent tiers
	// are drawn uniformly from the droppable prefix.
	OpeningTiers []fruit.Tier
}

// DefaultConfig returns the canonical rule set.
func DefaultConfig() Config {
	return Config{
		BoardWidth:  1.0,
		BoardHeight: 1.4,
		SpawnY:      1.25,

		SubSteps:    90,
		StepDT:      1.0 / 60.0,
		Gravity:     3.0,
		Damping:     0.99,
		Restitution: 0.2,

		DangerLineY:   1.05,
		RestSpeed:     0.05,
		OverflowGrace: 3 * time.Second,

		GraceWindow:     500 * time.Millisecond,
		MinDropInterval: 250 * time.Millisecond,

		MultiplierCap:   8,
		MultiplierDecay: 4 * time.Second,

		SessionDuration: 60 * time.Second,

		OpeningTiers: []fruit.Tier{fruit.Cherry, fruit.Cherry, fruit.Strawberry, fruit.Grape},
	}
}
