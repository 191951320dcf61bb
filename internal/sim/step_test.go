package sim

import (
	"testing"
	"time"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
)

func TestGraceWindowBlocksMerge(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	st := &state{
		nextID:     10,
		multiplier: 1,
		fruits: []*Fruit{
			restingFruit(1, fruit.Cherry, 0.45, now.Add(-time.Second)),
			restingFruit(2, fruit.Cherry, 0.50, now.Add(-100*time.Millisecond)),
		},
	}

	// One fruit is still inside its grace window: overlap resolves as a
	// plain collision, never a merge.
	events := step(st, cfg, now)
	if len(events) != 0 {
		t.Fatalf("merge fired inside grace window: %+v", events)
	}
	if len(st.fruits) != 2 {
		t.Fatalf("fruit count = %d, want 2", len(st.fruits))
	}

	// Same pair, both outside the window, merges on the next overlap. The
	// blocked collision separated them, so push them back together first.
	st.fruits[0].X, st.fruits[1].X = 0.45, 0.50
	later := now.Add(cfg.GraceWindow)
	events = step(st, cfg, later)
	if len(events) != 1 {
		t.Fatalf("expected merge once both fruits left grace, got %d events", len(events))
	}
	if len(st.fruits) != 1 {
		t.Errorf("fruit count after merge = %d, want 1", len(st.fruits))
	}
	if st.fruits[0].Tier != fruit.Strawberry {
		t.Errorf("merged tier = %v, want strawberry", st.fruits[0].Tier)
	}
}

func TestTerminalTierNeverMerges(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Second)

	st := &state{
		nextID:     10,
		multiplier: 1,
		fruits: []*Fruit{
			restingFruit(1, fruit.Watermelon, 0.30, old),
			restingFruit(2, fruit.Watermelon, 0.60, old),
		},
	}

	events := step(st, cfg, now)
	if len(events) != 0 {
		t.Fatalf("terminal tier merged: %+v", events)
	}
	if len(st.fruits) != 2 {
		t.Errorf("fruit count = %d, want 2", len(st.fruits))
	}
}

func TestMergeScoreFormula(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Second)

	for _, tc := range []struct {
		tier       fruit.Tier
		multBefore int
	}{
		{fruit.Cherry, 1},
		{fruit.Grape, 3},
		{fruit.Melon, cfg.MultiplierCap},
	} {
		st := &state{
			nextID:     10,
			multiplier: tc.multBefore,
			fruits: []*Fruit{
				restingFruit(1, tc.tier, 0.40, old),
				restingFruit(2, tc.tier, 0.40+fruit.Radius(tc.tier), old),
			},
		}

		events := step(st, cfg, now)
		if len(events) != 1 {
			t.Fatalf("tier %v: expected one merge, got %d", tc.tier, len(events))
		}

		next, _ := fruit.Next(tc.tier)
		wantMult := tc.multBefore + 1
		if wantMult > cfg.MultiplierCap {
			wantMult = cfg.MultiplierCap
		}
		want := 2 * fruit.Points(next) * wantMult
		if events[0].Points != want {
			t.Errorf("tier %v: points = %d, want %d", tc.tier, events[0].Points, want)
		}
		if st.score != want {
			t.Errorf("tier %v: score = %d, want %d", tc.tier, st.score, want)
		}
	}
}

func TestCollisionSeparatesNonMatchingTiers(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Second)

	a := restingFruit(1, fruit.Cherry, 0.50, old)
	b := restingFruit(2, fruit.Orange, 0.52, old)
	st := &state{nextID: 10, multiplier: 1, fruits: []*Fruit{a, b}}

	events := step(st, cfg, now)
	if len(events) != 0 {
		t.Fatalf("different tiers merged: %+v", events)
	}

	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx*dx+dy*dy < (a.Radius+b.Radius)*(a.Radius+b.Radius)*0.9 {
		t.Errorf("fruits left deeply overlapping after separation: a=(%f,%f) b=(%f,%f)", a.X, a.Y, b.X, b.Y)
	}
}

func TestOverflowTwoPhase(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	danger := &Fruit{
		ID:     1,
		Tier:   fruit.Apple,
		X:      0.5,
		Y:      cfg.DangerLineY + 0.1,
		Radius: fruit.Radius(fruit.Apple),
	}
	st := &state{nextID: 10, multiplier: 1, fruits: []*Fruit{danger}}

	// First sighting only arms the timer.
	if checkOverflow(st, cfg, now) {
		t.Fatal("overflow triggered on first sighting")
	}
	if st.dangerSince.IsZero() {
		t.Fatal("danger timer not armed")
	}

	// Still inside the grace duration: no loss.
	if checkOverflow(st, cfg, now.Add(cfg.OverflowGrace/2)) {
		t.Error("overflow triggered before grace elapsed")
	}

	// Past the grace duration: session lost.
	if !checkOverflow(st, cfg, now.Add(cfg.OverflowGrace+time.Millisecond)) {
		t.Error("overflow did not trigger after grace elapsed")
	}
}

func TestOverflowClearsWhenDangerPasses(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	f := &Fruit{ID: 1, Tier: fruit.Apple, X: 0.5, Y: cfg.DangerLineY + 0.1, Radius: fruit.Radius(fruit.Apple)}
	st := &state{nextID: 10, multiplier: 1, fruits: []*Fruit{f}}

	checkOverflow(st, cfg, now)
	if st.dangerSince.IsZero() {
		t.Fatal("danger timer not armed")
	}

	// Fruit drops back below the line: timer clears, a later sighting
	// restarts the grace from scratch.
	f.Y = cfg.DangerLineY - 0.5
	if checkOverflow(st, cfg, now.Add(cfg.OverflowGrace*2)) {
		t.Error("overflow triggered after danger cleared")
	}
	if !st.dangerSince.IsZero() {
		t.Error("danger timer should be cleared")
	}
}

func TestFastFruitAboveLineIsNotDanger(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Falling fast through the danger zone: transient, not a loss condition.
	f := &Fruit{ID: 1, Tier: fruit.Cherry, X: 0.5, Y: cfg.DangerLineY + 0.1, VY: -2.0, Radius: fruit.Radius(fruit.Cherry)}
	st := &state{nextID: 10, multiplier: 1, fruits: []*Fruit{f}}

	checkOverflow(st, cfg, now)
	if !st.dangerSince.IsZero() {
		t.Error("fast-moving fruit armed the danger timer")
	}
}
