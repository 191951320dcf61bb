package sim

import (
	"math"
	"time"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
)

// step advances the physical state by cfg.SubSteps fixed sub-iterations and
// returns the merge events produced. now is the wall-clock time of the
// triggering input; it is constant across sub-iterations, so fruits created
// by a merge stay inside their grace window for the rest of this step.
func step(s *state, cfg Config, now time.Time) []MergeEvent {
	var events []MergeEvent
	for i := 0; i < cfg.SubSteps; i++ {
		integrate(s, cfg)
		resolveWalls(s, cfg)
		events = append(events, resolveCollisions(s, cfg, now)...)
	}
	return events
}

func integrate(s *state, cfg Config) {
	dt := cfg.StepDT
	for _, f := range s.fruits {
		f.VY -= cfg.Gravity * dt
		f.VX *= cfg.Damping
		f.VY *= cfg.Damping
		f.X += f.VX * dt
		f.Y += f.VY * dt
	}
}

// resolveWalls clamps fruits inside the container and reflects the offending
// velocity component. Restitution is low on purpose: a bouncy container makes
// stacking unpredictable.
func resolveWalls(s *state, cfg Config) {
	for _, f := range s.fruits {
		if f.X < f.Radius {
			f.X = f.Radius
			if f.VX < 0 {
				f.VX = -f.VX * cfg.Restitution
			}
		} else if f.X > cfg.BoardWidth-f.Radius {
			f.X = cfg.BoardWidth - f.Radius
			if f.VX > 0 {
				f.VX = -f.VX * cfg.Restitution
			}
		}
		if f.Y < f.Radius {
			f.Y = f.Radius
			if f.VY < 0 {
				f.VY = -f.VY * cfg.Restitution
			}
		}
	}
}

// resolveCollisions runs the pairwise scan. O(n²) is fine: the live fruit
// count is bounded by container geometry. At most one merge fires per
// sub-iteration so fruit indices stay coherent; the next sub-iteration picks
// up any remaining overlaps.
func resolveCollisions(s *state, cfg Config, now time.Time) []MergeEvent {
	var events []MergeEvent
	for i := 0; i < len(s.fruits); i++ {
		for j := i + 1; j < len(s.fruits); j++ {
			a, b := s.fruits[i], s.fruits[j]

			dx := b.X - a.X
			dy := b.Y - a.Y
			dist := math.Hypot(dx, dy)
			overlap := a.Radius + b.Radius - dist
			if overlap <= 0 {
				continue
			}

			if canMerge(a, b, cfg, now) {
				ev := merge(s, i, j, cfg, now)
				events = append(events, ev)
				return events
			}

			separate(a, b, dx, dy, dist, overlap, cfg)
		}
	}
	return events
}

func canMerge(a, b *Fruit, cfg Config, now time.Time) bool {
	if a.Tier != b.Tier || fruit.Terminal(a.Tier) {
		return false
	}
	// Freshly spawned fruit cannot merge: fusing mid-air on spawn confuses
	// players and rewards frame-precise clicking.
	if now.Sub(a.CreatedAt) < cfg.GraceWindow || now.Sub(b.CreatedAt) < cfg.GraceWindow {
		return false
	}
	return true
}

// separate applies positional correction plus a partially-inelastic impulse
// along the contact normal. Mass is proportional to radius squared.
func separate(a, b *Fruit, dx, dy, dist, overlap float64, cfg Config) {
	var nx, ny float64
	if dist > 1e-9 {
		nx = dx / dist
		ny = dy / dist
	} else {
		// Coincident centers; push apart vertically.
		nx, ny = 0, 1
	}

	ma := a.Radius * a.Radius
	mb := b.Radius * b.Radius
	total := ma + mb

	a.X -= nx * overlap * (mb / total)
	a.Y -= ny * overlap * (mb / total)
	b.X += nx * overlap * (ma / total)
	b.Y += ny * overlap * (ma / total)

	// Impulse only while still approaching; separating pairs are left alone.
	rvx := b.VX - a.VX
	rvy := b.VY - a.VY
	closing := rvx*nx + rvy*ny
	if closing >= 0 {
		return
	}

	impulse := -(1 + cfg.Restitution) * closing / (1/ma + 1/mb)
	a.VX -= impulse * nx / ma
	a.VY -= impulse * ny / ma
	b.VX += impulse * nx / mb
	b.VY += impulse * ny / mb
}

// merge consumes the fruits at indices i and j and spawns the next tier at
// their midpoint. The new fruit restarts its own grace window, which bounds
// cascade length within a single step.
func merge(s *state, i, j int, cfg Config, now time.Time) MergeEvent {
	a, b := s.fruits[i], s.fruits[j]
	next, _ := fruit.Next(a.Tier)

	nf := &Fruit{
		ID:        s.nextID,
		Tier:      next,
		X:         (a.X + b.X) / 2,
		Y:         (a.Y + b.Y) / 2,
		VX:        (a.VX + b.VX) / 2,
		VY:        (a.VY + b.VY) / 2,
		Radius:    fruit.Radius(next),
		CreatedAt: now,
		Skin:      s.skins[next],
	}
	s.nextID++

	// Remove j first so i stays valid.
	s.fruits = append(s.fruits[:j], s.fruits[j+1:]...)
	s.fruits = append(s.fruits[:i], s.fruits[i+1:]...)
	s.fruits = append(s.fruits, nf)

	if s.multiplier < cfg.MultiplierCap {
		s.multiplier++
	}
	s.lastMerge = now

	points := 2 * fruit.Points(next) * s.multiplier
	s.score += points

	return MergeEvent{
		SourceA:    a.ID,
		SourceB:    b.ID,
		ResultID:   nf.ID,
		ResultTier: next,
		Points:     points,
		Multiplier: s.multiplier,
		X:          nf.X,
		Y:          nf.Y,
	}
}

// checkOverflow updates the danger timer and reports whether the session is
// lost. Only settled fruit counts: a fast-moving fruit above the line is
// transient and must not trigger loss.
func checkOverflow(s *state, cfg Config, now time.Time) bool {
	inDanger := false
	for _, f := range s.fruits {
		if f.Y+f.Radius > cfg.DangerLineY && math.Abs(f.VY) < cfg.RestSpeed {
			inDanger = true
			break
		}
	}

	if !inDanger {
		s.dangerSince = time.Time{}
		return false
	}
	if s.dangerSince.IsZero() {
		s.dangerSince = now
		return false
	}
	return now.Sub(s.dangerSince) > cfg.OverflowGrace
}
