// Package anticheat runs a statistical pass over a decoded input log and
// flags sessions that warrant manual review. It is purely a function of the
// log: no side effects, no state.
package anticheat

import (
	"math"
	"time"

	"github.com/MJE43/fruit-merge-go/internal/sim"
)

// Flags, one per heuristic, so every point of the score is explainable.
const (
	FlagSubIntervalDrops = "drops_below_min_interval"
	FlagUniformTiming    = "uniform_input_timing"
	FlagLimitedPositions = "limited_position_variety"
	FlagImplausibleSpan  = "implausible_session_span"
)

// Config tunes the analyzer. MinDropInterval defaults to the engine's
// throttle but is deliberately an independent knob: the throttle is a pacing
// device, this is a detection threshold, and they may diverge.
type Config struct {
	MinDropInterval time.Duration

	// MinSamples is the drop count below which interval statistics are not
	// meaningful and the timing heuristics stay silent.
	MinSamples int

	// StdDevFloorMs flags interval regularity below human jitter.
	StdDevFloorMs float64

	// ReviewThreshold is the score at or above which a session is
	// recommended for manual review.
	ReviewThreshold int
}

// DefaultConfig matches the engine's default pacing.
func DefaultConfig() Config {
	return Config{
		MinDropInterval: 250 * time.Millisecond,
		MinSamples:      10,
		StdDevFloorMs:   10,
		ReviewThreshold: 50,
	}
}

// Penalties per heuristic. Sub-interval drops are penalized per occurrence;
// the rest are flat.
const (
	subIntervalPenalty     = 3
	uniformPenalty         = 30
	limitedXPenalty        = 25
	implausibleSpanPenalty = 25
)

// Result is the analyzer's verdict for one session.
type Result struct {
	Score int      `json:"score"`
	Flags []string `json:"flags"`
}

// NeedsReview reports whether the result crosses the review threshold. Kept
// outside Analyze so the threshold can move without touching detection.
func NeedsReview(r Result, cfg Config) bool {
	return r.Score >= cfg.ReviewThreshold
}

// Analyze scores one session's input log. The score is additive over
// independent heuristics and capped at 100.
func Analyze(log []sim.DropInput, cfg Config) Result {
	res := Result{}
	if len(log) < 2 {
		return res
	}

	minMs := float64(cfg.MinDropInterval.Milliseconds())
	gaps := make([]float64, 0, len(log)-1)
	for i := 1; i < len(log); i++ {
		gaps = append(gaps, float64(log[i].AtMs-log[i-1].AtMs))
	}

	// Consecutive drops faster than the minimum interval: the server
	// throttle rejects these live, so their presence in a log means
	// replayed or fabricated input.
	tooFast := 0
	for _, g := range gaps {
		if g < minMs {
			tooFast++
		}
	}
	if tooFast > 0 {
		res.Score += tooFast * subIntervalPenalty
		res.Flags = append(res.Flags, FlagSubIntervalDrops)
	}

	if len(log) >= cfg.MinSamples {
		// Robotic regularity: human play has natural jitter.
		if stdDev(gaps) < cfg.StdDevFloorMs {
			res.Score += uniformPenalty
			res.Flags = append(res.Flags, FlagUniformTiming)
		}

		// Macro replaying the same click: many drops, few distinct
		// positions at 2-decimal precision.
		distinct := map[int]struct{}{}
		for _, in := range log {
			distinct[int(math.Round(in.X*100))] = struct{}{}
		}
		limit := len(log) / 10
		if limit < 2 {
			limit = 2
		}
		if len(distinct) <= limit {
			res.Score += limitedXPenalty
			res.Flags = append(res.Flags, FlagLimitedPositions)
		}

		// Log shorter than its drop count could legitimately take.
		span := float64(log[len(log)-1].AtMs - log[0].AtMs)
		if span < float64(len(log)-1)*minMs*0.9 {
			res.Score += implausibleSpanPenalty
			res.Flags = append(res.Flags, FlagImplausibleSpan)
		}
	}

	if res.Score > 100 {
		res.Score = 100
	}
	return res
}

func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
