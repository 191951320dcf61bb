package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("not found")

// DB is the persistence collaborator consumed by the session host and the
// API layer.
type DB interface {
	Close() error
	Migrate() error

	// EnsureUser creates the user row for an identity if absent and returns it.
	EnsureUser(identity string) (*User, error)

	// RecordSession commits one finished session atomically: appends the
	// session record, increments the user's cumulative score and play count,
	// tracks the max score, and upserts the day and week period bests. It
	// reports whether the final score is a new personal best.
	RecordSession(rec *SessionRecord) (*CommitResult, error)

	GetSessionRecord(id string) (*SessionRecord, error)

	// ConsumePaymentProof marks a proof-of-payment as used. It returns false
	// if the proof was already consumed; a given proof is spendable at most
	// once.
	ConsumePaymentProof(proof string) (bool, error)

	// Leaderboard returns the top scores for a period bucket, best first.
	Leaderboard(period Period, bucket string, limit int) ([]LeaderboardEntry, error)
}

// User is one player keyed by opaque identity (wallet address or similar).
type User struct {
	ID         string    `json:"id"`
	Identity   string    `json:"identity"`
	TotalScore int64     `json:"total_score"`
	PlayCount  int64     `json:"play_count"`
	MaxScore   int64     `json:"max_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionRecord is the persisted artifact of one finished session, replay
// blob and analysis attached.
type SessionRecord struct {
	ID             string    `json:"id"`
	Identity       string    `json:"identity"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	FinalScore     int64     `json:"final_score"`
	EndReason      string    `json:"end_reason"`
	Replay         []byte    `json:"-"`
	ReplayHash     string    `json:"replay_hash"`
	SuspicionScore int       `json:"suspicion_score"`
	Flags          []string  `json:"flags,omitempty"`
	NeedsReview    bool      `json:"needs_review"`
}

// CommitResult reports the outcome of RecordSession.
type CommitResult struct {
	NewHighScore bool `json:"new_high_score"`
}

// Period buckets leaderboard rows by calendar span.
type Period string

const (
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
	PeriodAll  Period = "all"
)

// Bucket returns the period-bucket key for a point in time, e.g. 2025-06-01
// for a day or 2025-W22 for a week. The all-time period has a single bucket.
func Bucket(p Period, t time.Time) string {
	switch p {
	case PeriodDay:
		return t.UTC().Format("2006-01-02")
	case PeriodWeek:
		year, week := t.UTC().ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return "all"
	}
}

// LeaderboardEntry is one row of a period leaderboard.
type LeaderboardEntry struct {
	Identity string `json:"identity"`
	Score    int64  `json:"score"`
	Rank     int    `json:"rank"`
}
