package api

import (
	"github.com/MJE43/fruit-merge-go/internal/session"
	"github.com/MJE43/fruit-merge-go/internal/sim"
	"github.com/MJE43/fruit-merge-go/internal/store"
)

// EngineVersion is stamped into responses so replays can be matched to the
// rule set that produced them. Set at build time via ldflags.
var EngineVersion = "dev"

// GameError represents a structured error response with context
type GameError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e GameError) Error() string {
	return e.Message
}

// Error types
const (
	ErrTypeValidation   = "validation_error"
	ErrTypeUnauthorized = "ownership_verification_failed"
	ErrTypePayment      = "payment_verification_failed"
	ErrTypeNotFound     = "session_not_found"
	ErrTypeSessionOver  = "session_over"
	ErrTypeTooFast      = "too_fast"
	ErrTypeIntegrity    = "replay_integrity_failure"
	ErrTypeInternal     = "internal_error"
)

// StartSessionRequest opens a new play session.
type StartSessionRequest struct {
	Identity     string `json:"identity"`
	Proof        string `json:"proof"`
	PaymentProof string `json:"payment_proof"`
}

// StartSessionResponse returns the new session and its initial state.
type StartSessionResponse struct {
	SessionID     string       `json:"session_id"`
	Snapshot      sim.Snapshot `json:"snapshot"`
	EngineVersion string       `json:"engine_version"`
}

// DropRequest submits one drop at a normalized x position.
type DropRequest struct {
	X float64 `json:"x"`
}

// DropResponse returns the post-step state and any merges the drop produced.
type DropResponse struct {
	Snapshot sim.Snapshot     `json:"snapshot"`
	Events   []sim.MergeEvent `json:"events"`
}

// SnapshotResponse wraps a read-only state view.
type SnapshotResponse struct {
	Snapshot sim.Snapshot `json:"snapshot"`
}

// EndSessionResponse reports the final outcome of a session.
type EndSessionResponse struct {
	Result        *session.FinalResult `json:"result"`
	EngineVersion string               `json:"engine_version"`
}

// LeaderboardResponse lists the top scores for one period bucket.
type LeaderboardResponse struct {
	Period  store.Period             `json:"period"`
	Bucket  string                   `json:"bucket"`
	Entries []store.LeaderboardEntry `json:"entries"`
}

// ReplayVerifyResponse reports a stored replay's integrity check.
type ReplayVerifyResponse struct {
	SessionID  string `json:"session_id"`
	ReplayHash string `json:"replay_hash"`
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	EngineVersion string `json:"engine_version"`
}
