package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/fruit-merge-go/internal/replay"
	"github.com/MJE43/fruit-merge-go/internal/session"
	"github.com/MJE43/fruit-merge-go/internal/sim"
	"github.com/MJE43/fruit-merge-go/internal/store"
)

// startMessage is what the ownership proof must sign.
const startMessage = "fruit-merge:start-session"

// handleStartSession verifies identity and payment, then opens a session.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "Invalid JSON format", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if req.Identity == "" {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "identity is required", nil)
		return
	}

	if !s.sig.VerifyOwnership(req.Identity, startMessage, req.Proof) {
		s.seclog.LogEvent(middleware.GetReqID(r.Context()), "ownership_rejected", req.Identity, r.RemoteAddr)
		s.writeError(w, r, http.StatusUnauthorized, ErrTypeUnauthorized, "ownership proof rejected", nil)
		return
	}

	if !s.pay.VerifyPayment(req.PaymentProof, req.Identity, s.entryFee) {
		s.writeError(w, r, http.StatusPaymentRequired, ErrTypePayment, "payment proof rejected", nil)
		return
	}

	// A given proof buys exactly one session.
	fresh, err := s.db.ConsumePaymentProof(req.PaymentProof)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, ErrTypeInternal, "payment bookkeeping failed", nil)
		return
	}
	if !fresh {
		s.seclog.LogEvent(middleware.GetReqID(r.Context()), "payment_proof_reuse", req.Identity, r.RemoteAddr)
		s.writeError(w, r, http.StatusPaymentRequired, ErrTypePayment, "payment proof already consumed", nil)
		return
	}

	if _, err := s.db.EnsureUser(req.Identity); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, ErrTypeInternal, "user lookup failed", nil)
		return
	}

	id, snap, err := s.host.CreateSession(req.Identity, s.loadouts.Loadout(req.Identity))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, ErrTypeInternal, "session creation failed", nil)
		return
	}

	s.logger.Printf("session_started session=%s", id)
	s.writeJSON(w, http.StatusCreated, StartSessionResponse{
		SessionID:     id,
		Snapshot:      snap,
		EngineVersion: EngineVersion,
	})
}

// handleDrop submits one drop input to a live session.
func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "Invalid JSON format", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	snap, events, err := s.host.DispatchInput(id, req.X)
	if err != nil {
		s.writeDispatchError(w, r, id, err)
		return
	}

	if events == nil {
		events = []sim.MergeEvent{}
	}
	s.writeJSON(w, http.StatusOK, DropResponse{Snapshot: snap, Events: events})
}

// writeDispatchError maps engine and host failures to HTTP responses.
func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "session not found", nil)
	case errors.Is(err, sim.ErrSessionOver):
		s.writeError(w, r, http.StatusConflict, ErrTypeSessionOver, "session is over", nil)
	case errors.Is(err, sim.ErrTooFast):
		s.seclog.LogEvent(middleware.GetReqID(r.Context()), "drop_throttled", id, r.RemoteAddr)
		s.writeError(w, r, http.StatusTooManyRequests, ErrTypeTooFast, "drop submitted too fast", nil)
	case errors.Is(err, sim.ErrInvalidInput):
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "x must be within [0,1]", nil)
	default:
		s.writeError(w, r, http.StatusInternalServerError, ErrTypeInternal, err.Error(), nil)
	}
}

// handleSnapshot returns the current state of a live session.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.host.Snapshot(id)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "session not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, SnapshotResponse{Snapshot: snap})
}

// handleEndSession finalizes a session on the player's request. Repeats
// return the original result.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.host.Finalize(id, sim.EndManual)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "session not found", nil)
		return
	}

	if result.NeedsReview {
		s.seclog.LogSuspicion(middleware.GetReqID(r.Context()), id, result.Suspicion.Score, result.Suspicion.Flags)
	}
	s.writeJSON(w, http.StatusOK, EndSessionResponse{Result: result, EngineVersion: EngineVersion})
}

// handleReplayVerify re-checks a stored replay blob against its recorded hash.
func (s *Server) handleReplayVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.db.GetSessionRecord(id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "session record not found", nil)
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, ErrTypeInternal, "record lookup failed", nil)
		return
	}

	resp := ReplayVerifyResponse{SessionID: id, ReplayHash: rec.ReplayHash, Valid: true}
	if err := replay.Check(rec.Replay, rec.ReplayHash); err != nil {
		resp.Valid = false
		resp.Reason = err.Error()
		s.seclog.LogEvent(middleware.GetReqID(r.Context()), "replay_integrity_failure", id, r.RemoteAddr)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleLeaderboard returns the top scores for a period.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	period := store.Period(r.URL.Query().Get("period"))
	switch period {
	case store.PeriodDay, store.PeriodWeek, store.PeriodAll:
	case "":
		period = store.PeriodAll
	default:
		s.writeError(w, r, http.StatusBadRequest, ErrTypeValidation, "period must be day, week or all", nil)
		return
	}

	bucket := store.Bucket(period, time.Now())
	entries, err := s.db.Leaderboard(period, bucket, 10)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, ErrTypeInternal, "leaderboard query failed", nil)
		return
	}
	if entries == nil {
		entries = []store.LeaderboardEntry{}
	}
	s.writeJSON(w, http.StatusOK, LeaderboardResponse{Period: period, Bucket: bucket, Entries: entries})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		EngineVersion: EngineVersion,
	})
}
