package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
	"github.com/MJE43/fruit-merge-go/internal/oracle"
	"github.com/MJE43/fruit-merge-go/internal/session"
	"github.com/MJE43/fruit-merge-go/internal/store"
)

// LoadoutProvider supplies a player's cosmetic loadout (tier → skin id) at
// session creation. The gacha side owns the mapping; the engine only carries
// it through.
type LoadoutProvider interface {
	Loadout(identity string) map[fruit.Tier]string
}

// BareLoadout is the default provider: no cosmetics.
type BareLoadout struct{}

func (BareLoadout) Loadout(string) map[fruit.Tier]string { return nil }

// Server handles HTTP requests.
type Server struct {
	host      *session.Host
	db        store.DB
	sig       oracle.SignatureOracle
	pay       oracle.PaymentOracle
	loadouts  LoadoutProvider
	entryFee  int64
	logger    *log.Logger
	seclog    *SuspicionLogger
	startTime time.Time
}

// NewServer creates a new API server.
func NewServer(host *session.Host, db store.DB, sig oracle.SignatureOracle, pay oracle.PaymentOracle, loadouts LoadoutProvider, entryFee int64) *Server {
	return &Server{
		host:      host,
		db:        db,
		sig:       sig,
		pay:       pay,
		loadouts:  loadouts,
		entryFee:  entryFee,
		logger:    log.New(os.Stdout, "[API] ", log.LstdFlags),
		seclog:    NewSuspicionLogger(),
		startTime: time.Now(),
	}
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleHealth)
	r.Get("/health/ready", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Post("/sessions/{id}/drops", s.handleDrop)
		r.Get("/sessions/{id}", s.handleSnapshot)
		r.Post("/sessions/{id}/end", s.handleEndSession)
		r.Get("/sessions/{id}/live", s.handleLive)
		r.Get("/sessions/{id}/replay/verify", s.handleReplayVerify)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

// writeJSON writes a JSON response with proper headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeError writes a structured error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, errType, message string, context map[string]interface{}) {
	s.writeJSON(w, status, GameError{
		Type:      errType,
		Message:   message,
		Context:   context,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
