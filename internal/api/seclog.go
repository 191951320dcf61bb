package api

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"strings"
)

// SuspicionLogger handles security-conscious logging of rejected and
// suspicious activity. Identities and session ids are logged hashed so the
// audit log never exposes raw wallet addresses.
type SuspicionLogger struct {
	logger *log.Logger
}

// NewSuspicionLogger creates a new suspicion logger.
func NewSuspicionLogger() *SuspicionLogger {
	return &SuspicionLogger{
		logger: log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.LUTC),
	}
}

// LogEvent logs one security-relevant event (throttle hit, proof reuse,
// integrity failure).
func (sl *SuspicionLogger) LogEvent(requestID, eventType, subject, remoteAddr string) {
	sl.logger.Printf(
		"security_event request_id=%s type=%s subject_hash=%s remote_addr=%s engine_version=%s",
		requestID, eventType, hashSubject(subject), remoteAddr, EngineVersion,
	)
}

// LogSuspicion logs an anti-cheat verdict that crossed the review threshold.
func (sl *SuspicionLogger) LogSuspicion(requestID, sessionID string, score int, flags []string) {
	sl.logger.Printf(
		"suspicion_review request_id=%s session=%s score=%d flags=%s engine_version=%s",
		requestID, sessionID, score, strings.Join(flags, ","), EngineVersion,
	)
}

func hashSubject(subject string) string {
	if subject == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}
