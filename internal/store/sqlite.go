package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteDB implements the DB interface using SQLite.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) a SQLite database at path.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate creates the schema.
func (s *SQLiteDB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL UNIQUE,
			total_score INTEGER NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,
			max_score INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			final_score INTEGER NOT NULL,
			end_reason TEXT NOT NULL,
			replay BLOB,
			replay_hash TEXT NOT NULL,
			suspicion_score INTEGER NOT NULL DEFAULT 0,
			flags TEXT NOT NULL DEFAULT '[]',
			needs_review INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_identity ON sessions(identity, ended_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_review ON sessions(needs_review, suspicion_score DESC)`,
		`CREATE TABLE IF NOT EXISTS period_bests (
			identity TEXT NOT NULL,
			period TEXT NOT NULL,
			bucket TEXT NOT NULL,
			best_score INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (identity, period, bucket)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_period_bests_board ON period_bests(period, bucket, best_score DESC)`,
		`CREATE TABLE IF NOT EXISTS payment_proofs (
			proof TEXT PRIMARY KEY,
			consumed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// EnsureUser creates the user row for an identity if absent and returns it.
func (s *SQLiteDB) EnsureUser(identity string) (*User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (id, identity) VALUES (?, ?) ON CONFLICT(identity) DO NOTHING`,
		uuid.New().String(), identity,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	var u User
	err = s.db.QueryRow(
		`SELECT id, identity, total_score, play_count, max_score, created_at FROM users WHERE identity = ?`,
		identity,
	).Scan(&u.ID, &u.Identity, &u.TotalScore, &u.PlayCount, &u.MaxScore, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// RecordSession commits one finished session atomically.
func (s *SQLiteDB) RecordSession(rec *SessionRecord) (*CommitResult, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	flagsJSON, err := json.Marshal(rec.Flags)
	if err != nil {
		return nil, fmt.Errorf("marshal flags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prevMax int64
	err = tx.QueryRow(`SELECT max_score FROM users WHERE identity = ?`, rec.Identity).Scan(&prevMax)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(
			`INSERT INTO users (id, identity) VALUES (?, ?)`,
			uuid.New().String(), rec.Identity,
		); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		prevMax = 0
	} else if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	needsReview := 0
	if rec.NeedsReview {
		needsReview = 1
	}
	if _, err := tx.Exec(
		`INSERT INTO sessions (
			id, identity, started_at, ended_at, final_score, end_reason,
			replay, replay_hash, suspicion_score, flags, needs_review
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Identity, rec.StartedAt.UTC(), rec.EndedAt.UTC(), rec.FinalScore,
		rec.EndReason, rec.Replay, rec.ReplayHash, rec.SuspicionScore, string(flagsJSON), needsReview,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE users SET
			total_score = total_score + ?,
			play_count = play_count + 1,
			max_score = MAX(max_score, ?)
		WHERE identity = ?`,
		rec.FinalScore, rec.FinalScore, rec.Identity,
	); err != nil {
		return nil, fmt.Errorf("update user totals: %w", err)
	}

	for _, period := range []Period{PeriodDay, PeriodWeek} {
		bucket := Bucket(period, rec.EndedAt)
		if _, err := tx.Exec(
			`INSERT INTO period_bests (identity, period, bucket, best_score)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(identity, period, bucket)
			DO UPDATE SET best_score = MAX(best_score, excluded.best_score), updated_at = CURRENT_TIMESTAMP`,
			rec.Identity, string(period), bucket, rec.FinalScore,
		); err != nil {
			return nil, fmt.Errorf("upsert %s best: %w", period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &CommitResult{NewHighScore: rec.FinalScore > prevMax}, nil
}

// GetSessionRecord loads one persisted session by id.
func (s *SQLiteDB) GetSessionRecord(id string) (*SessionRecord, error) {
	var rec SessionRecord
	var flagsJSON string
	var needsReview int

	err := s.db.QueryRow(
		`SELECT id, identity, started_at, ended_at, final_score, end_reason,
			replay, replay_hash, suspicion_score, flags, needs_review
		FROM sessions WHERE id = ?`,
		id,
	).Scan(
		&rec.ID, &rec.Identity, &rec.StartedAt, &rec.EndedAt, &rec.FinalScore,
		&rec.EndReason, &rec.Replay, &rec.ReplayHash, &rec.SuspicionScore,
		&flagsJSON, &needsReview,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if err := json.Unmarshal([]byte(flagsJSON), &rec.Flags); err != nil {
		return nil, fmt.Errorf("unmarshal flags: %w", err)
	}
	rec.NeedsReview = needsReview == 1
	return &rec, nil
}

// ConsumePaymentProof marks a proof as used; false means already consumed.
func (s *SQLiteDB) ConsumePaymentProof(proof string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO payment_proofs (proof) VALUES (?)`, proof)
	if err != nil {
		return false, fmt.Errorf("consume proof: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Leaderboard returns the top scores for a period bucket, best first.
func (s *SQLiteDB) Leaderboard(period Period, bucket string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows *sql.Rows
	var err error
	if period == PeriodAll {
		rows, err = s.db.Query(
			`SELECT identity, max_score FROM users ORDER BY max_score DESC, identity LIMIT ?`,
			limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT identity, best_score FROM period_bests
			WHERE period = ? AND bucket = ?
			ORDER BY best_score DESC, identity LIMIT ?`,
			string(period), bucket, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Identity, &e.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
