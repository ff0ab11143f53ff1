package audit

// #region imports
import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/watch"
)

// #endregion

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id               TEXT PRIMARY KEY,
	strategy         TEXT NOT NULL,
	alert            INTEGER NOT NULL,
	input_digest     TEXT NOT NULL,
	analysis_snippet TEXT,
	explanation_json TEXT NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);

CREATE TABLE IF NOT EXISTS judge_trace (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt_chars INTEGER NOT NULL,
	response     TEXT,
	score        REAL NOT NULL,
	outcome      TEXT NOT NULL,
	alert        INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
`

// #endregion

// #region store

// Store persists decision provenance and judge traces in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion

// #region record-decision

// RecordDecision appends one decision row. A missing ID is filled in.
func (s *Store) RecordDecision(rec watch.DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO decisions (id, strategy, alert, input_digest, analysis_snippet, explanation_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Strategy), boolToInt(rec.Alert), rec.InputDigest,
		rec.AnalysisSnippet, rec.ExplanationJSON, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// #endregion

// #region trace-judge

// TraceJudge appends one judge invocation row.
func (s *Store) TraceJudge(entry watch.JudgeTrace) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO judge_trace (prompt_chars, response, score, outcome, alert, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.PromptChars, entry.Response, entry.Score, entry.Outcome,
		boolToInt(entry.Alert), entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert judge trace: %w", err)
	}
	return nil
}

// #endregion

// #region queries

// RecentDecisions returns the newest decision rows, most recent first.
func (s *Store) RecentDecisions(limit int) ([]watch.DecisionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, strategy, alert, input_digest, analysis_snippet, explanation_json, created_at
		 FROM decisions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []watch.DecisionRecord
	for rows.Next() {
		var rec watch.DecisionRecord
		var strategy, createdAt string
		var alert int
		if err := rows.Scan(&rec.ID, &strategy, &alert, &rec.InputDigest,
			&rec.AnalysisSnippet, &rec.ExplanationJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Strategy = watch.StrategyID(strategy)
		rec.Alert = alert != 0
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			rec.CreatedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AlertCount returns how many recorded decisions alerted.
func (s *Store) AlertCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE alert = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

// RecentJudgeTraces returns the newest judge invocations, most recent first.
func (s *Store) RecentJudgeTraces(limit int) ([]watch.JudgeTrace, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT prompt_chars, response, score, outcome, alert, created_at
		 FROM judge_trace ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query judge trace: %w", err)
	}
	defer rows.Close()

	var out []watch.JudgeTrace
	for rows.Next() {
		var entry watch.JudgeTrace
		var alert int
		var createdAt string
		if err := rows.Scan(&entry.PromptChars, &entry.Response, &entry.Score,
			&entry.Outcome, &alert, &createdAt); err != nil {
			return nil, fmt.Errorf("scan judge trace: %w", err)
		}
		entry.Alert = alert != 0
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			entry.CreatedAt = ts
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// #endregion

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
