// Package persistence provides SQLite-backed storage for debate sessions.
// Each Store owns its own connection; sessions are isolated by session_id.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
	"refinery/pkg/logx"
)

// Store records session lifecycles and per-round history. It implements
// the engine's Recorder contract and is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	logger := logx.NewLogger("persistence")
	logger.Info("database ready: %s", dbPath)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// StartSession records a new session with its original artifact.
func (s *Store) StartSession(ctx context.Context, sessionID string, original artifact.Artifact) error {
	originalJSON, err := original.ToJSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, original_json, started_at) VALUES (?, ?, ?)`,
		sessionID, originalJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sessionID, err)
	}
	return nil
}

// RecordIteration appends one completed round to the session history.
func (s *Store) RecordIteration(ctx context.Context, sessionID string, rec debate.IterationRecord) error {
	violationsJSON, err := json.Marshal(rec.Violations)
	if err != nil {
		return fmt.Errorf("failed to marshal violations: %w", err)
	}
	roles := make([]string, len(rec.RolesRan))
	for i, r := range rec.RolesRan {
		roles[i] = string(r)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO iterations (session_id, idx, confidence, violation_count, violations_json, roles_ran, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.Index, rec.Confidence, rec.ViolationCount,
		string(violationsJSON), strings.Join(roles, ","), rec.StartedAt.UTC(), rec.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert iteration %d for session %s: %w", rec.Index, sessionID, err)
	}
	return nil
}

// FinishSession stores the terminal outcome. For split proposals the
// proposed artifacts land in their own table, ordered.
func (s *Store) FinishSession(ctx context.Context, sessionID string, outcome debate.Outcome) error {
	var finalJSON sql.NullString
	if !outcome.Final.IsEmpty() {
		j, err := outcome.Final.ToJSON()
		if err != nil {
			return err
		}
		finalJSON = sql.NullString{String: j, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET final_json = ?, outcome = ?, reason = ?, rationale = ?, finished_at = ? WHERE session_id = ?`,
		finalJSON, string(outcome.Kind), outcome.Reason, outcome.Rationale, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session %s: %w", sessionID, err)
	}

	for i, part := range outcome.Proposed {
		j, err := part.ToJSON()
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO proposed_splits (session_id, ordinal, artifact_json) VALUES (?, ?, ?)`,
			sessionID, i, j); err != nil {
			return fmt.Errorf("failed to insert proposed split %d for session %s: %w", i, sessionID, err)
		}
	}
	s.logger.Debug("session %s finished: %s", sessionID, outcome.Kind)
	return nil
}

// SessionRecord is the stored view of one session.
type SessionRecord struct {
	SessionID  string
	Original   artifact.Artifact
	Final      *artifact.Artifact
	Outcome    string
	Reason     string
	Rationale  string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// GetSession loads a session row. Returns sql.ErrNoRows when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	var (
		rec          SessionRecord
		originalJSON string
		finalJSON    sql.NullString
		finishedAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, original_json, final_json, outcome, reason, rationale, started_at, finished_at
		 FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&rec.SessionID, &originalJSON, &finalJSON, &rec.Outcome, &rec.Reason, &rec.Rationale, &rec.StartedAt, &finishedAt)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if rec.Original, err = artifact.FromJSON(originalJSON); err != nil {
		return SessionRecord{}, err
	}
	if finalJSON.Valid {
		final, err := artifact.FromJSON(finalJSON.String)
		if err != nil {
			return SessionRecord{}, err
		}
		rec.Final = &final
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}

// ListIterations returns the session's round history in order.
func (s *Store) ListIterations(ctx context.Context, sessionID string) ([]debate.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, confidence, violation_count, violations_json, roles_ran, started_at, completed_at
		 FROM iterations WHERE session_id = ? ORDER BY idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []debate.IterationRecord
	for rows.Next() {
		var (
			rec            debate.IterationRecord
			violationsJSON string
			rolesRan       string
		)
		if err := rows.Scan(&rec.Index, &rec.Confidence, &rec.ViolationCount,
			&violationsJSON, &rolesRan, &rec.StartedAt, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan iteration row: %w", err)
		}
		if err := json.Unmarshal([]byte(violationsJSON), &rec.Violations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal violations: %w", err)
		}
		if rolesRan != "" {
			for _, r := range strings.Split(rolesRan, ",") {
				rec.RolesRan = append(rec.RolesRan, debate.Role(r))
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate iteration rows: %w", err)
	}
	return out, nil
}

// ListProposedSplits returns the decomposition a session ended with, in order.
func (s *Store) ListProposedSplits(ctx context.Context, sessionID string) ([]artifact.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact_json FROM proposed_splits WHERE session_id = ? ORDER BY ordinal`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []artifact.Artifact
	for rows.Next() {
		var j string
		if err := rows.Scan(&j); err != nil {
			return nil, fmt.Errorf("failed to scan split row: %w", err)
		}
		a, err := artifact.FromJSON(j)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split rows: %w", err)
	}
	return out, nil
}
