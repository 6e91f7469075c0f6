package stats

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"snipsense/internal/errors"
)

// Run is one recorded analysis run.
type Run struct {
	// ID is a ULID; lexicographic order is start-time order.
	ID string `json:"id"`

	StartedAt  int64 `json:"started_at"`
	FinishedAt int64 `json:"finished_at"`
	DurationMS int64 `json:"duration_ms"`

	EntryCount      int `json:"entry_count"`
	ClusterCount    int `json:"cluster_count"`
	SuggestionCount int `json:"suggestion_count"`

	// Fatal is the fatal error that short-circuited the run, if any.
	Fatal *string `json:"fatal,omitempty"`

	// Errors are the non-fatal errors collected during the run.
	Errors []string `json:"errors,omitempty"`
}

// Suggestion is one persisted suggestion row.
type Suggestion struct {
	ID          string   `json:"id"`
	RunID       string   `json:"run_id"`
	Trigger     string   `json:"trigger"`
	Replacement string   `json:"replacement"`
	SourceTexts []string `json:"source_texts,omitempty"`
	Confidence  float64  `json:"confidence"`
	CreatedAt   int64    `json:"created_at"`
}

// InsertRun stores a run and its suggestions in one transaction.
func (s *Store) InsertRun(r *Run, suggestions []Suggestion) error {
	var errorsJSON sql.NullString
	if len(r.Errors) > 0 {
		data, err := json.Marshal(r.Errors)
		if err != nil {
			return fmt.Errorf("marshal run errors: %w", err)
		}
		errorsJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, started_at, finished_at, entry_count, cluster_count,
			suggestion_count, duration_ms, fatal, errors_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.FinishedAt, r.EntryCount, r.ClusterCount,
		r.SuggestionCount, r.DurationMS, toNullString(r.Fatal), errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, sg := range suggestions {
		var sourcesJSON sql.NullString
		if len(sg.SourceTexts) > 0 {
			data, err := json.Marshal(sg.SourceTexts)
			if err != nil {
				return fmt.Errorf("marshal source texts: %w", err)
			}
			sourcesJSON = sql.NullString{String: string(data), Valid: true}
		}
		_, err = tx.Exec(`
			INSERT INTO suggestions (
				id, run_id, trigger_text, replacement_text,
				source_texts_json, confidence, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sg.ID, sg.RunID, sg.Trigger, sg.Replacement,
			sourcesJSON, sg.Confidence, sg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert suggestion: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, entry_count, cluster_count,
			suggestion_count, duration_ms, fatal, errors_json
		FROM runs WHERE id = ?`, id)

	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("run", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently started run, or nil if there are none.
func (s *Store) LatestRun() (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, entry_count, cluster_count,
			suggestion_count, duration_ms, fatal, errors_json
		FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`)

	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs newest first, up to limit.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, entry_count, cluster_count,
			suggestion_count, duration_ms, fatal, errors_json
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListSuggestions returns suggestions newest first. An empty runID means all
// runs.
func (s *Store) ListSuggestions(runID string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, run_id, trigger_text, replacement_text,
			source_texts_json, confidence, created_at
		FROM suggestions`
	args := []any{}
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []Suggestion
	for rows.Next() {
		var (
			sg          Suggestion
			sourcesJSON sql.NullString
		)
		err := rows.Scan(&sg.ID, &sg.RunID, &sg.Trigger, &sg.Replacement,
			&sourcesJSON, &sg.Confidence, &sg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if sourcesJSON.Valid && sourcesJSON.String != "" {
			if err := json.Unmarshal([]byte(sourcesJSON.String), &sg.SourceTexts); err != nil {
				return nil, fmt.Errorf("decode source texts: %w", err)
			}
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

// CountRuns returns the total number of recorded runs.
func (s *Store) CountRuns() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// scanRun scans one run row via the given scan function.
func scanRun(scan func(...any) error) (*Run, error) {
	var (
		r          Run
		fatal      sql.NullString
		errorsJSON sql.NullString
	)
	err := scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.EntryCount,
		&r.ClusterCount, &r.SuggestionCount, &r.DurationMS, &fatal, &errorsJSON)
	if err != nil {
		return nil, err
	}

	r.Fatal = fromNullString(fatal)
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &r.Errors); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
