package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dev/bravebird/ui-harness/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewFromConn wraps an open connection
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scenario_runs (
		id VARCHAR(64) PRIMARY KEY,
		feature VARCHAR(255) NOT NULL,
		scenario VARCHAR(255) NOT NULL,
		temporal_workflow_id VARCHAR(255) NOT NULL DEFAULT '',
		temporal_run_id VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL,
		started_at TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP NULL,
		error_message TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS step_results (
		id VARCHAR(36) PRIMARY KEY,
		run_id VARCHAR(64) NOT NULL,
		step_index INT NOT NULL,
		keyword VARCHAR(10) NOT NULL,
		text TEXT NOT NULL,
		status VARCHAR(20) NOT NULL,
		error_kind VARCHAR(64) NOT NULL DEFAULT '',
		error_message TEXT NOT NULL,
		screenshot_path VARCHAR(512) NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uniq_run_step (run_id, step_index),
		FOREIGN KEY (run_id) REFERENCES scenario_runs(id) ON DELETE CASCADE
	)`,
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// ==================== Scenario Runs ====================

// CreateScenarioRun creates a new scenario run
func (db *DB) CreateScenarioRun(ctx context.Context, run *models.ScenarioRun) error {
	query := `
		INSERT INTO scenario_runs (id, feature, scenario, temporal_workflow_id, temporal_run_id, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.Feature,
		run.Scenario,
		run.TemporalWorkflowID,
		run.TemporalRunID,
		string(run.Status),
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetScenarioRun retrieves a scenario run by ID with its step results. It
// returns nil when the run does not exist.
func (db *DB) GetScenarioRun(ctx context.Context, id string) (*models.ScenarioRun, error) {
	query := `
		SELECT id, feature, scenario, temporal_workflow_id, temporal_run_id, status,
		       started_at, completed_at, error_message
		FROM scenario_runs
		WHERE id = ?
	`

	var run models.ScenarioRun
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Feature,
		&run.Scenario,
		&run.TemporalWorkflowID,
		&run.TemporalRunID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ErrorMessage,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Steps, err = db.GetStepResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListScenarioRuns retrieves the most recent runs, newest first
func (db *DB) ListScenarioRuns(ctx context.Context, limit int) ([]models.ScenarioRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, feature, scenario, temporal_workflow_id, temporal_run_id, status,
		       started_at, completed_at, error_message
		FROM scenario_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ScenarioRun{}
	for rows.Next() {
		var run models.ScenarioRun
		err := rows.Scan(
			&run.ID,
			&run.Feature,
			&run.Scenario,
			&run.TemporalWorkflowID,
			&run.TemporalRunID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// UpdateRunStatus updates the status of a scenario run
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE scenario_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW() ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, string(status), errorMsg, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// ==================== Step Results ====================

// SaveStepResults stores the step results of a run, replacing earlier rows
// for the same step index
func (db *DB) SaveStepResults(ctx context.Context, runID string, steps []models.StepResult) error {
	query := `
		INSERT INTO step_results (id, run_id, step_index, keyword, text, status, error_kind, error_message, screenshot_path, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), error_kind = VALUES(error_kind),
		    error_message = VALUES(error_message), screenshot_path = VALUES(screenshot_path),
		    duration_ms = VALUES(duration_ms)
	`

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, step := range steps {
		_, err := stmt.ExecContext(ctx,
			step.ID,
			runID,
			step.Index,
			step.Keyword,
			step.Text,
			string(step.Status),
			step.ErrorKind,
			step.ErrorMessage,
			step.ScreenshotPath,
			step.Duration,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step result: %w", err)
		}
	}

	return tx.Commit()
}

// GetStepResults retrieves the step results of a run in step order
func (db *DB) GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error) {
	query := `
		SELECT id, run_id, step_index, keyword, text, status, error_kind,
		       error_message, screenshot_path, duration_ms
		FROM step_results
		WHERE run_id = ?
		ORDER BY step_index
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get step results: %w", err)
	}
	defer rows.Close()

	var results []models.StepResult
	for rows.Next() {
		var result models.StepResult
		err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.Index,
			&result.Keyword,
			&result.Text,
			&result.Status,
			&result.ErrorKind,
			&result.ErrorMessage,
			&result.ScreenshotPath,
			&result.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get step results: %w", err)
	}

	return results, nil
}
