package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for recalculation run tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("recalculation run not found")

const runColumns = `
	id, client_id, trigger, status, total_products, processed_products,
	failed_products, started_at, completed_at, COALESCE(error_message, ''),
	COALESCE(report_key, '')`

// CreateRun creates a new run record
func (r *Repository) CreateRun(ctx context.Context, run *RecalculationRun) error {
	query := `
		INSERT INTO recalculation_runs (
			id, client_id, trigger, status, total_products,
			processed_products, failed_products, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.ID, run.ClientID, run.Trigger, run.Status, run.TotalProducts,
		run.ProcessedProducts, run.FailedProducts, run.StartedAt,
	)
	return err
}

// UpdateRun updates an existing run
func (r *Repository) UpdateRun(ctx context.Context, run *RecalculationRun) error {
	query := `
		UPDATE recalculation_runs
		SET status = $1, total_products = $2, processed_products = $3,
		    failed_products = $4, completed_at = $5, error_message = $6,
		    report_key = $7
		WHERE id = $8
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.TotalProducts, run.ProcessedProducts,
		run.FailedProducts, run.CompletedAt, run.ErrorMessage,
		run.ReportKey, run.ID,
	)
	return err
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*RecalculationRun, error) {
	query := `SELECT ` + runColumns + ` FROM recalculation_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRecentRuns returns the latest runs for a client, newest first
func (r *Repository) ListRecentRuns(ctx context.Context, clientID string, limit int) ([]*RecalculationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT ` + runColumns + `
		FROM recalculation_runs
		WHERE client_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RecalculationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRunStats summarizes runs started since the given time
func (r *Repository) GetRunStats(ctx context.Context, since time.Time) (*RunStats, error) {
	query := `
		SELECT
			COUNT(*) AS runs,
			COUNT(CASE WHEN status = $1 THEN 1 END) AS failed_runs,
			COALESCE(SUM(processed_products), 0) AS products_processed,
			COALESCE(SUM(failed_products), 0) AS products_failed,
			MAX(completed_at) AS last_completed_at
		FROM recalculation_runs
		WHERE started_at >= $2
	`

	stats := &RunStats{}
	err := r.db.QueryRowContext(ctx, query, StatusFailed, since).Scan(
		&stats.Runs,
		&stats.FailedRuns,
		&stats.ProductsProcessed,
		&stats.ProductsFailed,
		&stats.LastCompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &RunStats{}, nil
	}
	return stats, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RecalculationRun, error) {
	run := &RecalculationRun{}
	err := row.Scan(
		&run.ID, &run.ClientID, &run.Trigger, &run.Status,
		&run.TotalProducts, &run.ProcessedProducts, &run.FailedProducts,
		&run.StartedAt, &run.CompletedAt, &run.ErrorMessage, &run.ReportKey,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

var _ RunStore = (*Repository)(nil)
