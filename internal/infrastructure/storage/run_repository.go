package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const runsTable = "digest_runs"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// RunRepository persists pipeline run outcomes into Postgres.
type RunRepository struct {
	pool *pgxpool.Pool
}

var _ ports.RunRecorder = (*RunRepository)(nil)

// NewRunRepository wires a pgx pool implementation.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// EnsureSchema creates the run history table when missing.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS digest_runs (
		id              TEXT PRIMARY KEY,
		recipient       TEXT NOT NULL,
		preferences     TEXT NOT NULL,
		state           TEXT NOT NULL,
		failed_stage    TEXT NOT NULL DEFAULT '',
		error           TEXT NOT NULL DEFAULT '',
		headline_count  INTEGER NOT NULL DEFAULT 0,
		failed_fetches  INTEGER NOT NULL DEFAULT 0,
		delivery_status TEXT NOT NULL DEFAULT '',
		started_at      TIMESTAMPTZ NOT NULL,
		finished_at     TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS digest_runs_recipient_idx ON digest_runs (recipient, started_at DESC);`

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// Record upserts the run snapshot.
func (r *RunRepository) Record(ctx context.Context, run domain.RunRecord) error {
	if r.pool == nil {
		return nil
	}

	query, args, err := psql.Insert(runsTable).
		Columns("id", "recipient", "preferences", "state", "failed_stage", "error",
			"headline_count", "failed_fetches", "delivery_status", "started_at", "finished_at").
		Values(run.ID, run.Recipient, run.Preferences, string(run.State), string(run.FailedStage), run.Error,
			run.HeadlineCount, run.FailedFetches, string(run.DeliveryStatus), run.StartedAt, run.FinishedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE
			SET state = EXCLUDED.state,
			    failed_stage = EXCLUDED.failed_stage,
			    error = EXCLUDED.error,
			    headline_count = EXCLUDED.headline_count,
			    failed_fetches = EXCLUDED.failed_fetches,
			    delivery_status = EXCLUDED.delivery_status,
			    finished_at = EXCLUDED.finished_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	return nil
}

// ListByRecipient returns the latest runs for a recipient, newest first.
func (r *RunRepository) ListByRecipient(ctx context.Context, recipient string, limit int) ([]domain.RunRecord, error) {
	if r.pool == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query, args, err := psql.Select("id", "recipient", "preferences", "state", "failed_stage", "error",
		"headline_count", "failed_fetches", "delivery_status", "started_at", "finished_at").
		From(runsTable).
		Where(sq.Eq{"recipient": recipient}).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var (
			run                          domain.RunRecord
			state, stage, deliveryStatus string
		)
		if err := rows.Scan(&run.ID, &run.Recipient, &run.Preferences, &state, &stage, &run.Error,
			&run.HeadlineCount, &run.FailedFetches, &deliveryStatus, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.State = domain.RunState(state)
		run.FailedStage = domain.Stage(stage)
		run.DeliveryStatus = domain.DeliveryStatus(deliveryStatus)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return runs, nil
}
