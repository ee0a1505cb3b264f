package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"telbill/pkg/metrics"
)

var ErrCallNotFound = errors.New("call not found")

// CallStore keeps consolidated calls. Every method is a single statement, so
// concurrent runs for both halves of a call need no further locking.
type CallStore interface {
	// Upsert merges u into the stored call. Nil fields never overwrite
	// stored values and a complete call is left unchanged.
	Upsert(ctx context.Context, u CallUpdate) error
	Get(ctx context.Context, callID string) (Call, error)
	// ClaimCompletion records jobID as the run that propagates a complete
	// call. It reports true for the first claimant and for that same job on
	// retry, false for everybody else.
	ClaimCompletion(ctx context.Context, callID, jobID string) (bool, error)
}

// RegistryStore keeps the raw events as received, one per call and kind.
type RegistryStore interface {
	Save(ctx context.Context, e Event, jobID string) (bool, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, u CallUpdate) (err error) {
	defer observe("upsert_call", time.Now(), &err)

	query := `
		INSERT INTO calls (call_id, source, destination, start_timestamp, stop_timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (call_id) DO UPDATE SET
			source          = COALESCE(EXCLUDED.source, calls.source),
			destination     = COALESCE(EXCLUDED.destination, calls.destination),
			start_timestamp = COALESCE(EXCLUDED.start_timestamp, calls.start_timestamp),
			stop_timestamp  = COALESCE(EXCLUDED.stop_timestamp, calls.stop_timestamp),
			updated_at      = NOW()
		WHERE NOT calls.complete
	`

	_, err = r.db.ExecContext(ctx, query,
		u.CallID,
		nullString(u.Source),
		nullString(u.Destination),
		nullTime(u.StartTimestamp),
		nullTime(u.StopTimestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert call %s: %w", u.CallID, err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, callID string) (call Call, err error) {
	defer observe("get_call", time.Now(), &err)

	query := `
		SELECT call_id, source, destination, start_timestamp, stop_timestamp, completed_by
		FROM calls
		WHERE call_id = $1
	`

	var (
		source, destination, completedBy sql.NullString
		start, stop                      sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, query, callID).Scan(
		&call.CallID,
		&source,
		&destination,
		&start,
		&stop,
		&completedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}
	if err != nil {
		return Call{}, fmt.Errorf("failed to get call %s: %w", callID, err)
	}

	if source.Valid {
		call.Source = &source.String
	}
	if destination.Valid {
		call.Destination = &destination.String
	}
	if start.Valid {
		t := start.Time.UTC()
		call.StartTimestamp = &t
	}
	if stop.Valid {
		t := stop.Time.UTC()
		call.StopTimestamp = &t
	}
	call.CompletedBy = completedBy.String

	return call, nil
}

func (r *PostgresRepository) ClaimCompletion(ctx context.Context, callID, jobID string) (claimed bool, err error) {
	defer observe("claim_completion", time.Now(), &err)

	query := `
		UPDATE calls
		SET completed_by = $2, updated_at = NOW()
		WHERE call_id = $1
		  AND complete
		  AND (completed_by IS NULL OR completed_by = $2)
	`

	res, err := r.db.ExecContext(ctx, query, callID, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to claim completion of call %s: %w", callID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Save stores e unless an event of the same kind was stored for the call.
func (r *PostgresRepository) Save(ctx context.Context, e Event, jobID string) (inserted bool, err error) {
	defer observe("save_registry", time.Now(), &err)

	query := `
		INSERT INTO registries (call_id, kind, timestamp, source, destination, job_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (call_id, kind) DO NOTHING
	`

	var source, destination *string
	if e.Kind == KindStart {
		source, destination = &e.Source, &e.Destination
	}

	res, err := r.db.ExecContext(ctx, query,
		e.CallID,
		string(e.Kind),
		e.Timestamp.UTC(),
		nullString(source),
		nullString(destination),
		jobID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save registry %s/%s: %w", e.CallID, e.Kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery("postgres", operation, *err, time.Since(start))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
