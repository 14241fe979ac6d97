package deadletter

import (
	"context"

	"github.com/resilix/resilix/internal/database"
	"github.com/resilix/resilix/pkg/errors"
)

// PostgresStore persists dead letter records in the dead_letters table
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a store backed by the given database
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a record
func (s *PostgresStore) Add(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO dead_letters (operation_id, operation_type, function_name, serialized_args, error_message, attempts, created_at, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.OperationType,
		record.FunctionName,
		record.SerializedArgs,
		record.ErrorMessage,
		record.Attempts,
		record.CreatedAt,
		record.FailedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert dead letter").WithCause(err)
	}
	return nil
}

// List returns the most recent records, newest first
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT operation_id, operation_type, function_name, serialized_args, error_message, attempts, created_at, failed_at
		FROM dead_letters
		ORDER BY failed_at DESC, id DESC
		LIMIT $1`

	records := make([]*Record, 0, limit)
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, errors.NewInternalError("failed to list dead letters").WithCause(err)
	}
	return records, nil
}

// Count returns the number of stored records
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM dead_letters`); err != nil {
		return 0, errors.NewInternalError("failed to count dead letters").WithCause(err)
	}
	return count, nil
}
