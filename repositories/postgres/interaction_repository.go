package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/ragqa/models"
	"github.com/upb/ragqa/repositories"
	"go.uber.org/zap"
)

const interactionColumns = `id, request_id, question, answer, sources, context_chunks, model,
		       prompt_tokens, completion_tokens, latency_ms, status, error_type, error_message, created_at`

// InteractionRepository implements the repositories.InteractionRepository interface
type InteractionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB, logger *zap.Logger) repositories.InteractionRepository {
	return &InteractionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new interaction
func (r *InteractionRepository) Insert(ctx context.Context, i *models.Interaction) error {
	query := `
		INSERT INTO interactions (
			id, request_id, question, answer, sources, context_chunks, model,
			prompt_tokens, completion_tokens, latency_ms, status, error_type, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		i.ID,
		i.RequestID,
		i.Question,
		i.Answer,
		[]byte(i.Sources),
		i.ContextChunks,
		i.Model,
		i.PromptTokens,
		i.CompletionTokens,
		i.LatencyMs,
		string(i.Status),
		i.ErrorType,
		i.ErrorMessage,
		i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	r.logger.Debug("interaction inserted", zap.String("id", i.ID.String()), zap.String("status", string(i.Status)))
	return nil
}

// GetByID retrieves an interaction by ID
func (r *InteractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE id = $1`

	i, err := scanInteraction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("interaction %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	return i, nil
}

// GetByRequestID retrieves interactions by request ID
func (r *InteractionRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.Interaction, error) {
	query := `SELECT ` + interactionColumns + `
		FROM interactions
		WHERE request_id = $1
		ORDER BY created_at DESC
	`
	return r.queryInteractions(ctx, query, requestID)
}

// ListRecent retrieves interactions newest first
func (r *InteractionRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.Interaction, error) {
	query := `SELECT ` + interactionColumns + `
		FROM interactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.queryInteractions(ctx, query, limit, offset)
}

func (r *InteractionRepository) queryInteractions(ctx context.Context, query string, args ...interface{}) ([]*models.Interaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInteraction(row rowScanner) (*models.Interaction, error) {
	i := &models.Interaction{}
	var (
		status  string
		sources []byte
	)
	err := row.Scan(
		&i.ID,
		&i.RequestID,
		&i.Question,
		&i.Answer,
		&sources,
		&i.ContextChunks,
		&i.Model,
		&i.PromptTokens,
		&i.CompletionTokens,
		&i.LatencyMs,
		&status,
		&i.ErrorType,
		&i.ErrorMessage,
		&i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Status = models.InteractionStatus(status)
	i.Sources = sources
	return i, nil
}
