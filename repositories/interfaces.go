package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/ragqa/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// InteractionRepository persists question/answer cycles
type InteractionRepository interface {
	// Insert stores a new interaction
	Insert(ctx context.Context, interaction *models.Interaction) error

	// GetByID retrieves an interaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Interaction, error)

	// GetByRequestID retrieves the interactions recorded for an HTTP request
	GetByRequestID(ctx context.Context, requestID string) ([]*models.Interaction, error)

	// ListRecent retrieves interactions newest first with pagination
	ListRecent(ctx context.Context, limit, offset int) ([]*models.Interaction, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Interactions InteractionRepository
}
