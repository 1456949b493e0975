package intent

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *AIDecision) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]AIDecision, error)
	ListRecent(ctx context.Context, limit int) ([]AIDecision, error)
}
