package pain

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, ps *PainScore) error
	// ListByPatient returns a patient's scores newest first, capped at limit.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]PainScore, error)
}
