package followup

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new followup. Returns ErrActiveFollowupExists when the
	// patient already has one in status active.
	Create(ctx context.Context, f *Followup) error
	GetByID(ctx context.Context, id uuid.UUID) (*Followup, error)
	// GetActiveByPatient finds the patient's followup in status active.
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Followup, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Followup, error)
	// AppendMessage appends one entry to the conversation log.
	AppendMessage(ctx context.Context, id uuid.UUID, entry ConversationEntry) error
	// CompleteSlot marks one check-in slot completed at the given time.
	CompleteSlot(ctx context.Context, id uuid.UUID, slotIndex int, at time.Time) error
	// UpdateRisk persists score, label and status in one write.
	UpdateRisk(ctx context.Context, id uuid.UUID, score float64, label, status string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
