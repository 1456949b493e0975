package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/platform/eventbus"
)

var ErrNotFound = errors.New("consultation not found")

type Service struct {
	repo   Repository
	bus    eventbus.Bus
	logger zerolog.Logger
}

func NewService(repo Repository, bus eventbus.Bus, logger zerolog.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: logger}
}

func (s *Service) Create(ctx context.Context, c *Consultation) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if c.Diagnosis == "" {
		return fmt.Errorf("diagnosis is required")
	}
	c.Status = StatusDraft
	return s.repo.Create(ctx, c)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consultation, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Approve moves a draft consultation to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.transition(ctx, id, StatusApproved)
}

// Discharge moves an approved consultation to discharged and publishes the
// patient.discharged event that spawns the followup. A publish failure is
// logged but does not roll back the status change.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := s.transition(ctx, id, StatusDischarged)
	if err != nil {
		return nil, err
	}

	ev := eventbus.PatientDischarged{
		PatientID:      c.PatientID.String(),
		ConsultationID: c.ID.String(),
	}
	if err := s.bus.Publish(ctx, eventbus.ChannelPatientDischarged, ev); err != nil {
		s.logger.Error().Err(err).Str("consultation_id", c.ID.String()).Msg("publish patient.discharged")
	}

	return c, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to string) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(c.Status, to) {
		return nil, fmt.Errorf("cannot transition consultation from %q to %q", c.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	c.Status = to
	return c, nil
}
