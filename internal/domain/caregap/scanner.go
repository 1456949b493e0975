// Package caregap scans a patient's record for overdue or missing care and
// drafts outreach messages for each gap it finds.
package caregap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/domain/consultation"
	"github.com/mediloop/mediloop/internal/domain/followup"
	"github.com/mediloop/mediloop/internal/domain/identity"
	"github.com/mediloop/mediloop/internal/platform/llm"
)

const (
	GapDeteriorationUnresolved = "DETERIORATION_UNRESOLVED"
	GapFollowupMissing         = "FOLLOWUP_MISSING"
	GapLabOverdue              = "LAB_OVERDUE"
	GapVitalsOverdue           = "VITALS_OVERDUE"
	GapScreeningOverdue        = "SCREENING_OVERDUE"
)

var gapPriority = map[string]int{
	GapDeteriorationUnresolved: 1,
	GapFollowupMissing:         2,
	GapLabOverdue:              3,
	GapVitalsOverdue:           4,
	GapScreeningOverdue:        5,
}

const screeningAge = 40

// Gap is one detected care gap with a drafted outreach message.
type Gap struct {
	PatientID uuid.UUID `json:"patient_id"`
	Type      string    `json:"gap_type"`
	Priority  int       `json:"priority"`
	Outreach  string    `json:"outreach_msg"`
	FlaggedAt time.Time `json:"flagged_at"`
}

type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type ConsultationSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*consultation.Consultation, error)
}

type FollowupSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*followup.Followup, error)
}

type Scanner struct {
	patients PatientSource
	consults ConsultationSource
	fups     FollowupSource
	gen      llm.TextGenerator
	logger   zerolog.Logger
}

func NewScanner(
	patients PatientSource,
	consults ConsultationSource,
	fups FollowupSource,
	gen llm.TextGenerator,
	logger zerolog.Logger,
) *Scanner {
	return &Scanner{patients: patients, consults: consults, fups: fups, gen: gen, logger: logger}
}

// ScanPatient runs every gap rule for one patient and returns the detected
// gaps ordered by priority, most urgent first.
func (s *Scanner) ScanPatient(ctx context.Context, patientID uuid.UUID) ([]Gap, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}
	consults, err := s.consults.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	fups, err := s.fups.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list followups: %w", err)
	}

	now := time.Now().UTC()
	var types []string

	if hasCondition(patient, "diabetes") && !consultedSince(consults, now.AddDate(0, 0, -90)) {
		types = append(types, GapLabOverdue)
	}
	if hasCondition(patient, "hypertension") && !consultedSince(consults, now.AddDate(0, 0, -30)) {
		types = append(types, GapVitalsOverdue)
	}
	if patient.Age >= screeningAge && !consultedSince(consults, now.AddDate(-1, 0, 0)) {
		types = append(types, GapScreeningOverdue)
	}
	if missingFollowup(consults, fups) {
		types = append(types, GapFollowupMissing)
	}
	if deteriorationUnresolved(fups, now) {
		types = append(types, GapDeteriorationUnresolved)
	}

	gaps := make([]Gap, 0, len(types))
	for _, gapType := range types {
		gaps = append(gaps, Gap{
			PatientID: patientID,
			Type:      gapType,
			Priority:  gapPriority[gapType],
			Outreach:  s.draftOutreach(ctx, patient, gapType),
			FlaggedAt: now,
		})
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Priority < gaps[j].Priority })

	if len(gaps) > 0 {
		s.logger.Info().
			Str("patient_id", patientID.String()).
			Int("gaps", len(gaps)).
			Str("most_urgent", gaps[0].Type).
			Msg("care gaps detected")
	}
	return gaps, nil
}

func hasCondition(p *identity.Patient, condition string) bool {
	for _, c := range p.ChronicConditions {
		if strings.EqualFold(c, condition) {
			return true
		}
	}
	return false
}

func consultedSince(consults []*consultation.Consultation, since time.Time) bool {
	for _, c := range consults {
		if c.CreatedAt.After(since) {
			return true
		}
	}
	return false
}

// missingFollowup reports whether any consultation never spawned a followup.
func missingFollowup(consults []*consultation.Consultation, fups []*followup.Followup) bool {
	covered := make(map[uuid.UUID]bool, len(fups))
	for _, f := range fups {
		covered[f.ConsultationID] = true
	}
	for _, c := range consults {
		if !covered[c.ID] {
			return true
		}
	}
	return false
}

// deteriorationUnresolved reports whether a high-risk flagged followup has
// been sitting unaddressed for over 48 hours.
func deteriorationUnresolved(fups []*followup.Followup, now time.Time) bool {
	cutoff := now.Add(-48 * time.Hour)
	for _, f := range fups {
		if f.Status != followup.StatusFlagged {
			continue
		}
		if f.RiskLabel != "HIGH" && f.RiskLabel != "CRITICAL" {
			continue
		}
		if f.CreatedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

func (s *Scanner) draftOutreach(ctx context.Context, patient *identity.Patient, gapType string) string {
	diagnosis := strings.Join(patient.ChronicConditions, ", ")
	if diagnosis == "" {
		diagnosis = "general health"
	}
	prompt := fmt.Sprintf(
		"Draft a short, friendly WhatsApp message (under 200 characters) to a patient.\n"+
			"Patient Name: %s\nAge: %d\nDiagnosis: %s\nCare Gap Type: %s\n\n"+
			"The message should gently remind them about their %s care gap. "+
			"Keep it professional but empathetic.",
		patient.Name, patient.Age, diagnosis, gapType, gapType,
	)
	msg, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn().Err(err).Str("gap_type", gapType).Msg("outreach drafting failed, using template")
		return fmt.Sprintf("Hi %s, please schedule a visit regarding your %s. Our doctors are here to help!",
			patient.Name, gapType)
	}
	return msg
}
