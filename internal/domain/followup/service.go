package followup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/domain/consultation"
	"github.com/mediloop/mediloop/internal/domain/identity"
	"github.com/mediloop/mediloop/internal/domain/risk"
	"github.com/mediloop/mediloop/internal/platform/eventbus"
	"github.com/mediloop/mediloop/internal/platform/llm"
	"github.com/mediloop/mediloop/internal/platform/messaging"
	"github.com/mediloop/mediloop/internal/platform/scheduler"
	"github.com/mediloop/mediloop/internal/platform/ws"
)

var (
	ErrNotFound             = errors.New("followup not found")
	ErrNoActiveFollowup     = errors.New("no active followup found")
	ErrActiveFollowupExists = errors.New("patient already has an active followup")
)

// PatientSource and ConsultationSource are the read-only collaborator views
// this module needs; it never mutates either.
type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type ConsultationSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error)
}

type RiskScorer interface {
	Classify(f risk.Features) (float64, risk.Label)
}

type CheckinScheduler interface {
	Schedule(ctx context.Context, jobID string, at time.Time, fn scheduler.Callback) error
	CancelByPrefix(ctx context.Context, prefix string) int
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

type AlertBroadcaster interface {
	Broadcast(alert ws.Alert)
}

// Service owns the followup lifecycle: creation on discharge, scheduled
// check-ins, reply processing with risk re-evaluation, and escalation.
type Service struct {
	repo       Repository
	patients   PatientSource
	consults   ConsultationSource
	extractor  *Extractor
	classifier RiskScorer
	gen        llm.TextGenerator
	sender     messaging.Sender
	bus        eventbus.Bus
	checkins   CheckinScheduler
	hub        AlertBroadcaster
	logger     zerolog.Logger
}

func NewService(
	repo Repository,
	patients PatientSource,
	consults ConsultationSource,
	extractor *Extractor,
	classifier RiskScorer,
	gen llm.TextGenerator,
	sender messaging.Sender,
	bus eventbus.Bus,
	checkins CheckinScheduler,
	hub AlertBroadcaster,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		patients:   patients,
		consults:   consults,
		extractor:  extractor,
		classifier: classifier,
		gen:        gen,
		sender:     sender,
		bus:        bus,
		checkins:   checkins,
		hub:        hub,
		logger:     logger,
	}
}

// Create spawns a followup for a discharged patient: persists the record with
// its six-slot schedule, arms the check-in jobs, and sends the opener message
// when the patient has a phone. A send failure never fails the creation.
func (s *Service) Create(ctx context.Context, patientID, consultationID uuid.UUID) (*Followup, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}

	diagnosis := defaultDiagnosis
	if consult, err := s.consults.GetByID(ctx, consultationID); err == nil {
		diagnosis = consult.Diagnosis
	}

	now := time.Now().UTC()
	f := &Followup{
		PatientID:       patientID,
		ConsultationID:  consultationID,
		Status:          StatusActive,
		RiskScore:       0.0,
		RiskLabel:       string(risk.LabelLow),
		ConversationLog: []ConversationEntry{},
		CheckinSchedule: buildSchedule(now),
		Pediatric:       patient.Age < identity.PediatricAge,
		CreatedAt:       now,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}

	for i, slot := range f.CheckinSchedule {
		jobID := fmt.Sprintf("%s-%d", patientID, i)
		slotIndex := i
		err := s.checkins.Schedule(ctx, jobID, slot.ScheduledAt, func(cbCtx context.Context) {
			if err := s.RunCheckin(cbCtx, patientID, f.ID, slotIndex); err != nil {
				s.logger.Error().Err(err).
					Str("followup_id", f.ID.String()).
					Int("slot", slotIndex).
					Msg("check-in failed")
			}
		})
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", jobID).Msg("schedule check-in")
		}
	}

	if patient.HasPhone() {
		opener := s.generateOpener(ctx, patient.Name, diagnosis, f.Pediatric)
		s.sender.Send(ctx, *patient.Phone, opener)
		s.appendEntry(ctx, f, RoleBot, opener)
	}

	s.logger.Info().
		Str("followup_id", f.ID.String()).
		Str("patient_id", patientID.String()).
		Bool("pediatric", f.Pediatric).
		Msg("followup created")
	return f, nil
}

// RunCheckin is the scheduler callback. It is a no-op when the followup is
// missing or already completed; the status check happens here at dispatch
// time so a completion between scheduling and firing is respected.
func (s *Service) RunCheckin(ctx context.Context, patientID, followupID uuid.UUID, slotIndex int) error {
	f, err := s.repo.GetByID(ctx, followupID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if f.Status == StatusCompleted {
		return nil
	}

	name := "there"
	var phone string
	if patient, err := s.patients.GetByID(ctx, patientID); err == nil {
		name = patient.Name
		if patient.HasPhone() {
			phone = *patient.Phone
		}
	}

	diagnosis := ""
	if consult, err := s.consults.GetByID(ctx, f.ConsultationID); err == nil {
		diagnosis = consult.Diagnosis
	}

	msg := s.generateOpener(ctx, name, diagnosis, f.Pediatric)

	if phone != "" {
		s.sender.Send(ctx, phone, msg)
	}

	if err := s.repo.AppendMessage(ctx, followupID, ConversationEntry{
		Timestamp: time.Now().UTC(),
		Role:      RoleBot,
		Message:   msg,
	}); err != nil {
		return fmt.Errorf("append check-in message: %w", err)
	}
	if err := s.repo.CompleteSlot(ctx, followupID, slotIndex, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete slot %d: %w", slotIndex, err)
	}
	return nil
}

// ProcessReply handles an inbound patient message: append it, answer it,
// re-score risk, and escalate when the label reaches HIGH or CRITICAL.
//
// The steps are independent single-row writes, not one transaction; two
// concurrent replies for the same followup may interleave their log appends.
func (s *Service) ProcessReply(ctx context.Context, patientID uuid.UUID, patientMessage string) (*Followup, error) {
	f, err := s.repo.GetActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	age := 30
	var phone string
	if patient, err := s.patients.GetByID(ctx, patientID); err == nil {
		age = patient.Age
		if patient.HasPhone() {
			phone = *patient.Phone
		}
	} else {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("patient lookup failed during reply")
	}

	diagnosis := ""
	if consult, err := s.consults.GetByID(ctx, f.ConsultationID); err == nil {
		diagnosis = consult.Diagnosis
	}

	if err := s.appendEntry(ctx, f, RolePatient, patientMessage); err != nil {
		return nil, err
	}
	// Snapshot used for both reply generation and feature extraction:
	// includes the new patient message, not the bot reply.
	snapshot := append([]ConversationEntry(nil), f.ConversationLog...)

	botReply := s.generateReply(ctx, snapshot, patientMessage, diagnosis)
	if err := s.appendEntry(ctx, f, RoleBot, botReply); err != nil {
		return nil, err
	}
	if phone != "" {
		s.sender.Send(ctx, phone, botReply)
	}

	daysSince := int(time.Now().UTC().Sub(f.CreatedAt).Hours() / 24)
	if daysSince < 1 {
		daysSince = 1
	}
	features := s.extractor.Extract(ctx, snapshot, age, daysSince)
	score, label := s.classifier.Classify(features)

	status := f.Status
	if label == risk.LabelHigh || label == risk.LabelCritical {
		status = StatusFlagged
		s.escalate(ctx, f, score, label)
	}

	if err := s.repo.UpdateRisk(ctx, f.ID, score, string(label), status); err != nil {
		return nil, fmt.Errorf("persist risk: %w", err)
	}
	f.RiskScore = score
	f.RiskLabel = string(label)
	f.Status = status
	return f, nil
}

func (s *Service) escalate(ctx context.Context, f *Followup, score float64, label risk.Label) {
	ev := eventbus.FollowupFlagged{
		PatientID:  f.PatientID.String(),
		RiskScore:  score,
		RiskLabel:  string(label),
		FollowupID: f.ID.String(),
	}
	if err := s.bus.Publish(ctx, eventbus.ChannelFollowupFlagged, ev); err != nil {
		s.logger.Error().Err(err).Str("followup_id", f.ID.String()).Msg("publish followup.flagged")
	}

	s.hub.Broadcast(ws.Alert{
		Type:      "RISK_ALERT",
		PatientID: f.PatientID.String(),
		Data:      mustJSON(ev),
	})

	// Pediatric cross-module hook: ask for an objective pain assessment.
	if f.Pediatric {
		s.hub.Broadcast(ws.Alert{
			Type:      "painscan.requested",
			PatientID: f.PatientID.String(),
			Data: mustJSON(map[string]string{
				"patient_id":  f.PatientID.String(),
				"followup_id": f.ID.String(),
			}),
		})
	}

	s.logger.Warn().
		Str("followup_id", f.ID.String()).
		Str("risk_label", string(label)).
		Float64("risk_score", score).
		Msg("followup flagged")
}

// Complete marks a followup completed and cancels its remaining check-ins.
// Terminal; there is no way back.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Followup, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status == StatusCompleted {
		return f, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCompleted); err != nil {
		return nil, err
	}
	f.Status = StatusCompleted

	cancelled := s.checkins.CancelByPrefix(ctx, f.PatientID.String()+"-")
	s.logger.Info().
		Str("followup_id", id.String()).
		Int("checkins_cancelled", cancelled).
		Msg("followup completed")
	return f, nil
}

// Reactivate returns a flagged followup to active, for an operator who has
// reviewed the escalation and decided monitoring should continue.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*Followup, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status != StatusFlagged {
		return nil, fmt.Errorf("cannot reactivate followup in status %q", f.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusActive); err != nil {
		return nil, err
	}
	f.Status = StatusActive
	return f, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Followup, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Followup, error) {
	return s.repo.GetActiveByPatient(ctx, patientID)
}

// CancelCheckins removes all not-yet-fired check-in jobs for a patient and
// returns how many were cancelled.
func (s *Service) CancelCheckins(ctx context.Context, patientID uuid.UUID) int {
	return s.checkins.CancelByPrefix(ctx, patientID.String()+"-")
}

// RearmCheckins restores check-in timers from the job ids a previous process
// persisted. Ids whose followup is no longer active, or whose slot already
// fired, are purged from the store. Returns the number of timers re-armed.
func (s *Service) RearmCheckins(ctx context.Context) (int, error) {
	ids, err := s.checkins.ListByPrefix(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list persisted check-ins: %w", err)
	}

	rearmed := 0
	for _, jobID := range ids {
		cut := strings.LastIndex(jobID, "-")
		if cut < 0 {
			continue
		}
		patientID, err := uuid.Parse(jobID[:cut])
		if err != nil {
			continue
		}
		slotIndex, err := strconv.Atoi(jobID[cut+1:])
		if err != nil {
			continue
		}

		f, err := s.repo.GetActiveByPatient(ctx, patientID)
		if err != nil {
			s.checkins.CancelByPrefix(ctx, jobID)
			continue
		}
		if slotIndex < 0 || slotIndex >= len(f.CheckinSchedule) {
			continue
		}
		if f.CheckinSchedule[slotIndex].Status != SlotPending {
			s.checkins.CancelByPrefix(ctx, jobID)
			continue
		}

		followupID := f.ID
		idx := slotIndex
		err = s.checkins.Schedule(ctx, jobID, f.CheckinSchedule[slotIndex].ScheduledAt, func(cbCtx context.Context) {
			if err := s.RunCheckin(cbCtx, patientID, followupID, idx); err != nil {
				s.logger.Error().Err(err).
					Str("followup_id", followupID.String()).
					Int("slot", idx).
					Msg("check-in failed")
			}
		})
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", jobID).Msg("re-arm check-in")
			continue
		}
		rearmed++
	}
	return rearmed, nil
}

func (s *Service) generateOpener(ctx context.Context, name, diagnosis string, pediatric bool) string {
	if diagnosis == "" {
		diagnosis = defaultDiagnosis
	}
	msg, err := s.gen.Generate(ctx, openerPrompt(name, diagnosis, pediatric))
	if err != nil {
		s.logger.Warn().Err(err).Msg("opener generation failed, using fallback")
		return fallbackOpener(name)
	}
	return msg
}

func (s *Service) generateReply(ctx context.Context, history []ConversationEntry, patientMessage, diagnosis string) string {
	reply, err := s.gen.Generate(ctx, continuePrompt(history, patientMessage, diagnosis))
	if err != nil {
		if errors.Is(err, llm.ErrQuotaExceeded) {
			s.logger.Warn().Msg("reply generation rate-limited, using fallback")
		} else {
			s.logger.Error().Err(err).Msg("reply generation failed, using fallback")
		}
		return fallbackReply
	}
	return reply
}

// appendEntry writes the entry to the store and mirrors it on the in-memory
// followup so later steps see the grown log.
func (s *Service) appendEntry(ctx context.Context, f *Followup, role, message string) error {
	entry := ConversationEntry{Timestamp: time.Now().UTC(), Role: role, Message: message}
	if err := s.repo.AppendMessage(ctx, f.ID, entry); err != nil {
		return fmt.Errorf("append %s message: %w", role, err)
	}
	f.ConversationLog = append(f.ConversationLog, entry)
	return nil
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
