package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/domain/caregap"
	"github.com/mediloop/mediloop/internal/domain/consultation"
	"github.com/mediloop/mediloop/internal/domain/followup"
	"github.com/mediloop/mediloop/internal/domain/identity"
	"github.com/mediloop/mediloop/internal/platform/eventbus"
	"github.com/mediloop/mediloop/internal/platform/llm"
	"github.com/mediloop/mediloop/internal/platform/messaging"
)

const sourceOrchestrator = "orchestrator"

type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type ConsultationSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*consultation.Consultation, error)
}

type HistorySource interface {
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*followup.Followup, error)
}

type GapScanner interface {
	ScanPatient(ctx context.Context, patientID uuid.UUID) ([]caregap.Gap, error)
}

type MessageClassifier interface {
	Classify(ctx context.Context, in ClassifyInput) Classification
}

// RouteResult is the outcome of one classify-and-dispatch pass.
type RouteResult struct {
	DecisionID      uuid.UUID `json:"decision_id"`
	Intent          string    `json:"intent"`
	Confidence      float64   `json:"confidence"`
	Reasoning       string    `json:"reasoning"`
	SuggestedModule string    `json:"suggested_module"`
	ActionTaken     string    `json:"action_taken"`
}

// Engine classifies inbound messages and dispatches them to the owning
// module, recording every decision as an audit row before any dispatch
// side effect runs.
type Engine struct {
	repo         Repository
	patients     PatientSource
	consults     ConsultationSource
	followups    HistorySource
	classifier   MessageClassifier
	gen          llm.TextGenerator
	sender       messaging.Sender
	bus          eventbus.Bus
	gaps         GapScanner
	painScanLink string
	logger       zerolog.Logger
}

func NewEngine(
	repo Repository,
	patients PatientSource,
	consults ConsultationSource,
	followups HistorySource,
	classifier MessageClassifier,
	gen llm.TextGenerator,
	sender messaging.Sender,
	bus eventbus.Bus,
	gaps GapScanner,
	painScanLink string,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		repo:         repo,
		patients:     patients,
		consults:     consults,
		followups:    followups,
		classifier:   classifier,
		gen:          gen,
		sender:       sender,
		bus:          bus,
		gaps:         gaps,
		painScanLink: painScanLink,
		logger:       logger,
	}
}

// Route classifies one inbound message and executes its dispatch.
func (e *Engine) Route(ctx context.Context, patientID uuid.UUID, message, source string) (*RouteResult, error) {
	patient, err := e.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}
	if source == "" {
		source = "whatsapp"
	}

	classification := e.classifier.Classify(ctx, ClassifyInput{
		Message:       message,
		PatientName:   patient.Name,
		Age:           patient.Age,
		Diagnosis:     e.diagnosisFor(ctx, patient),
		RecentHistory: e.recentHistory(ctx, patientID),
	})

	intent := classification.Intent
	// Safety guard: PAIN is legal only under age 6. Anyone else classified
	// PAIN is remapped before the audit record and dispatch.
	if intent == IntentPain && patient.Age >= painIntentMaxAge {
		e.logger.Info().
			Str("patient_id", patientID.String()).
			Int("age", patient.Age).
			Msg("PAIN intent remapped to FOLLOWUP for non-pediatric patient")
		intent = IntentFollowup
	}
	module := intentToModule[intent]

	decision := &AIDecision{
		PatientID:       patientID,
		Intent:          intent,
		Confidence:      classification.Confidence,
		Reasoning:       classification.Reasoning,
		SuggestedModule: module,
		Source:          source,
	}
	if err := e.repo.Create(ctx, decision); err != nil {
		return nil, fmt.Errorf("persist decision: %w", err)
	}

	action := e.dispatch(ctx, intent, patient, message)

	e.publish(ctx, eventbus.ChannelModuleRequested, eventbus.ModuleRequested{
		PatientID: patientID.String(),
		Intent:    intent,
		Module:    module,
		Source:    sourceOrchestrator,
	})

	return &RouteResult{
		DecisionID:      decision.ID,
		Intent:          intent,
		Confidence:      classification.Confidence,
		Reasoning:       classification.Reasoning,
		SuggestedModule: module,
		ActionTaken:     action,
	}, nil
}

func (e *Engine) dispatch(ctx context.Context, intent string, patient *identity.Patient, message string) string {
	request := eventbus.ModuleRequest{
		PatientID:   patient.ID.String(),
		PatientName: patient.Name,
		Message:     message,
		Source:      sourceOrchestrator,
	}

	switch intent {
	case IntentPain:
		e.publish(ctx, eventbus.ChannelPainScanRequested, request)
		if patient.HasPhone() {
			body := fmt.Sprintf(
				"Hello, our system has detected that %s may be in discomfort. "+
					"Please use the PainScan tool to help us assess their pain level. "+
					"Open the link and follow the video-based pain assessment. "+
					"A care team member will review the results immediately.",
				patient.Name,
			)
			messaging.SendWithLink(ctx, e.sender, *patient.Phone, body, e.painScanLink)
		}
		return "Published painscan.requested event and sent PainScan link to caregiver"

	case IntentFollowup:
		e.publish(ctx, eventbus.ChannelRecoverBotRequested, request)
		return "Published recoverbot.requested event"

	case IntentCareGap:
		e.publish(ctx, eventbus.ChannelCareGapScanRequested, eventbus.ModuleRequest{
			PatientID: patient.ID.String(),
			Source:    sourceOrchestrator,
		})
		if _, err := e.gaps.ScanPatient(ctx, patient.ID); err != nil {
			e.logger.Error().Err(err).Str("patient_id", patient.ID.String()).Msg("immediate gap scan failed")
		}
		return "Triggered care-gap scan for patient"

	case IntentGeneralQuery:
		reply := e.chatbotReply(ctx, patient.Name, message)
		if patient.HasPhone() {
			e.sender.Send(ctx, *patient.Phone, reply)
		}
		return "Sent general chatbot reply"

	case IntentEmergency:
		e.publish(ctx, eventbus.ChannelDoctorAlert, eventbus.DoctorAlert{
			PatientID: patient.ID.String(),
			Message:   message,
			Severity:  "CRITICAL",
			Source:    sourceOrchestrator,
		})
		if patient.HasPhone() {
			e.sender.Send(ctx, *patient.Phone, fmt.Sprintf(
				"%s, this sounds urgent! We are alerting your care team immediately. "+
					"If this is a medical emergency, please call your local emergency services right now!",
				patient.Name,
			))
		}
		return "Published doctor.alert and notified patient of emergency"

	case IntentAppointmentRequest:
		return "Logged appointment request for scheduling staff"
	}
	return ""
}

func (e *Engine) chatbotReply(ctx context.Context, name, message string) string {
	reply, err := e.gen.Generate(ctx, fmt.Sprintf(
		"You are a friendly healthcare assistant. Patient %s asked: %q. "+
			"Give a helpful, empathetic reply in under 100 words. Plain text only.",
		name, message,
	))
	if err != nil {
		return fmt.Sprintf("Hi %s, thank you for reaching out! A care team member will get back to you shortly.", name)
	}
	return reply
}

func (e *Engine) diagnosisFor(ctx context.Context, patient *identity.Patient) string {
	if consults, err := e.consults.ListByPatient(ctx, patient.ID); err == nil && len(consults) > 0 {
		return consults[0].Diagnosis
	}
	return strings.Join(patient.ChronicConditions, ", ")
}

func (e *Engine) recentHistory(ctx context.Context, patientID uuid.UUID) []followup.ConversationEntry {
	f, err := e.followups.GetActiveByPatient(ctx, patientID)
	if err != nil {
		if !errors.Is(err, followup.ErrNoActiveFollowup) {
			e.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("history lookup failed")
		}
		return nil
	}
	log := f.ConversationLog
	if len(log) > 4 {
		log = log[len(log)-4:]
	}
	return log
}

func (e *Engine) publish(ctx context.Context, channel string, payload interface{}) {
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.logger.Error().Err(err).Str("channel", channel).Msg("publish intent signal")
	}
}

func (e *Engine) History(ctx context.Context, patientID uuid.UUID, limit int) ([]AIDecision, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return e.repo.ListByPatient(ctx, patientID, limit)
}

func (e *Engine) Recent(ctx context.Context, limit int) ([]AIDecision, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return e.repo.ListRecent(ctx, limit)
}
