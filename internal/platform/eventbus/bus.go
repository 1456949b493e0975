package eventbus

import (
	"context"
)

// Channel names shared across modules. Payloads are JSON-encoded on the wire.
const (
	ChannelPatientDischarged    = "patient.discharged"
	ChannelFollowupFlagged      = "followup.flagged"
	ChannelPainScored           = "pain.scored"
	ChannelPainMultimodal       = "pain.multimodal_scored"
	ChannelRespiratoryDistress  = "respiratory.distress.detected"
	ChannelSilentDistress       = "silent_distress.detected"
	ChannelPainScanRequested    = "painscan.requested"
	ChannelRecoverBotRequested  = "recoverbot.requested"
	ChannelCareGapScanRequested = "caregap.scan_requested"
	ChannelModuleRequested      = "module.requested"
	ChannelDoctorAlert          = "doctor.alert"
)

// Handler receives the raw JSON payload published on a channel.
type Handler func(ctx context.Context, payload []byte)

// Bus is a fire-and-forget pub/sub transport. Delivery is at-most-once; there
// is no redelivery or ack.
type Bus interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
	Subscribe(ctx context.Context, channel string, h Handler) error
	Close() error
}

// PatientDischarged announces a consultation discharge and triggers followup
// creation.
type PatientDischarged struct {
	PatientID      string `json:"patient_id"`
	ConsultationID string `json:"consultation_id"`
}

// FollowupFlagged announces a followup escalated to HIGH or CRITICAL risk.
type FollowupFlagged struct {
	PatientID  string  `json:"patient_id"`
	RiskScore  float64 `json:"risk_score"`
	RiskLabel  string  `json:"risk_label"`
	FollowupID string  `json:"followup_id"`
}

// PainScored carries a fused pain score.
type PainScored struct {
	PatientID  string `json:"patient_id"`
	Score      int    `json:"score"`
	FollowupID string `json:"followup_id,omitempty"`
}

// PainMultimodal carries a fused pain score together with its risk tier. The
// same shape is reused for the respiratory and silent distress channels.
type PainMultimodal struct {
	PatientID  string `json:"patient_id"`
	FollowupID string `json:"followup_id,omitempty"`
	Score      int    `json:"score"`
	RiskLevel  string `json:"risk_level"`
}

// ModuleRequest asks a specific module to engage a patient. Used by the
// painscan.requested, recoverbot.requested and caregap.scan_requested channels.
type ModuleRequest struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name,omitempty"`
	Message     string `json:"message,omitempty"`
	Source      string `json:"source"`
}

// ModuleRequested is the generic fan-out that follows every successful intent
// dispatch.
type ModuleRequested struct {
	PatientID string `json:"patient_id"`
	Intent    string `json:"intent"`
	Module    string `json:"module"`
	Source    string `json:"source"`
}

// DoctorAlert signals that a clinician should look at a patient immediately.
type DoctorAlert struct {
	PatientID string `json:"patient_id"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Source    string `json:"source"`
}
