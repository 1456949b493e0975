package followup

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "active"
	StatusFlagged   = "flagged"
	StatusCompleted = "completed"
)

const (
	RoleBot     = "bot"
	RolePatient = "patient"
)

const (
	SlotPending   = "pending"
	SlotCompleted = "completed"
	SlotMissed    = "missed"
)

// CheckinOffsets are the fixed delays from discharge at which check-ins fire:
// 6h, 24h, 48h, 72h, 1 week, 2 weeks. Exactly one slot per offset.
var CheckinOffsets = [6]time.Duration{
	6 * time.Hour,
	24 * time.Hour,
	48 * time.Hour,
	72 * time.Hour,
	7 * 24 * time.Hour,
	14 * 24 * time.Hour,
}

// ConversationEntry is one message in the append-only conversation log.
type ConversationEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
}

// CheckinSlot tracks one scheduled check-in.
type CheckinSlot struct {
	ScheduledAt time.Time  `json:"scheduled_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Status      string     `json:"status"`
}

// Followup is the stateful post-discharge monitoring record for one
// patient/consultation pair. The conversation log and check-in schedule are
// owned exclusively by this module.
type Followup struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	PatientID       uuid.UUID           `db:"patient_id" json:"patient_id"`
	ConsultationID  uuid.UUID           `db:"consultation_id" json:"consultation_id"`
	Status          string              `db:"status" json:"status"`
	RiskScore       float64             `db:"risk_score" json:"risk_score"`
	RiskLabel       string              `db:"risk_label" json:"risk_label"`
	ConversationLog []ConversationEntry `db:"conversation_log" json:"conversation_log"`
	CheckinSchedule []CheckinSlot       `db:"checkin_schedule" json:"checkin_schedule"`
	Pediatric       bool                `db:"pediatric" json:"pediatric"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
}

// buildSchedule returns the six pending check-in slots for a discharge at t.
func buildSchedule(t time.Time) []CheckinSlot {
	slots := make([]CheckinSlot, 0, len(CheckinOffsets))
	for _, offset := range CheckinOffsets {
		slots = append(slots, CheckinSlot{
			ScheduledAt: t.Add(offset),
			Status:      SlotPending,
		})
	}
	return slots
}
