package intent

import (
	"time"

	"github.com/google/uuid"
)

const (
	IntentPain               = "PAIN"
	IntentFollowup           = "FOLLOWUP"
	IntentCareGap            = "CARE_GAP"
	IntentGeneralQuery       = "GENERAL_QUERY"
	IntentEmergency          = "EMERGENCY"
	IntentAppointmentRequest = "APPOINTMENT_REQUEST"
)

// painIntentMaxAge bounds the PAIN intent to pediatric patients who cannot
// verbally express pain themselves.
const painIntentMaxAge = 6

// intentToModule maps each intent to the downstream module that handles it.
var intentToModule = map[string]string{
	IntentPain:               "painscan",
	IntentFollowup:           "recoverbot",
	IntentCareGap:            "caregap",
	IntentGeneralQuery:       "chatbot",
	IntentEmergency:          "emergency",
	IntentAppointmentRequest: "appointment",
}

func validIntent(s string) bool {
	_, ok := intentToModule[s]
	return ok
}

// AIDecision is the append-only audit record of one classification event.
type AIDecision struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	Intent          string    `db:"intent" json:"intent"`
	Confidence      float64   `db:"confidence" json:"confidence"`
	Reasoning       string    `db:"reasoning" json:"reasoning"`
	SuggestedModule string    `db:"suggested_module" json:"suggested_module"`
	Source          string    `db:"source" json:"source"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
