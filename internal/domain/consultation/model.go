package consultation

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusDraft      = "draft"
	StatusApproved   = "approved"
	StatusDischarged = "discharged"
)

// Consultation is one clinical encounter with a structured SOAP note. The
// discharged transition is what spawns a followup downstream.
type Consultation struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	Diagnosis  string    `db:"diagnosis" json:"diagnosis"`
	Subjective string    `db:"subjective" json:"subjective"`
	Objective  string    `db:"objective" json:"objective"`
	Assessment string    `db:"assessment" json:"assessment"`
	Plan       string    `db:"plan" json:"plan"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// validTransitions maps a current status to the statuses it may move to.
var validTransitions = map[string][]string{
	StatusDraft:      {StatusApproved},
	StatusApproved:   {StatusDischarged},
	StatusDischarged: {},
}

func canTransition(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
