package identity

import (
	"time"

	"github.com/google/uuid"
)

// PediatricAge is the cutoff below which a patient is flagged pediatric for
// followup handling. Pain-intent eligibility uses a stricter cutoff owned by
// the intent package.
const PediatricAge = 12

// Patient is the identity record referenced by every other module. Phone is
// optional; a patient without one receives no outbound messages.
type Patient struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Age               int       `db:"age" json:"age"`
	Phone             *string   `db:"phone" json:"phone,omitempty"`
	Pediatric         bool      `db:"pediatric" json:"pediatric"`
	ChronicConditions []string  `db:"chronic_conditions" json:"chronic_conditions"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// HasPhone reports whether outbound messaging is possible for this patient.
func (p *Patient) HasPhone() bool {
	return p.Phone != nil && *p.Phone != ""
}
