package pain

import (
	"time"

	"github.com/google/uuid"
)

// PainScore is one point-in-time fused assessment. Immutable once created.
type PainScore struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	FollowupID      *uuid.UUID `db:"followup_id" json:"followup_id,omitempty"`
	FinalScore      int        `db:"final_score" json:"final_score"`
	RiskLevel       string     `db:"risk_level" json:"risk_level"`
	Modalities      []string   `db:"modalities_used" json:"modalities_used"`
	FrameCount      int        `db:"frame_count" json:"frame_count"`
	RespirationRate *float64   `db:"respiration_rate" json:"respiration_rate,omitempty"`
	HeartRate       *float64   `db:"heart_rate" json:"heart_rate,omitempty"`
	CryIntensity    *float64   `db:"cry_intensity" json:"cry_intensity,omitempty"`
	Agitation       *float64   `db:"agitation" json:"agitation,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
