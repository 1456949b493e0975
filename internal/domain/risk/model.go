package risk

// Label is one of the four ordered risk classes.
type Label string

const (
	LabelLow      Label = "LOW"
	LabelMedium   Label = "MEDIUM"
	LabelHigh     Label = "HIGH"
	LabelCritical Label = "CRITICAL"
)

// labels is indexed by class number: 0=LOW, 1=MEDIUM, 2=HIGH, 3=CRITICAL.
var labels = [numClasses]Label{LabelLow, LabelMedium, LabelHigh, LabelCritical}

const numClasses = 4

// Features is the fixed 7-dimensional input vector. The field order is a hard
// contract with the trained model artifact; never reorder.
type Features struct {
	PainScore          int  `json:"pain_score"`
	FeverPresent       bool `json:"fever_present"`
	Swelling           bool `json:"swelling"`
	MedicationAdherent bool `json:"medication_adherent"`
	DaysSinceDischarge int  `json:"days_since_discharge"`
	Age                int  `json:"age"`
	DiagnosisSeverity  int  `json:"diagnosis_severity"`
}

func (f Features) vector() [7]float64 {
	b := func(v bool) float64 {
		if v {
			return 1
		}
		return 0
	}
	return [7]float64{
		float64(f.PainScore),
		b(f.FeverPresent),
		b(f.Swelling),
		b(f.MedicationAdherent),
		float64(f.DaysSinceDischarge),
		float64(f.Age),
		float64(f.DiagnosisSeverity),
	}
}
