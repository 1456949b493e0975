package pain

import "math"

const (
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
)

// Signals carries the per-modality inputs to one fusion pass. Nil pointers
// mean the modality was unavailable for this frame batch.
type Signals struct {
	FaceScore *int

	RespirationRate *float64
	RespDistress    bool

	CryIntensity  *float64
	AudioDistress bool

	AgitationScore *float64

	HeartRate       *float64
	PulseConfidence float64
}

// Result is one fused assessment.
type Result struct {
	FinalScore int      `json:"final_score"`
	RiskLevel  string   `json:"risk_level"`
	Modalities []string `json:"modalities_used"`
}

// Fuse combines the available modality scores into one pain score on a 0-10
// scale, reweighing dynamically when modalities are missing. Facial carries
// weight 0.4; respiration, the audio/agitation slot, and cardio carry 0.2
// each. Audio cry and agitation share one slot: cry intensity pre-empts
// agitation whenever it is present, so distress is never double-counted.
func Fuse(s Signals) Result {
	var (
		activeWeights float64
		totalScore    float64
		modalities    []string
	)

	if s.FaceScore != nil {
		totalScore += float64(*s.FaceScore) * 0.4
		activeWeights += 0.4
		modalities = append(modalities, "facial")
	}

	if s.RespirationRate != nil {
		// 20-50 bpm mapped onto the 0-10 scale.
		r := clamp((*s.RespirationRate-20)/3.0, 0, 10)
		totalScore += r * 0.2
		activeWeights += 0.2
		modalities = append(modalities, "respiration")
	}

	if s.CryIntensity != nil {
		totalScore += *s.CryIntensity * 10 * 0.2
		activeWeights += 0.2
		modalities = append(modalities, "audio_cry")
	} else if s.AgitationScore != nil {
		totalScore += *s.AgitationScore * 0.2
		activeWeights += 0.2
		modalities = append(modalities, "agitation")
	}

	// Cardio needs a trustworthy pulse estimate; below the confidence bar the
	// slot is dropped entirely rather than substituted.
	if s.HeartRate != nil && s.PulseConfidence > 0.4 {
		// 60-120 bpm mapped onto the 0-10 scale.
		c := clamp((*s.HeartRate-60)/6.0, 0, 10)
		totalScore += c * 0.2
		activeWeights += 0.2
		modalities = append(modalities, "rppg")
	}

	var finalScore int
	if activeWeights > 0 {
		finalScore = int(math.Round(totalScore / activeWeights))
	} else if s.FaceScore != nil {
		finalScore = *s.FaceScore
	}

	riskLevel := RiskLow
	switch {
	case finalScore >= 8:
		riskLevel = RiskHigh
	case finalScore >= 5:
		riskLevel = RiskModerate
	}

	// Physiological distress floor: severe respiration or audio warnings
	// cannot be out-voted by the weighted average.
	if s.RespDistress || s.AudioDistress {
		riskLevel = RiskHigh
		if finalScore < 7 {
			finalScore = 7
		}
	}

	return Result{
		FinalScore: finalScore,
		RiskLevel:  riskLevel,
		Modalities: modalities,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
