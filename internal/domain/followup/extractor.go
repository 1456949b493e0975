package followup

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/domain/risk"
	"github.com/mediloop/mediloop/internal/platform/llm"
)

var codeFence = regexp.MustCompile("```[a-z]*")

// Extractor turns a conversation log into the structured feature vector the
// risk classifier consumes.
type Extractor struct {
	gen    llm.TextGenerator
	logger zerolog.Logger
}

func NewExtractor(gen llm.TextGenerator, logger zerolog.Logger) *Extractor {
	return &Extractor{gen: gen, logger: logger}
}

// Extract never fails: on any capability or parse error it returns the fixed
// conservative defaults so risk scoring is never blocked. Age and
// days-since-discharge are passed through untouched.
func (e *Extractor) Extract(ctx context.Context, log []ConversationEntry, age, daysSinceDischarge int) risk.Features {
	features := risk.Features{
		PainScore:          5,
		FeverPresent:       false,
		Swelling:           false,
		MedicationAdherent: true,
		DiagnosisSeverity:  2,
	}

	raw, err := e.gen.GenerateJSON(ctx, extractPrompt(log))
	if err != nil {
		e.logger.Warn().Err(err).Msg("feature extraction failed, using defaults")
	} else {
		cleaned := strings.Trim(codeFence.ReplaceAllString(string(raw), ""), "` \n")
		var parsed struct {
			PainScore          int  `json:"pain_score"`
			FeverPresent       bool `json:"fever_present"`
			Swelling           bool `json:"swelling"`
			MedicationAdherent bool `json:"medication_adherent"`
			DiagnosisSeverity  int  `json:"diagnosis_severity"`
		}
		if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
			e.logger.Warn().Err(err).Msg("feature extraction returned invalid JSON, using defaults")
		} else {
			features.PainScore = parsed.PainScore
			features.FeverPresent = parsed.FeverPresent
			features.Swelling = parsed.Swelling
			features.MedicationAdherent = parsed.MedicationAdherent
			features.DiagnosisSeverity = parsed.DiagnosisSeverity
		}
	}

	features.Age = age
	features.DaysSinceDischarge = daysSinceDischarge
	return features
}
