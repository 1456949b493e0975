package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/domain/followup"
	"github.com/mediloop/mediloop/internal/platform/llm"
)

var codeFence = regexp.MustCompile("```[a-z]*")

var intentDescriptions = []struct {
	intent, description string
}{
	{IntentPain, "ONLY for pediatric patients (under 6 years old) who cannot verbally express pain. A parent or caregiver reports symptoms, crying, discomfort, or distress on behalf of the child"},
	{IntentFollowup, "Patient or caregiver asking about recovery progress, next appointment, discharge instructions, medication, or mentions pain/symptoms for a NON-pediatric patient"},
	{IntentCareGap, "Patient mentions they haven't visited the clinic, missed a lab test, overdue checkup, or hasn't seen a doctor recently"},
	{IntentGeneralQuery, "General health question, greeting, or unrelated query"},
	{IntentEmergency, "Patient or caregiver expresses urgency, severe symptoms, difficulty breathing, chest pain, or a life-threatening situation"},
	{IntentAppointmentRequest, "Patient explicitly wants to see a doctor, book or schedule an appointment, or asks when they can come in for a visit"},
}

// Classification is the structured output of one classify call.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ClassifyInput carries the patient context handed to the classifier.
type ClassifyInput struct {
	Message       string
	PatientName   string
	Age           int
	Diagnosis     string
	RecentHistory []followup.ConversationEntry
}

// Classifier maps an inbound free-text message onto the fixed intent
// taxonomy. It never fails: out-of-taxonomy intents are coerced to
// GENERAL_QUERY and capability failures degrade to a low-confidence fallback.
type Classifier struct {
	gen    llm.TextGenerator
	logger zerolog.Logger
}

func NewClassifier(gen llm.TextGenerator, logger zerolog.Logger) *Classifier {
	return &Classifier{gen: gen, logger: logger}
}

func (c *Classifier) Classify(ctx context.Context, in ClassifyInput) Classification {
	raw, err := c.gen.GenerateJSON(ctx, c.prompt(in))
	if err != nil {
		c.logger.Warn().Err(err).Msg("intent classification failed, using fallback")
		return fallbackClassification()
	}

	cleaned := strings.Trim(codeFence.ReplaceAllString(string(raw), ""), "` \n")
	var result Classification
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		c.logger.Warn().Err(err).Msg("intent classification returned invalid JSON, using fallback")
		return fallbackClassification()
	}

	if !validIntent(result.Intent) {
		result.Intent = IntentGeneralQuery
	}
	if result.Confidence == 0 {
		result.Confidence = 0.7
	}
	return result
}

func fallbackClassification() Classification {
	return Classification{
		Intent:     IntentGeneralQuery,
		Confidence: 0.5,
		Reasoning:  "Fallback due to classification error",
	}
}

func (c *Classifier) prompt(in ClassifyInput) string {
	var history strings.Builder
	recent := in.RecentHistory
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}
	for _, m := range recent {
		fmt.Fprintf(&history, "[%s]: %s\n", strings.ToUpper(m.Role), m.Message)
	}

	pediatricNote := fmt.Sprintf(
		"IMPORTANT: This patient is %d years old and is NOT a pediatric patient. "+
			"Do NOT use PAIN intent. Use FOLLOWUP for any pain or symptom concerns instead.",
		in.Age,
	)
	if in.Age < painIntentMaxAge {
		pediatricNote = fmt.Sprintf(
			"IMPORTANT: This patient is %d years old and is a PEDIATRIC patient (under 6). "+
				"They CANNOT verbally express pain. Use PAIN intent if a caregiver reports any pain or discomfort symptoms.",
			in.Age,
		)
	}

	var intents strings.Builder
	for _, d := range intentDescriptions {
		fmt.Fprintf(&intents, "- %s: %s\n", d.intent, d.description)
	}

	diagnosis := in.Diagnosis
	if diagnosis == "" {
		diagnosis = "general health"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a medical AI triage system.\n\n")
	fmt.Fprintf(&b, "Patient: %s, Age: %d\nDiagnosis: %s\n%s\n\n", in.PatientName, in.Age, diagnosis, pediatricNote)
	if history.Len() > 0 {
		fmt.Fprintf(&b, "Recent conversation:\n%s\n", history.String())
	}
	fmt.Fprintf(&b, "New message: %q\n\n", in.Message)
	fmt.Fprintf(&b, "Classify into EXACTLY ONE intent:\n%s\n", intents.String())
	b.WriteString("Respond with ONLY a valid JSON object:\n" +
		`{"intent": "<one of the intents>", "confidence": <float 0.0-1.0>, "reasoning": "<one sentence explanation>"}` +
		"\nNo markdown. No extra text.")
	return b.String()
}
