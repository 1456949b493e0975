package followup

import (
	"fmt"
	"strings"
)

// fallbackReply keeps the conversation alive when the text-generation
// capability is rate-limited. The patient must never be left unanswered.
const fallbackReply = "Thank you for letting me know. I've recorded your update. " +
	"Based on your symptoms, a care team member may reach out shortly if your " +
	"indicators remain elevated. Please rest and stay hydrated!"

const defaultDiagnosis = "recent medical procedure"

func openerPrompt(patientName, diagnosis string, pediatric bool) string {
	audience := "the patient"
	if pediatric {
		audience = "the child's parent or guardian"
	}
	return fmt.Sprintf(
		"You are RecoverBot, a caring post-discharge healthcare assistant.\n"+
			"Write a warm, brief WhatsApp message to %s whose name is %s.\n"+
			"They were recently discharged after treatment for: %s.\n"+
			"Explicitly tell them that you will be checking in on them periodically over the next few weeks "+
			"(e.g., at 6 hours, 24 hours, 48 hours, 3 days, 1 week, and 2 weeks) to make sure they are recovering well.\n"+
			"Ask how they are feeling right now to kickstart the conversation. Keep it under 80 words. "+
			"No bullet points. Plain text only.",
		audience, patientName, diagnosis,
	)
}

func fallbackOpener(patientName string) string {
	return fmt.Sprintf(
		"Hello %s! This is RecoverBot, your post-discharge care assistant. "+
			"I'll be checking in on you periodically over the next two weeks to make sure "+
			"you're recovering well. How are you feeling right now?",
		patientName,
	)
}

func continuePrompt(history []ConversationEntry, patientReply, diagnosis string) string {
	recent := history
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	var b strings.Builder
	for _, m := range recent {
		fmt.Fprintf(&b, "[%s]: %s\n", strings.ToUpper(m.Role), m.Message)
	}
	return fmt.Sprintf(
		"You are RecoverBot, an empathetic AI post-discharge health assistant.\n"+
			"Patient diagnosis: %s.\n\n"+
			"Conversation so far:\n%s"+
			"[PATIENT]: %s\n\n"+
			"Continue the conversation. Gently ask about: pain level (0-10), fever, "+
			"swelling, wound status, medication adherence if not yet covered. "+
			"Keep the response under 120 words. Plain text only.",
		diagnosis, b.String(), patientReply,
	)
}

func extractPrompt(log []ConversationEntry) string {
	var b strings.Builder
	for _, m := range log {
		fmt.Fprintf(&b, "[%s]: %s\n", strings.ToUpper(m.Role), m.Message)
	}
	return fmt.Sprintf(
		"Analyse the following patient check-in conversation and extract symptom data.\n\n"+
			"%s\n"+
			"Return ONLY a valid JSON object with these exact keys:\n"+
			"pain_score (0-10 integer), fever_present (true/false), swelling (true/false), "+
			"medication_adherent (true/false), diagnosis_severity (1=low/2=medium/3=high integer).\n"+
			"If uncertain, use conservative estimates (e.g. pain_score=5, fever=false).\n"+
			"Return ONLY the JSON - no markdown, no explanation.",
		b.String(),
	)
}
