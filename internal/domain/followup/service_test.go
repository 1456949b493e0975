package followup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/domain/consultation"
	"github.com/mediloop/mediloop/internal/domain/identity"
	"github.com/mediloop/mediloop/internal/domain/risk"
	"github.com/mediloop/mediloop/internal/platform/eventbus"
	"github.com/mediloop/mediloop/internal/platform/llm"
	"github.com/mediloop/mediloop/internal/platform/messaging"
	"github.com/mediloop/mediloop/internal/platform/scheduler"
	"github.com/mediloop/mediloop/internal/platform/ws"
)

type mockRepo struct {
	followups map[uuid.UUID]*Followup
	appends   []ConversationEntry
	failOn    string
}

func newMockRepo() *mockRepo {
	return &mockRepo{followups: make(map[uuid.UUID]*Followup)}
}

func (m *mockRepo) Create(ctx context.Context, f *Followup) error {
	if m.failOn == "create" {
		return errors.New("create failed")
	}
	for _, existing := range m.followups {
		if existing.PatientID == f.PatientID && existing.Status == StatusActive {
			return ErrActiveFollowupExists
		}
	}
	f.ID = uuid.New()
	// Store a deep copy so the caller's slices never alias the "database"
	// row, matching real row-per-write semantics.
	cp := *f
	cp.ConversationLog = append([]ConversationEntry(nil), f.ConversationLog...)
	cp.CheckinSchedule = append([]CheckinSlot(nil), f.CheckinSchedule...)
	m.followups[cp.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Followup, error) {
	f, ok := m.followups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	cp.ConversationLog = append([]ConversationEntry(nil), f.ConversationLog...)
	cp.CheckinSchedule = append([]CheckinSlot(nil), f.CheckinSchedule...)
	return &cp, nil
}

func (m *mockRepo) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Followup, error) {
	for id, f := range m.followups {
		if f.PatientID == patientID && f.Status == StatusActive {
			return m.GetByID(ctx, id)
		}
	}
	return nil, ErrNoActiveFollowup
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Followup, error) {
	var out []*Followup
	for id, f := range m.followups {
		if f.PatientID == patientID {
			cp, _ := m.GetByID(ctx, id)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *mockRepo) AppendMessage(ctx context.Context, id uuid.UUID, entry ConversationEntry) error {
	f, ok := m.followups[id]
	if !ok {
		return ErrNotFound
	}
	f.ConversationLog = append(f.ConversationLog, entry)
	m.appends = append(m.appends, entry)
	return nil
}

func (m *mockRepo) CompleteSlot(ctx context.Context, id uuid.UUID, slotIndex int, at time.Time) error {
	f, ok := m.followups[id]
	if !ok {
		return ErrNotFound
	}
	if slotIndex < 0 || slotIndex >= len(f.CheckinSchedule) {
		return errors.New("slot index out of range")
	}
	f.CheckinSchedule[slotIndex].Status = SlotCompleted
	f.CheckinSchedule[slotIndex].CompletedAt = &at
	return nil
}

func (m *mockRepo) UpdateRisk(ctx context.Context, id uuid.UUID, score float64, label, status string) error {
	f, ok := m.followups[id]
	if !ok {
		return ErrNotFound
	}
	f.RiskScore = score
	f.RiskLabel = label
	f.Status = status
	return nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f, ok := m.followups[id]
	if !ok {
		return ErrNotFound
	}
	f.Status = status
	return nil
}

type mockPatients struct {
	patients map[uuid.UUID]*identity.Patient
}

func (m *mockPatients) GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return p, nil
}

type mockConsults struct {
	consults map[uuid.UUID]*consultation.Consultation
}

func (m *mockConsults) GetByID(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	c, ok := m.consults[id]
	if !ok {
		return nil, consultation.ErrNotFound
	}
	return c, nil
}

type mockScorer struct {
	score float64
	label risk.Label
}

func (m *mockScorer) Classify(f risk.Features) (float64, risk.Label) {
	return m.score, m.label
}

type scheduledJob struct {
	id string
	at time.Time
}

type mockScheduler struct {
	jobs      []scheduledJob
	persisted []string
	cancelled []string
}

func (m *mockScheduler) Schedule(ctx context.Context, jobID string, at time.Time, fn scheduler.Callback) error {
	m.jobs = append(m.jobs, scheduledJob{id: jobID, at: at})
	for _, id := range m.persisted {
		if id == jobID {
			return nil
		}
	}
	m.persisted = append(m.persisted, jobID)
	return nil
}

func (m *mockScheduler) CancelByPrefix(ctx context.Context, prefix string) int {
	n := 0
	var keep []string
	for _, id := range m.persisted {
		if strings.HasPrefix(id, prefix) {
			m.cancelled = append(m.cancelled, id)
			n++
		} else {
			keep = append(keep, id)
		}
	}
	m.persisted = keep

	var keepJobs []scheduledJob
	for _, j := range m.jobs {
		if !strings.HasPrefix(j.id, prefix) {
			keepJobs = append(keepJobs, j)
		}
	}
	m.jobs = keepJobs
	return n
}

func (m *mockScheduler) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for _, id := range m.persisted {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}

type mockHub struct {
	alerts []ws.Alert
}

func (m *mockHub) Broadcast(alert ws.Alert) {
	m.alerts = append(m.alerts, alert)
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	patients *mockPatients
	consults *mockConsults
	scorer   *mockScorer
	gen      *llm.MockGenerator
	sender   *messaging.MockSender
	bus      *eventbus.MemoryBus
	sched    *mockScheduler
	hub      *mockHub
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRepo(),
		patients: &mockPatients{patients: make(map[uuid.UUID]*identity.Patient)},
		consults: &mockConsults{consults: make(map[uuid.UUID]*consultation.Consultation)},
		scorer:   &mockScorer{score: 0.1, label: risk.LabelLow},
		gen:      &llm.MockGenerator{},
		sender:   &messaging.MockSender{},
		bus:      eventbus.NewMemoryBus(),
		sched:    &mockScheduler{},
		hub:      &mockHub{},
	}
	logger := zerolog.Nop()
	f.svc = NewService(
		f.repo, f.patients, f.consults,
		NewExtractor(f.gen, logger),
		f.scorer, f.gen, f.sender, f.bus, f.sched, f.hub, logger,
	)
	return f
}

func (f *fixture) addPatient(age int, phone string) uuid.UUID {
	id := uuid.New()
	p := &identity.Patient{ID: id, Name: "Asha", Age: age}
	if phone != "" {
		p.Phone = &phone
	}
	f.patients.patients[id] = p
	return id
}

func (f *fixture) addConsultation(patientID uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.consults.consults[id] = &consultation.Consultation{
		ID:        id,
		PatientID: patientID,
		Diagnosis: "appendectomy",
		Status:    consultation.StatusDischarged,
	}
	return id
}

func TestCreate_BuildsSixSlotSchedule(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	consultID := f.addConsultation(patientID)
	f.gen.Responses = []string{"Hi Asha, I will check in on you over the next two weeks."}

	before := time.Now().UTC()
	fu, err := f.svc.Create(context.Background(), patientID, consultID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(fu.CheckinSchedule) != 6 {
		t.Fatalf("expected 6 check-in slots, got %d", len(fu.CheckinSchedule))
	}
	for i, slot := range fu.CheckinSchedule {
		if slot.Status != SlotPending {
			t.Errorf("slot %d status = %q, want pending", i, slot.Status)
		}
		wantAt := fu.CreatedAt.Add(CheckinOffsets[i])
		if !slot.ScheduledAt.Equal(wantAt) {
			t.Errorf("slot %d scheduled at %v, want %v", i, slot.ScheduledAt, wantAt)
		}
		if i > 0 && !slot.ScheduledAt.After(fu.CheckinSchedule[i-1].ScheduledAt) {
			t.Errorf("slot %d not strictly after slot %d", i, i-1)
		}
	}
	if fu.CreatedAt.Before(before.Add(-time.Second)) {
		t.Errorf("created_at %v too far in the past", fu.CreatedAt)
	}

	if len(f.sched.jobs) != 6 {
		t.Fatalf("expected 6 scheduled jobs, got %d", len(f.sched.jobs))
	}
	for i, job := range f.sched.jobs {
		want := patientID.String() + "-" + string(rune('0'+i))
		if job.id != want {
			t.Errorf("job %d id = %q, want %q", i, job.id, want)
		}
	}

	if f.sender.Count() != 1 {
		t.Fatalf("expected 1 opener message, got %d", f.sender.Count())
	}
	if len(fu.ConversationLog) != 1 || fu.ConversationLog[0].Role != RoleBot {
		t.Errorf("expected opener appended as bot entry, log = %+v", fu.ConversationLog)
	}

	stored, err := f.repo.GetByID(context.Background(), fu.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.ConversationLog) != 1 {
		t.Errorf("stored log has %d entries, want exactly the opener", len(stored.ConversationLog))
	}
}

func TestCreate_RequiresPatient(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown patient")
	}
	if len(f.repo.followups) != 0 {
		t.Error("no followup should be persisted for unknown patient")
	}
}

func TestCreate_RejectsSecondActiveFollowup(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "")
	consultID := f.addConsultation(patientID)

	if _, err := f.svc.Create(context.Background(), patientID, consultID); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := f.svc.Create(context.Background(), patientID, consultID)
	if !errors.Is(err, ErrActiveFollowupExists) {
		t.Fatalf("expected ErrActiveFollowupExists, got %v", err)
	}
}

func TestCreate_NoPhoneSkipsOpener(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "")
	consultID := f.addConsultation(patientID)

	fu, err := f.svc.Create(context.Background(), patientID, consultID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.sender.Count() != 0 {
		t.Errorf("expected no messages without a phone, got %d", f.sender.Count())
	}
	if len(fu.ConversationLog) != 0 {
		t.Errorf("expected empty log without a phone, got %d entries", len(fu.ConversationLog))
	}
}

func TestCreate_PediatricFlag(t *testing.T) {
	f := newFixture()
	child := f.addPatient(7, "")
	adult := f.addPatient(12, "")

	fu1, err := f.svc.Create(context.Background(), child, f.addConsultation(child))
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}
	if !fu1.Pediatric {
		t.Error("age 7 should be pediatric")
	}

	fu2, err := f.svc.Create(context.Background(), adult, f.addConsultation(adult))
	if err != nil {
		t.Fatalf("Create adult: %v", err)
	}
	if fu2.Pediatric {
		t.Error("age 12 should not be pediatric")
	}
}

func seedActiveFollowup(f *fixture, patientID uuid.UUID, pediatric bool) *Followup {
	fu := &Followup{
		PatientID:       patientID,
		ConsultationID:  uuid.New(),
		Status:          StatusActive,
		RiskLabel:       string(risk.LabelLow),
		ConversationLog: []ConversationEntry{},
		CheckinSchedule: buildSchedule(time.Now().UTC().Add(-48 * time.Hour)),
		Pediatric:       pediatric,
		CreatedAt:       time.Now().UTC().Add(-48 * time.Hour),
	}
	if err := f.repo.Create(context.Background(), fu); err != nil {
		panic(err)
	}
	return fu
}

func TestProcessReply_AppendsBothSidesAndSendsReply(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	seedActiveFollowup(f, patientID, false)
	f.gen.Responses = []string{
		"Glad to hear it. Any pain or fever today?",
		`{"pain_score": 2, "fever_present": false, "swelling": false, "medication_adherent": true, "diagnosis_severity": 1}`,
	}

	fu, err := f.svc.ProcessReply(context.Background(), patientID, "Feeling much better today")
	if err != nil {
		t.Fatalf("ProcessReply: %v", err)
	}

	if len(fu.ConversationLog) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(fu.ConversationLog))
	}
	if fu.ConversationLog[0].Role != RolePatient || fu.ConversationLog[1].Role != RoleBot {
		t.Errorf("log roles = %q, %q; want patient then bot",
			fu.ConversationLog[0].Role, fu.ConversationLog[1].Role)
	}
	if f.sender.Count() != 1 {
		t.Fatalf("expected 1 outbound message, got %d", f.sender.Count())
	}
	if f.sender.Sent[0].Body != "Glad to hear it. Any pain or fever today?" {
		t.Errorf("sent body = %q", f.sender.Sent[0].Body)
	}
	if fu.Status != StatusActive {
		t.Errorf("low risk reply should keep status active, got %q", fu.Status)
	}
}

func TestProcessReply_NoActiveFollowup(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")

	_, err := f.svc.ProcessReply(context.Background(), patientID, "hello?")
	if !errors.Is(err, ErrNoActiveFollowup) {
		t.Fatalf("expected ErrNoActiveFollowup, got %v", err)
	}
	if len(f.repo.appends) != 0 {
		t.Error("no log entries should be written without an active followup")
	}
	if f.sender.Count() != 0 {
		t.Error("no messages should be sent without an active followup")
	}
}

func TestProcessReply_FlaggedFollowupIsNotActive(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	fu := seedActiveFollowup(f, patientID, false)
	f.repo.followups[fu.ID].Status = StatusFlagged

	_, err := f.svc.ProcessReply(context.Background(), patientID, "still in pain")
	if !errors.Is(err, ErrNoActiveFollowup) {
		t.Fatalf("expected ErrNoActiveFollowup for flagged followup, got %v", err)
	}
}

func TestProcessReply_EscalatesOnHighRisk(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	fu := seedActiveFollowup(f, patientID, false)
	f.scorer.score = 0.85
	f.scorer.label = risk.LabelHigh
	f.gen.Responses = []string{
		"I'm concerned about your symptoms. A care team member will reach out.",
		`{"pain_score": 9, "fever_present": true, "swelling": true, "medication_adherent": false, "diagnosis_severity": 3}`,
	}

	out, err := f.svc.ProcessReply(context.Background(), patientID, "Severe pain and a fever of 39")
	if err != nil {
		t.Fatalf("ProcessReply: %v", err)
	}

	if out.Status != StatusFlagged {
		t.Errorf("status = %q, want flagged", out.Status)
	}
	if out.RiskScore != 0.85 || out.RiskLabel != string(risk.LabelHigh) {
		t.Errorf("risk = %v/%q, want 0.85/HIGH", out.RiskScore, out.RiskLabel)
	}
	stored := f.repo.followups[fu.ID]
	if stored.Status != StatusFlagged {
		t.Errorf("persisted status = %q, want flagged", stored.Status)
	}

	events := f.bus.OnChannel(eventbus.ChannelFollowupFlagged)
	if len(events) != 1 {
		t.Fatalf("expected 1 followup.flagged event, got %d", len(events))
	}

	if len(f.hub.alerts) != 1 {
		t.Fatalf("expected 1 websocket alert for an adult, got %d", len(f.hub.alerts))
	}
	if f.hub.alerts[0].Type != "RISK_ALERT" {
		t.Errorf("alert type = %q, want RISK_ALERT", f.hub.alerts[0].Type)
	}
}

func TestProcessReply_PediatricEscalationRequestsPainScan(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(6, "+15550100")
	seedActiveFollowup(f, patientID, true)
	f.scorer.score = 0.95
	f.scorer.label = risk.LabelCritical
	f.gen.Responses = []string{
		"Please keep a close eye on them, help is on the way.",
		`{"pain_score": 10, "fever_present": true, "swelling": true, "medication_adherent": false, "diagnosis_severity": 3}`,
	}

	if _, err := f.svc.ProcessReply(context.Background(), patientID, "She is crying and burning up"); err != nil {
		t.Fatalf("ProcessReply: %v", err)
	}

	if len(f.hub.alerts) != 2 {
		t.Fatalf("expected 2 websocket alerts for a pediatric escalation, got %d", len(f.hub.alerts))
	}
	if f.hub.alerts[0].Type != "RISK_ALERT" {
		t.Errorf("first alert type = %q, want RISK_ALERT", f.hub.alerts[0].Type)
	}
	if f.hub.alerts[1].Type != "painscan.requested" {
		t.Errorf("second alert type = %q, want painscan.requested", f.hub.alerts[1].Type)
	}
	// The pain-scan hook is dashboard-only; the shared bus carries just the flag event.
	if got := len(f.bus.OnChannel(eventbus.ChannelFollowupFlagged)); got != 1 {
		t.Errorf("expected 1 bus event, got %d", got)
	}
}

func TestProcessReply_FallbackReplyWhenGenerationFails(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	seedActiveFollowup(f, patientID, false)
	f.gen.Err = llm.ErrQuotaExceeded

	fu, err := f.svc.ProcessReply(context.Background(), patientID, "My wound looks red")
	if err != nil {
		t.Fatalf("ProcessReply must not fail when generation does: %v", err)
	}
	if len(fu.ConversationLog) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(fu.ConversationLog))
	}
	if fu.ConversationLog[1].Message != fallbackReply {
		t.Errorf("bot entry = %q, want canned fallback", fu.ConversationLog[1].Message)
	}
	if f.sender.Count() != 1 || f.sender.Sent[0].Body != fallbackReply {
		t.Error("fallback reply should still be sent to the patient")
	}
	// Extraction also failed, so defaults feed the classifier and risk is
	// still written.
	if fu.RiskLabel != string(risk.LabelLow) {
		t.Errorf("risk label = %q, want LOW from mock scorer", fu.RiskLabel)
	}
}

func TestRunCheckin_AppendsAndCompletesSlot(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	fu := seedActiveFollowup(f, patientID, false)
	f.gen.Responses = []string{"Checking in: how are you feeling today?"}

	if err := f.svc.RunCheckin(context.Background(), patientID, fu.ID, 2); err != nil {
		t.Fatalf("RunCheckin: %v", err)
	}

	stored := f.repo.followups[fu.ID]
	if stored.CheckinSchedule[2].Status != SlotCompleted {
		t.Errorf("slot 2 status = %q, want completed", stored.CheckinSchedule[2].Status)
	}
	if stored.CheckinSchedule[2].CompletedAt == nil {
		t.Error("slot 2 completed_at should be set")
	}
	if len(stored.ConversationLog) != 1 || stored.ConversationLog[0].Role != RoleBot {
		t.Errorf("expected one bot entry, log = %+v", stored.ConversationLog)
	}
	if f.sender.Count() != 1 {
		t.Errorf("expected 1 check-in message, got %d", f.sender.Count())
	}
}

func TestRunCheckin_NoopWhenCompleted(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	fu := seedActiveFollowup(f, patientID, false)
	f.repo.followups[fu.ID].Status = StatusCompleted

	if err := f.svc.RunCheckin(context.Background(), patientID, fu.ID, 0); err != nil {
		t.Fatalf("RunCheckin on completed followup: %v", err)
	}
	if f.sender.Count() != 0 {
		t.Error("no message should be sent for a completed followup")
	}
	if len(f.repo.appends) != 0 {
		t.Error("no log entries should be written for a completed followup")
	}
}

func TestRunCheckin_NoopWhenMissing(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")

	if err := f.svc.RunCheckin(context.Background(), patientID, uuid.New(), 0); err != nil {
		t.Fatalf("RunCheckin on missing followup: %v", err)
	}
	if f.sender.Count() != 0 {
		t.Error("no message should be sent for a missing followup")
	}
}

func TestComplete_CancelsRemainingCheckins(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	consultID := f.addConsultation(patientID)
	f.gen.Responses = []string{"opener"}

	fu, err := f.svc.Create(context.Background(), patientID, consultID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := f.svc.Complete(context.Background(), fu.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", out.Status)
	}
	if len(f.sched.cancelled) != 6 {
		t.Errorf("expected 6 cancelled check-ins, got %d", len(f.sched.cancelled))
	}
}

func TestReactivate_OnlyFromFlagged(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "")
	fu := seedActiveFollowup(f, patientID, false)

	if _, err := f.svc.Reactivate(context.Background(), fu.ID); err == nil {
		t.Fatal("reactivating an active followup should fail")
	}

	f.repo.followups[fu.ID].Status = StatusFlagged
	out, err := f.svc.Reactivate(context.Background(), fu.ID)
	if err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if out.Status != StatusActive {
		t.Errorf("status = %q, want active", out.Status)
	}
}

func TestRearmCheckins_RestoresPendingSlotsAfterRestart(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "+15550100")
	consultID := f.addConsultation(patientID)

	fu, err := f.svc.Create(context.Background(), patientID, consultID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.repo.CompleteSlot(context.Background(), fu.ID, 0, time.Now().UTC()); err != nil {
		t.Fatalf("CompleteSlot: %v", err)
	}
	// Timers do not survive a restart; only the persisted job ids do.
	f.sched.jobs = nil

	n, err := f.svc.RearmCheckins(context.Background())
	if err != nil {
		t.Fatalf("RearmCheckins: %v", err)
	}
	if n != 5 {
		t.Errorf("re-armed %d jobs, want 5 (slot 0 already fired)", n)
	}
	if len(f.sched.jobs) != 5 {
		t.Fatalf("expected 5 armed timers, got %d", len(f.sched.jobs))
	}
	for _, job := range f.sched.jobs {
		if job.id == patientID.String()+"-0" {
			t.Errorf("completed slot 0 must not be re-armed")
		}
	}
	remaining, _ := f.sched.ListByPrefix(context.Background(), patientID.String()+"-0")
	if len(remaining) != 0 {
		t.Errorf("fired slot's job id should be purged, got %v", remaining)
	}
}

func TestRearmCheckins_PurgesIdsWithoutActiveFollowup(t *testing.T) {
	f := newFixture()
	patientID := f.addPatient(34, "")
	consultID := f.addConsultation(patientID)

	fu, err := f.svc.Create(context.Background(), patientID, consultID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// The followup ended without its jobs being cancelled, as when a
	// different process completed it.
	if err := f.repo.UpdateStatus(context.Background(), fu.ID, StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	f.sched.jobs = nil

	n, err := f.svc.RearmCheckins(context.Background())
	if err != nil {
		t.Fatalf("RearmCheckins: %v", err)
	}
	if n != 0 {
		t.Errorf("re-armed %d jobs, want 0", n)
	}
	remaining, _ := f.sched.ListByPrefix(context.Background(), "")
	if len(remaining) != 0 {
		t.Errorf("stale job ids should be purged, got %v", remaining)
	}
}
