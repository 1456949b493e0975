package pain

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/platform/eventbus"
)

type mockRepo struct {
	scores []PainScore
}

func (m *mockRepo) Create(ctx context.Context, ps *PainScore) error {
	ps.ID = uuid.New()
	m.scores = append(m.scores, *ps)
	return nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]PainScore, error) {
	var out []PainScore
	for _, ps := range m.scores {
		if ps.PatientID == patientID && len(out) < limit {
			out = append(out, ps)
		}
	}
	return out, nil
}

func TestScore_AggregatesFramesAtP75(t *testing.T) {
	repo := &mockRepo{}
	bus := eventbus.NewMemoryBus()
	svc := NewService(repo, bus, zerolog.Nop())

	ps, err := svc.Score(context.Background(), ScoreRequest{
		PatientID:   uuid.New(),
		FrameScores: []int{2, 4, 6, 8},
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	// p75 of [2 4 6 8] interpolates to 6.5, truncated to 6; facial is the
	// only modality so the fused score is the face score.
	if ps.FinalScore != 6 {
		t.Errorf("final score = %d, want 6", ps.FinalScore)
	}
	if ps.RiskLevel != RiskModerate {
		t.Errorf("risk = %q, want MODERATE", ps.RiskLevel)
	}
	if ps.FrameCount != 4 {
		t.Errorf("frame count = %d, want 4", ps.FrameCount)
	}
	if len(repo.scores) != 1 {
		t.Fatalf("expected 1 persisted score, got %d", len(repo.scores))
	}
}

func TestScore_PublishesBaseSignals(t *testing.T) {
	repo := &mockRepo{}
	bus := eventbus.NewMemoryBus()
	svc := NewService(repo, bus, zerolog.Nop())

	if _, err := svc.Score(context.Background(), ScoreRequest{
		PatientID:   uuid.New(),
		FrameScores: []int{1, 2},
	}); err != nil {
		t.Fatalf("Score: %v", err)
	}

	if got := len(bus.OnChannel(eventbus.ChannelPainScored)); got != 1 {
		t.Errorf("pain.scored events = %d, want 1", got)
	}
	if got := len(bus.OnChannel(eventbus.ChannelPainMultimodal)); got != 1 {
		t.Errorf("pain.multimodal_scored events = %d, want 1", got)
	}
	if got := len(bus.OnChannel(eventbus.ChannelRespiratoryDistress)); got != 0 {
		t.Errorf("unexpected respiratory distress events on a low score: %d", got)
	}
	if got := len(bus.OnChannel(eventbus.ChannelSilentDistress)); got != 0 {
		t.Errorf("unexpected silent distress events on a low score: %d", got)
	}
}

func TestScore_HighRiskAnomalySignals(t *testing.T) {
	repo := &mockRepo{}
	bus := eventbus.NewMemoryBus()
	svc := NewService(repo, bus, zerolog.Nop())

	rate := 46.0
	if _, err := svc.Score(context.Background(), ScoreRequest{
		PatientID:       uuid.New(),
		FrameScores:     []int{9, 9, 9, 9},
		RespirationRate: &rate,
	}); err != nil {
		t.Fatalf("Score: %v", err)
	}

	if got := len(bus.OnChannel(eventbus.ChannelRespiratoryDistress)); got != 1 {
		t.Errorf("respiratory distress events = %d, want 1 for rate > 40 at HIGH", got)
	}
	// No audible cry alongside a HIGH tier reads as silent distress.
	if got := len(bus.OnChannel(eventbus.ChannelSilentDistress)); got != 1 {
		t.Errorf("silent distress events = %d, want 1 when cry is absent", got)
	}
}

func TestScore_AudibleCrySuppressesSilentDistress(t *testing.T) {
	repo := &mockRepo{}
	bus := eventbus.NewMemoryBus()
	svc := NewService(repo, bus, zerolog.Nop())

	cry := 0.9
	if _, err := svc.Score(context.Background(), ScoreRequest{
		PatientID:    uuid.New(),
		FrameScores:  []int{10, 10, 10},
		CryIntensity: &cry,
	}); err != nil {
		t.Fatalf("Score: %v", err)
	}

	if got := len(bus.OnChannel(eventbus.ChannelSilentDistress)); got != 0 {
		t.Errorf("silent distress events = %d, want 0 with an audible cry", got)
	}
	if got := len(bus.OnChannel(eventbus.ChannelRespiratoryDistress)); got != 0 {
		t.Errorf("respiratory distress events = %d, want 0 without a respiration rate", got)
	}
}

func TestScore_RequiresPatientID(t *testing.T) {
	svc := NewService(&mockRepo{}, eventbus.NewMemoryBus(), zerolog.Nop())

	_, err := svc.Score(context.Background(), ScoreRequest{FrameScores: []int{5}})
	if !errors.Is(err, ErrNoPatient) {
		t.Fatalf("expected ErrNoPatient, got %v", err)
	}
}

func TestPercentile75(t *testing.T) {
	cases := []struct {
		scores []int
		want   int
	}{
		{[]int{5}, 5},
		{[]int{0, 10}, 7},
		{[]int{2, 4, 6, 8}, 6},
		{[]int{3, 3, 3, 3}, 3},
		{[]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 7},
	}
	for _, tc := range cases {
		if got := percentile75(tc.scores); got != tc.want {
			t.Errorf("percentile75(%v) = %d, want %d", tc.scores, got, tc.want)
		}
	}
}
