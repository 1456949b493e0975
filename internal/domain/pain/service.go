package pain

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediloop/mediloop/internal/platform/eventbus"
)

var ErrNoPatient = errors.New("patient_id is required")

// ScoreRequest is one frame-batch submission: per-frame facial scores plus
// whatever physiological signals the capture session produced.
type ScoreRequest struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	FollowupID  *uuid.UUID `json:"followup_id,omitempty"`
	FrameScores []int      `json:"frame_scores"`

	RespirationRate *float64 `json:"respiration_rate,omitempty"`
	RespDistress    bool     `json:"respiration_distress"`
	CryIntensity    *float64 `json:"cry_intensity,omitempty"`
	AudioDistress   bool     `json:"audio_distress"`
	AgitationScore  *float64 `json:"agitation_score,omitempty"`
	HeartRate       *float64 `json:"heart_rate,omitempty"`
	PulseConfidence float64  `json:"pulse_confidence"`
}

type Service struct {
	repo   Repository
	bus    eventbus.Bus
	logger zerolog.Logger
}

func NewService(repo Repository, bus eventbus.Bus, logger zerolog.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: logger}
}

// Score fuses a frame batch into one PainScore, persists it, and publishes
// the escalation signals. The facial contribution is the 75th percentile of
// the per-frame scores so a batch is judged by its worst sustained stretch
// rather than its average.
func (s *Service) Score(ctx context.Context, req ScoreRequest) (*PainScore, error) {
	if req.PatientID == uuid.Nil {
		return nil, ErrNoPatient
	}

	var faceScore *int
	if len(req.FrameScores) > 0 {
		p := percentile75(req.FrameScores)
		faceScore = &p
	}

	result := Fuse(Signals{
		FaceScore:       faceScore,
		RespirationRate: req.RespirationRate,
		RespDistress:    req.RespDistress,
		CryIntensity:    req.CryIntensity,
		AudioDistress:   req.AudioDistress,
		AgitationScore:  req.AgitationScore,
		HeartRate:       req.HeartRate,
		PulseConfidence: req.PulseConfidence,
	})

	ps := &PainScore{
		PatientID:       req.PatientID,
		FollowupID:      req.FollowupID,
		FinalScore:      result.FinalScore,
		RiskLevel:       result.RiskLevel,
		Modalities:      result.Modalities,
		FrameCount:      len(req.FrameScores),
		RespirationRate: req.RespirationRate,
		HeartRate:       req.HeartRate,
		CryIntensity:    req.CryIntensity,
		Agitation:       req.AgitationScore,
	}
	if err := s.repo.Create(ctx, ps); err != nil {
		return nil, err
	}

	s.publishSignals(ctx, req, ps)

	s.logger.Info().
		Str("patient_id", ps.PatientID.String()).
		Int("final_score", ps.FinalScore).
		Str("risk_level", ps.RiskLevel).
		Strs("modalities", ps.Modalities).
		Msg("pain score recorded")
	return ps, nil
}

func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit int) ([]PainScore, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.ListByPatient(ctx, patientID, limit)
}

// publishSignals emits the generic pain.scored signal, the richer multimodal
// signal, and the two HIGH-only anomaly channels. Publish failures are logged
// and swallowed; the stored score is already committed.
func (s *Service) publishSignals(ctx context.Context, req ScoreRequest, ps *PainScore) {
	followupID := ""
	if ps.FollowupID != nil {
		followupID = ps.FollowupID.String()
	}

	s.publish(ctx, eventbus.ChannelPainScored, eventbus.PainScored{
		PatientID:  ps.PatientID.String(),
		Score:      ps.FinalScore,
		FollowupID: followupID,
	})

	multimodal := eventbus.PainMultimodal{
		PatientID:  ps.PatientID.String(),
		FollowupID: followupID,
		Score:      ps.FinalScore,
		RiskLevel:  ps.RiskLevel,
	}
	s.publish(ctx, eventbus.ChannelPainMultimodal, multimodal)

	if ps.RiskLevel != RiskHigh {
		return
	}
	if req.RespirationRate != nil && *req.RespirationRate > 40 {
		s.publish(ctx, eventbus.ChannelRespiratoryDistress, multimodal)
	}
	// Distress visible on face or vitals but not audibly, e.g. a non-verbal
	// patient.
	if req.CryIntensity == nil || *req.CryIntensity < 0.2 {
		s.publish(ctx, eventbus.ChannelSilentDistress, multimodal)
	}
}

func (s *Service) publish(ctx context.Context, channel string, payload interface{}) {
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Msg("publish pain signal")
	}
}

// percentile75 returns the linearly interpolated 75th percentile, truncated
// to an integer.
func percentile75(scores []int) int {
	sorted := append([]int(nil), scores...)
	sort.Ints(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := 0.75 * float64(len(sorted)-1)
	lower := int(pos)
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	v := float64(sorted[lower]) + frac*float64(sorted[lower+1]-sorted[lower])
	return int(v)
}
