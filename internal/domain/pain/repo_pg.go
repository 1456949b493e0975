package pain

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, ps *PainScore) error {
	ps.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO pain_score (id, patient_id, followup_id, final_score, risk_level,
			modalities_used, frame_count, respiration_rate, heart_rate, cry_intensity, agitation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		ps.ID, ps.PatientID, ps.FollowupID, ps.FinalScore, ps.RiskLevel,
		ps.Modalities, ps.FrameCount, ps.RespirationRate, ps.HeartRate,
		ps.CryIntensity, ps.Agitation,
	).Scan(&ps.CreatedAt)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]PainScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, followup_id, final_score, risk_level, modalities_used,
			frame_count, respiration_rate, heart_rate, cry_intensity, agitation, created_at
		FROM pain_score
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		patientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PainScore
	for rows.Next() {
		var ps PainScore
		if err := rows.Scan(
			&ps.ID, &ps.PatientID, &ps.FollowupID, &ps.FinalScore, &ps.RiskLevel,
			&ps.Modalities, &ps.FrameCount, &ps.RespirationRate, &ps.HeartRate,
			&ps.CryIntensity, &ps.Agitation, &ps.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
