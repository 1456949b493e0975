package intent

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, d *AIDecision) error {
	d.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO ai_decision (id, patient_id, intent, confidence, reasoning, suggested_module, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		d.ID, d.PatientID, d.Intent, d.Confidence, d.Reasoning, d.SuggestedModule, d.Source,
	).Scan(&d.CreatedAt)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]AIDecision, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, intent, confidence, reasoning, suggested_module, source, created_at
		FROM ai_decision
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		patientID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectDecisions(rows)
}

func (r *repoPG) ListRecent(ctx context.Context, limit int) ([]AIDecision, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, intent, confidence, reasoning, suggested_module, source, created_at
		FROM ai_decision
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return collectDecisions(rows)
}

func collectDecisions(rows pgx.Rows) ([]AIDecision, error) {
	defer rows.Close()
	var out []AIDecision
	for rows.Next() {
		var d AIDecision
		if err := rows.Scan(
			&d.ID, &d.PatientID, &d.Intent, &d.Confidence, &d.Reasoning,
			&d.SuggestedModule, &d.Source, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
