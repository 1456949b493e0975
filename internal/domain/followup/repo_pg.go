package followup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const followupCols = `id, patient_id, consultation_id, status, risk_score, risk_label,
	conversation_log, checkin_schedule, pediatric, created_at`

// Create relies on the partial unique index on (patient_id) WHERE
// status = 'active' to make check-and-insert atomic.
func (r *repoPG) Create(ctx context.Context, f *Followup) error {
	f.ID = uuid.New()
	logJSON, err := json.Marshal(f.ConversationLog)
	if err != nil {
		return fmt.Errorf("marshal conversation log: %w", err)
	}
	schedJSON, err := json.Marshal(f.CheckinSchedule)
	if err != nil {
		return fmt.Errorf("marshal checkin schedule: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO followup (id, patient_id, consultation_id, status, risk_score, risk_label,
			conversation_log, checkin_schedule, pediatric)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.PatientID, f.ConsultationID, f.Status, f.RiskScore, f.RiskLabel,
		logJSON, schedJSON, f.Pediatric,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrActiveFollowupExists
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Followup, error) {
	return scanFollowup(r.pool.QueryRow(ctx, `SELECT `+followupCols+` FROM followup WHERE id = $1`, id))
}

func (r *repoPG) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Followup, error) {
	f, err := scanFollowup(r.pool.QueryRow(ctx,
		`SELECT `+followupCols+` FROM followup WHERE patient_id = $1 AND status = $2`,
		patientID, StatusActive))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoActiveFollowup
	}
	return f, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Followup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+followupCols+` FROM followup WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Followup
	for rows.Next() {
		var f Followup
		if err := rows.Scan(
			&f.ID, &f.PatientID, &f.ConsultationID, &f.Status, &f.RiskScore, &f.RiskLabel,
			&f.ConversationLog, &f.CheckinSchedule, &f.Pediatric, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (r *repoPG) AppendMessage(ctx context.Context, id uuid.UUID, entry ConversationEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal conversation entry: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup
		SET conversation_log = conversation_log || $2::jsonb
		WHERE id = $1`,
		id, entryJSON,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) CompleteSlot(ctx context.Context, id uuid.UUID, slotIndex int, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup
		SET checkin_schedule = jsonb_set(
			jsonb_set(checkin_schedule, ARRAY[$2::text, 'status'], '"completed"'),
			ARRAY[$2::text, 'completed_at'], to_jsonb($3::timestamptz)
		)
		WHERE id = $1`,
		id, fmt.Sprintf("%d", slotIndex), at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateRisk(ctx context.Context, id uuid.UUID, score float64, label, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE followup SET risk_score = $2, risk_label = $3, status = $4 WHERE id = $1`,
		id, score, label, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE followup SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFollowup(row pgx.Row) (*Followup, error) {
	var f Followup
	err := row.Scan(
		&f.ID, &f.PatientID, &f.ConsultationID, &f.Status, &f.RiskScore, &f.RiskLabel,
		&f.ConversationLog, &f.CheckinSchedule, &f.Pediatric, &f.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
