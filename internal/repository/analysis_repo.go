package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"disc-assess/internal/domain"
)

// PgAnalysisRepository es el almacen autoritativo de analisis, uno por resultado.
type PgAnalysisRepository struct {
	pool *pgxpool.Pool
}

func NewPgAnalysisRepository(pool *pgxpool.Pool) *PgAnalysisRepository {
	return &PgAnalysisRepository{pool: pool}
}

// Get devuelve ok=false cuando no hay registro para el resultado.
func (r *PgAnalysisRepository) Get(ctx context.Context, resultID string) (domain.AnalysisRecord, bool, error) {
	const query = `SELECT record FROM analysis_records WHERE result_id = $1`
	var raw []byte
	err := r.pool.QueryRow(ctx, query, resultID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AnalysisRecord{}, false, nil
	}
	if err != nil {
		return domain.AnalysisRecord{}, false, err
	}
	var rec domain.AnalysisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.AnalysisRecord{}, false, err
	}
	return rec, true, nil
}

func (r *PgAnalysisRepository) Put(ctx context.Context, resultID string, rec domain.AnalysisRecord) error {
	const query = `
		INSERT INTO analysis_records (result_id, record, fallback, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (result_id)
		DO UPDATE SET
			record = EXCLUDED.record,
			fallback = EXCLUDED.fallback,
			updated_at = EXCLUDED.updated_at
	`
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, resultID, raw, rec.Fallback)
	return err
}
