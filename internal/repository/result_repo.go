package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"disc-assess/internal/domain"
)

// ResultRepository es de solo lectura; los resultados nacen en AssessmentRepository.Complete.
type ResultRepository interface {
	GetByID(ctx context.Context, id string) (domain.Result, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Result, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Result, error)
}

type PgResultRepository struct {
	pool *pgxpool.Pool
}

func NewPgResultRepository(pool *pgxpool.Pool) *PgResultRepository {
	return &PgResultRepository{pool: pool}
}

const resultColumns = `id, assessment_id, user_id, kind, disc, traits, created_at`

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// insertResult sirve tanto al pool como a una transaccion abierta.
func insertResult(ctx context.Context, db execer, result domain.Result) error {
	const query = `
		INSERT INTO results (id, assessment_id, user_id, kind, disc, traits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var disc, traits []byte
	var err error
	if result.DISC != nil {
		if disc, err = json.Marshal(result.DISC); err != nil {
			return err
		}
	}
	if result.Traits != nil {
		if traits, err = json.Marshal(result.Traits); err != nil {
			return err
		}
	}
	_, err = db.Exec(ctx, query,
		result.ID,
		result.AssessmentID,
		result.UserID,
		result.Kind,
		disc,
		traits,
		result.CreatedAt,
	)
	return err
}

func (r *PgResultRepository) GetByID(ctx context.Context, id string) (domain.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE id = $1`
	return scanResult(r.pool.QueryRow(ctx, query, id))
}

func (r *PgResultRepository) ListByUser(ctx context.Context, userID string) ([]domain.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *PgResultRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, query, limit, offset)
}

func (r *PgResultRepository) list(ctx context.Context, query string, args ...any) ([]domain.Result, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanResult(row pgx.Row) (domain.Result, error) {
	var (
		res          domain.Result
		disc, traits []byte
	)
	err := row.Scan(&res.ID, &res.AssessmentID, &res.UserID, &res.Kind, &disc, &traits, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, err
	}
	if err != nil {
		return domain.Result{}, err
	}
	if len(disc) > 0 {
		var d domain.DISCResult
		if err := json.Unmarshal(disc, &d); err != nil {
			return domain.Result{}, err
		}
		res.DISC = &d
	}
	if len(traits) > 0 {
		var t domain.TraitResult
		if err := json.Unmarshal(traits, &t); err != nil {
			return domain.Result{}, err
		}
		res.Traits = &t
	}
	return res, nil
}
