package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"disc-assess/internal/domain"
)

const uniqueViolation = "23505"

type AssessmentRepository interface {
	Create(ctx context.Context, a domain.Assessment) error
	GetByID(ctx context.Context, id string) (domain.Assessment, error)
	UpsertAnswer(ctx context.Context, answer domain.Answer) error
	ListAnswers(ctx context.Context, assessmentID string) ([]domain.Answer, error)
	// Complete cierra el assessment y guarda su resultado de forma atomica.
	// Devuelve pgx.ErrNoRows si ya estaba completado.
	Complete(ctx context.Context, result domain.Result) error
}

type PgAssessmentRepository struct {
	pool *pgxpool.Pool
}

func NewPgAssessmentRepository(pool *pgxpool.Pool) *PgAssessmentRepository {
	return &PgAssessmentRepository{pool: pool}
}

func (r *PgAssessmentRepository) Create(ctx context.Context, a domain.Assessment) error {
	const query = `
		INSERT INTO assessments (id, user_id, kind, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, a.ID, a.UserID, a.Kind, a.Status, a.StartedAt)
	return err
}

func (r *PgAssessmentRepository) GetByID(ctx context.Context, id string) (domain.Assessment, error) {
	const query = `
		SELECT id, user_id, kind, status, started_at, completed_at
		FROM assessments
		WHERE id = $1
	`
	var a domain.Assessment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.UserID,
		&a.Kind,
		&a.Status,
		&a.StartedAt,
		&a.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assessment{}, err
	}
	return a, err
}

// UpsertAnswer no toca assessments completados: la condicion va en el mismo statement.
func (r *PgAssessmentRepository) UpsertAnswer(ctx context.Context, answer domain.Answer) error {
	const query = `
		INSERT INTO answers (assessment_id, question_id, section, value, answered_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM assessments WHERE id = $1 AND status = 'in_progress')
		ON CONFLICT (assessment_id, question_id)
		DO UPDATE SET
			section = EXCLUDED.section,
			value = EXCLUDED.value,
			answered_at = EXCLUDED.answered_at
	`
	tag, err := r.pool.Exec(ctx, query,
		answer.AssessmentID,
		answer.QuestionID,
		answer.Section,
		answer.Value,
		answer.AnsweredAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAssessmentRepository) ListAnswers(ctx context.Context, assessmentID string) ([]domain.Answer, error) {
	const query = `
		SELECT assessment_id, question_id, section, value, answered_at
		FROM answers
		WHERE assessment_id = $1
		ORDER BY question_id
	`
	rows, err := r.pool.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.AssessmentID, &a.QuestionID, &a.Section, &a.Value, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *PgAssessmentRepository) Complete(ctx context.Context, result domain.Result) (err error) {
	const markCompleted = `
		UPDATE assessments
		SET status = 'completed', completed_at = $2
		WHERE id = $1 AND status = 'in_progress'
	`
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, markCompleted, result.AssessmentID, result.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if err = insertResult(ctx, tx, result); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return pgx.ErrNoRows
		}
		return err
	}
	return tx.Commit(ctx)
}
