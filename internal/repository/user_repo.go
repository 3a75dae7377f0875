package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"disc-assess/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	UpdateRole(ctx context.Context, id, role string) error
	UpdateLoginCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error
	UpdateProfile(ctx context.Context, id string, profile domain.PublicProfile) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, name, role, password_hash, profile, email_verified_at, login_code_hash, login_code_expires, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, name, role, password_hash, profile, email_verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	profile, err := marshalProfile(user.Profile)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordHash,
		profile,
		user.EmailVerifiedAt,
		user.CreatedAt,
	)
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PgUserRepository) UpdateRole(ctx context.Context, id, role string) error {
	const query = `UPDATE users SET role = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) UpdateLoginCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	const query = `UPDATE users SET login_code_hash = $2, login_code_expires = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, codeHash, expiresAt)
	return err
}

// VerifyEmail marca el email como verificado y consume el codigo de login.
func (r *PgUserRepository) VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `
		UPDATE users
		SET email_verified_at = COALESCE(email_verified_at, $2),
			login_code_hash = NULL,
			login_code_expires = NULL
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, verifiedAt)
	return err
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id string, profile domain.PublicProfile) error {
	const query = `UPDATE users SET profile = $2 WHERE id = $1`
	raw, err := marshalProfile(&profile)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, id, raw)
	return err
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u           domain.User
		profile     []byte
		codeHash    sql.NullString
		codeExpires sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.PasswordHash,
		&profile,
		&u.EmailVerifiedAt,
		&codeHash,
		&codeExpires,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, err
	}
	if len(profile) > 0 {
		var p domain.PublicProfile
		if err := json.Unmarshal(profile, &p); err != nil {
			return domain.User{}, err
		}
		u.Profile = &p
	}
	if codeHash.Valid {
		u.LoginCodeHash = codeHash.String
	}
	if codeExpires.Valid {
		exp := codeExpires.Time
		u.LoginCodeExpiry = &exp
	}
	return u, nil
}

func marshalProfile(p *domain.PublicProfile) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}
