package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/database"
	"github.com/isdelr/accounts-api/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, verified,
	verification_token, token_expires_at, account_created, account_updated`

type UserRepo struct {
	db      database.DBTX
	dialect database.Dialect
}

func NewUserRepo(db database.DBTX, dialect database.Dialect) *UserRepo {
	return &UserRepo{db: db, dialect: dialect}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var token, expires any
	if user.VerificationToken != nil {
		token = *user.VerificationToken
	}
	if user.TokenExpiresAt != nil {
		expires = user.TokenExpiresAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Verified,
		token, expires, user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return dbError(err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail matches the email exactly, case included.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// Update writes the owner-mutable columns and the update timestamp.
func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET first_name = ?, last_name = ?, password_hash = ?, account_updated = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		user.FirstName, user.LastName, user.PasswordHash, user.UpdatedAt.UTC(), user.ID)
	if err != nil {
		return dbError(err)
	}
	return expectOneRow(res, common.ErrNotFound)
}

// MarkVerified consumes the token. The update only applies while the stored
// token still equals token, so a token can be consumed at most once.
func (r *UserRepo) MarkVerified(ctx context.Context, id, token string, at time.Time) error {
	query := `UPDATE users SET verified = ?, verification_token = NULL, token_expires_at = NULL, account_updated = ?
		WHERE id = ? AND verification_token = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), true, at.UTC(), id, token)
	if err != nil {
		return dbError(err)
	}
	return expectOneRow(res, common.ErrInvalidToken)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u       models.User
		token   sql.NullString
		expires sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Verified,
		&token, &expires, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, dbError(err)
	}

	if token.Valid {
		u.VerificationToken = &token.String
	}
	if expires.Valid {
		t := expires.Time.UTC()
		u.TokenExpiresAt = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func expectOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return none
	}
	return nil
}
