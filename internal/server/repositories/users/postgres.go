package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/dbx"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url,
		 refresh_token, watch_history, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts user, assigning a fresh UUID when ID is empty, and fills in
// the timestamps generated by the database.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash, user.AvatarURL, user.CoverImageURL,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `

	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 FOR UPDATE
		 `

	return r.getOne(ctx, query, id)
}

// GetByUsernameOrEmail returns the first user whose username or email equals
// identifier. The identifier is expected to be normalized already.
func (r *PostgresRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE username = $1 OR email = $1
		 LIMIT 1
		 `

	return r.getOne(ctx, query, identifier)
}

func (r *PostgresRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) ExistsByEmailExcept(ctx context.Context, email, exceptID string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, exceptID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, fullName, email string) (*models.User, error) {
	query :=
		`UPDATE users SET full_name = $2, email = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return r.getOne(ctx, query, id, fullName, email)
}

func (r *PostgresRepository) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	query :=
		`UPDATE users SET avatar_url = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return r.getOne(ctx, query, id, url)
}

func (r *PostgresRepository) UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error) {
	query :=
		`UPDATE users SET cover_image_url = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return r.getOne(ctx, query, id, url)
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query :=
		`UPDATE users SET refresh_token = $2
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id, token)
}

// ClearRefreshToken unsets the stored refresh token. Clearing an already
// empty slot, or an unknown user, is not an error.
func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET refresh_token = NULL
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var refreshToken sql.NullString

	// pgtype.Map caches scan plans and is not safe for concurrent use.
	m := pgtype.NewMap()

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash,
		&user.AvatarURL, &user.CoverImageURL, &refreshToken,
		m.SQLScanner(&user.WatchHistory), &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.RefreshToken = refreshToken.String
	return user, nil
}
