package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"id", "username", "email", "full_name", "password_hash", "avatar_url", "cover_image_url",
	"refresh_token", "watch_history", "created_at", "updated_at",
}

var ts = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func aliceRow() *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(
		"u-1", "alice", "a@x.com", "Alice A", "$2a$10$hash", "https://cdn/a.png", "",
		"refresh-1", "{v1,v2}", ts, ts,
	)
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*email,\s*full_name,\s*password_hash,\s*avatar_url,\s*cover_image_url\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*RETURNING\s+created_at,\s*updated_at\s*$`

	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "alice", "a@x.com", "Alice A", "hash", "https://cdn/a.png", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	u := &models.User{Username: "alice", Email: "a@x.com", FullName: "Alice A", PasswordHash: "hash", AvatarURL: "https://cdn/a.png"}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)

	assert.Len(t, got.ID, 36, "uuid must be assigned")
	assert.Equal(t, ts, got.CreatedAt)
	assert.Equal(t, ts, got.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_KeepsProvidedID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("fixed-id", "bob", "b@x.com", "Bob", "h", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	got, err := repo.Create(context.Background(), &models.User{ID: "fixed-id", Username: "bob", Email: "b@x.com", FullName: "Bob", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", got.ID)
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+id,\s*username,.*watch_history,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("u-1").WillReturnRows(aliceRow())

	got, err := repo.GetByID(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, &models.User{
		ID:           "u-1",
		Username:     "alice",
		Email:        "a@x.com",
		FullName:     "Alice A",
		PasswordHash: "$2a$10$hash",
		AvatarURL:    "https://cdn/a.png",
		RefreshToken: "refresh-1",
		WatchHistory: []string{"v1", "v2"},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}, got)
}

func TestGetByID_NullRefreshToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(columns).AddRow(
		"u-1", "alice", "a@x.com", "Alice A", "h", "", "", nil, "{}", ts, ts,
	)
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs("u-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Empty(t, got.RefreshToken)
	assert.Empty(t, got.WatchHistory)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByIDForUpdate_LocksRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	mock.ExpectQuery(q).WithArgs("u-1").WillReturnRows(aliceRow())

	got, err := repo.GetByIDForUpdate(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUsernameOrEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+OR\s+email\s*=\s*\$1\s+LIMIT\s+1`
	mock.ExpectQuery(q).WithArgs("a@x.com").WillReturnRows(aliceRow())

	got, err := repo.GetByUsernameOrEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestGetByUsernameOrEmail_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE\s+username`).WithArgs("alice").WillReturnError(errors.New("db err"))

	_, err := repo.GetByUsernameOrEmail(context.Background(), "alice")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestExistsByUsernameOrEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+OR\s+email\s*=\s*\$2\)`
	mock.ExpectQuery(q).WithArgs("alice", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q).WithArgs("bob", "b@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.ExistsByUsernameOrEmail(context.Background(), "alice", "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExistsByUsernameOrEmail(context.Background(), "bob", "b@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsByEmailExcept(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s+AND\s+id\s*<>\s*\$2\)`
	mock.ExpectQuery(q).WithArgs("a@x.com", "u-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsByEmailExcept(context.Background(), "a@x.com", "u-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdatePassword(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u-1", "new-hash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("ghost", "new-hash").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdatePassword(context.Background(), "u-1", "new-hash"))
	require.ErrorIs(t, repo.UpdatePassword(context.Background(), "ghost", "new-hash"), common.ErrorNotFound)
}

func TestUpdateProfile(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^UPDATE\s+users\s+SET\s+full_name\s*=\s*\$2,\s*email\s*=\s*\$3,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+id,`
	mock.ExpectQuery(q).WithArgs("u-1", "Alice A", "a@x.com").WillReturnRows(aliceRow())

	got, err := repo.UpdateProfile(context.Background(), "u-1", "Alice A", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice A", got.FullName)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE\s+users\s+SET\s+full_name`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.UpdateProfile(context.Background(), "u-1", "Alice", "taken@x.com")
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestUpdateAvatarAndCover(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE\s+users\s+SET\s+avatar_url\s*=\s*\$2`).
		WithArgs("u-1", "https://cdn/new.png").WillReturnRows(aliceRow())
	mock.ExpectQuery(`UPDATE\s+users\s+SET\s+cover_image_url\s*=\s*\$2`).
		WithArgs("u-1", "https://cdn/cover.png").WillReturnRows(aliceRow())
	mock.ExpectQuery(`UPDATE\s+users\s+SET\s+avatar_url`).
		WithArgs("ghost", "x").WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateAvatar(context.Background(), "u-1", "https://cdn/new.png")
	require.NoError(t, err)
	_, err = repo.UpdateCoverImage(context.Background(), "u-1", "https://cdn/cover.png")
	require.NoError(t, err)
	_, err = repo.UpdateAvatar(context.Background(), "ghost", "x")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetRefreshToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^UPDATE\s+users\s+SET\s+refresh_token\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u-1", "tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("ghost", "tok").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("u-1", "tok").WillReturnError(errors.New("db err"))

	require.NoError(t, repo.SetRefreshToken(context.Background(), "u-1", "tok"))
	require.ErrorIs(t, repo.SetRefreshToken(context.Background(), "ghost", "tok"), common.ErrorNotFound)
	require.ErrorContains(t, repo.SetRefreshToken(context.Background(), "u-1", "tok"), "db error: db err")
}

func TestClearRefreshToken_Idempotent(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^UPDATE\s+users\s+SET\s+refresh_token\s*=\s*NULL\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.ClearRefreshToken(context.Background(), "u-1"))
	require.NoError(t, repo.ClearRefreshToken(context.Background(), "u-1"))
	require.NoError(t, repo.ClearRefreshToken(context.Background(), "ghost"))
	require.NoError(t, mock.ExpectationsWereMet())
}
