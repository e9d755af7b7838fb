package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/dbx"
	"github.com/dmitrijs2005/accounthub/internal/server/auth"
	"github.com/dmitrijs2005/accounthub/internal/server/config"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	usersrepo "github.com/dmitrijs2005/accounthub/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory users repository ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	// failure injection
	err       error
	createErr error
	forUpdate int
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}}
}

func clone(u *models.User) *models.User {
	c := *u
	c.WatchHistory = append([]string(nil), u.WatchHistory...)
	return &c
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = clone(u)
	return clone(u), nil
}

func (f *fakeUsersRepo) get(id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.get(id)
}

func (f *fakeUsersRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	f.forUpdate++
	f.mu.Unlock()
	return f.get(id)
}

func (f *fakeUsersRepo) GetByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) ExistsByEmailExcept(ctx context.Context, email, exceptID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, u := range f.users {
		if u.Email == email && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) update(id string, fn func(u *models.User)) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return clone(u), nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	_, err := f.update(id, func(u *models.User) { u.PasswordHash = hash })
	return err
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id, fullName, email string) (*models.User, error) {
	return f.update(id, func(u *models.User) { u.FullName, u.Email = fullName, email })
}

func (f *fakeUsersRepo) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	return f.update(id, func(u *models.User) { u.AvatarURL = url })
}

func (f *fakeUsersRepo) UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error) {
	return f.update(id, func(u *models.User) { u.CoverImageURL = url })
}

func (f *fakeUsersRepo) SetRefreshToken(ctx context.Context, id, token string) error {
	_, err := f.update(id, func(u *models.User) { u.RefreshToken = token })
	return err
}

func (f *fakeUsersRepo) ClearRefreshToken(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if u, ok := f.users[id]; ok {
		u.RefreshToken = ""
	}
	return nil
}

func (f *fakeUsersRepo) stored(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.users[id])
}

func (f *fakeUsersRepo) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

// --- repository manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo

	mu      sync.Mutex
	handles []dbx.DBTX
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository {
	m.mu.Lock()
	m.handles = append(m.handles, db)
	m.mu.Unlock()
	return m.u
}

func (m *fakeRepoManager) usedTx() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.handles {
		if _, ok := h.(*sql.Tx); ok {
			return true
		}
	}
	return false
}

// --- media storage ---

type fakeStorage struct {
	mu       sync.Mutex
	uploaded []string
	fail     map[string]error
	empty    map[string]bool
}

func (s *fakeStorage) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, localPath)
	if err := s.fail[localPath]; err != nil {
		return "", err
	}
	if s.empty[localPath] {
		return "", nil
	}
	return "https://cdn.test/" + localPath, nil
}

func (s *fakeStorage) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded...)
}

// --- wiring ---

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		PasswordHashCost:   bcrypt.MinCost,
	}
}

type harness struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	repo     *fakeUsersRepo
	rm       *fakeRepoManager
	media    *fakeStorage
	tokens   *auth.TokenService
	store    *CredentialStore
	sessions *SessionManager
	guard    *AuthGuard
	accounts *AccountService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, testConfig())
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{db: db, mock: mock, repo: newFakeUsersRepo(), media: &fakeStorage{}}
	h.rm = &fakeRepoManager{u: h.repo}
	h.tokens = auth.NewTokenService(cfg)
	h.store = NewCredentialStore(db, h.rm, cfg)
	h.sessions = NewSessionManager(db, h.rm, h.store, h.tokens)
	h.guard = NewAuthGuard(h.tokens, h.store)
	h.accounts = NewAccountService(h.store, h.media)
	return h
}

func (h *harness) createAlice(t *testing.T) *models.User {
	t.Helper()
	u, err := h.store.Create(context.Background(), NewUser{
		Username:  "alice",
		Email:     "a@x.com",
		FullName:  "Alice A",
		Password:  "secret123",
		AvatarURL: "https://cdn.test/a.png",
	})
	require.NoError(t, err)
	return u
}

func requireAPIError(t *testing.T, err error, kind common.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *common.APIError
	require.True(t, errors.As(err, &apiErr), "expected *common.APIError, got %T: %v", err, err)
	require.Equal(t, kind, apiErr.Kind, "kind for %v", err)
	if msg != "" {
		require.Equal(t, msg, apiErr.Message)
	}
}
