// Package services contains server-side business logic: the credential store,
// session management, the auth guard and account operations. Services return
// *common.APIError for failures a client should see; anything else is an
// internal error.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/cryptox"
	"github.com/dmitrijs2005/accounthub/internal/server/config"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	"github.com/dmitrijs2005/accounthub/internal/server/repositories/repomanager"
)

const (
	msgAllFieldsRequired = "All fields are required"
	msgUserExists        = "User with email or username already exists"
	msgEmailTaken        = "User with this email already exists"
	msgUserNotFound      = "User does not exist"
	msgPasswordRequired  = "Password is required"
	msgPasswordTooLong   = "Password must be at most 72 bytes"
)

// NewUser is the input for CredentialStore.Create.
type NewUser struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FullName string
	Email    string
}

// CredentialStore owns user records and password hashes. It is the only
// place passwords are hashed or compared.
type CredentialStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hashCost    int
}

func NewCredentialStore(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *CredentialStore {
	return &CredentialStore{
		db:          db,
		repomanager: m,
		hashCost:    cfg.PasswordHashCost,
	}
}

// Normalize trims and lowercases a username or email.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EnsureAvailable fails with Conflict when the username or email is taken.
func (s *CredentialStore) EnsureAvailable(ctx context.Context, username, email string) error {
	exists, err := s.repomanager.Users(s.db).ExistsByUsernameOrEmail(ctx, Normalize(username), Normalize(email))
	if err != nil {
		return common.Internal(fmt.Errorf("check user exists: %w", err))
	}
	if exists {
		return common.Conflict(msgUserExists)
	}
	return nil
}

// Create validates in, hashes the password and stores a new user.
func (s *CredentialStore) Create(ctx context.Context, in NewUser) (*models.User, error) {
	user := &models.User{
		Username:      Normalize(in.Username),
		Email:         Normalize(in.Email),
		FullName:      strings.TrimSpace(in.FullName),
		AvatarURL:     in.AvatarURL,
		CoverImageURL: in.CoverImageURL,
	}

	if user.Username == "" || user.Email == "" || user.FullName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.Validation(msgAllFieldsRequired)
	}

	if err := s.EnsureAvailable(ctx, user.Username, user.Email); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.Conflict(msgUserExists)
		}
		return nil, common.Internal(fmt.Errorf("create user: %w", err))
	}

	return created, nil
}

// FindByID returns common.ErrorNotFound when no user has the id.
func (s *CredentialStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// FindByUsernameOrEmail normalizes identifier and returns the first user whose
// username or email matches it, or common.ErrorNotFound.
func (s *CredentialStore) FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByUsernameOrEmail(ctx, Normalize(identifier))
}

// SetPassword re-hashes newPassword and persists only the hash.
func (s *CredentialStore) SetPassword(ctx context.Context, user *models.User, newPassword string) error {
	if newPassword == "" {
		return common.Validation(msgPasswordRequired)
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NotFound(msgUserNotFound)
		}
		return common.Internal(fmt.Errorf("update password: %w", err))
	}

	user.PasswordHash = hash
	return nil
}

// VerifyPassword compares candidate with the stored hash in constant time.
func (s *CredentialStore) VerifyPassword(user *models.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return cryptox.ComparePassword(user.PasswordHash, candidate)
}

func (s *CredentialStore) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.PublicUser, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := Normalize(in.Email)
	if fullName == "" || email == "" {
		return nil, common.Validation(msgAllFieldsRequired)
	}

	repo := s.repomanager.Users(s.db)

	taken, err := repo.ExistsByEmailExcept(ctx, email, id)
	if err != nil {
		return nil, common.Internal(fmt.Errorf("check email: %w", err))
	}
	if taken {
		return nil, common.Conflict(msgEmailTaken)
	}

	user, err := repo.UpdateProfile(ctx, id, fullName, email)
	return s.public(user, err, "update profile")
}

func (s *CredentialStore) UpdateAvatar(ctx context.Context, id, url string) (*models.PublicUser, error) {
	user, err := s.repomanager.Users(s.db).UpdateAvatar(ctx, id, url)
	return s.public(user, err, "update avatar")
}

func (s *CredentialStore) UpdateCoverImage(ctx context.Context, id, url string) (*models.PublicUser, error) {
	user, err := s.repomanager.Users(s.db).UpdateCoverImage(ctx, id, url)
	return s.public(user, err, "update cover image")
}

func (s *CredentialStore) public(user *models.User, err error, op string) (*models.PublicUser, error) {
	switch {
	case err == nil:
		return models.NewPublicUser(user), nil
	case errors.Is(err, common.ErrorNotFound):
		return nil, common.NotFound(msgUserNotFound)
	case errors.Is(err, common.ErrorAlreadyExists):
		return nil, common.Conflict(msgEmailTaken)
	default:
		return nil, common.Internal(fmt.Errorf("%s: %w", op, err))
	}
}

func (s *CredentialStore) hash(password string) (string, error) {
	hash, err := cryptox.HashPassword(password, s.hashCost)
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return "", common.Validation(msgPasswordTooLong)
		}
		return "", common.Internal(err)
	}
	return hash, nil
}
