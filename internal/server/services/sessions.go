package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/dbx"
	"github.com/dmitrijs2005/accounthub/internal/server/auth"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	"github.com/dmitrijs2005/accounthub/internal/server/repositories/repomanager"
)

const (
	msgIdentifierRequired  = "username or email is required"
	msgInvalidCredentials  = "Invalid user credentials"
	msgUnauthorizedRequest = "Unauthorized request"
	msgInvalidRefreshToken = "Invalid Refresh Token"
	msgRefreshTokenUsed    = "Refresh token is expired or used"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User *models.PublicUser
	TokenPair
}

// SessionManager handles login, logout and refresh token rotation. Each user
// has a single refresh token slot; a new login or refresh overwrites it.
type SessionManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       *CredentialStore
	tokens      *auth.TokenService
}

func NewSessionManager(db *sql.DB, m repomanager.RepositoryManager, store *CredentialStore, tokens *auth.TokenService) *SessionManager {
	return &SessionManager{
		db:          db,
		repomanager: m,
		store:       store,
		tokens:      tokens,
	}
}

// Login looks the user up by username, falling back to email when no username
// is given, verifies the password and issues a fresh token pair.
func (s *SessionManager) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(in.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(in.Email)
	}
	if identifier == "" {
		return nil, common.Validation(msgIdentifierRequired)
	}

	user, err := s.store.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NotFound(msgUserNotFound)
		}
		return nil, common.Internal(fmt.Errorf("find user: %w", err))
	}

	if !s.store.VerifyPassword(user, in.Password) {
		return nil, common.Unauthorized(msgInvalidCredentials, nil)
	}

	pair, err := s.issue(ctx, s.db, user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: models.NewPublicUser(user), TokenPair: *pair}, nil
}

// Refresh verifies refreshToken, checks it against the stored one and rotates
// both tokens. The user row stays locked from the comparison until the new
// token is stored, so concurrent refreshes with the same token cannot both
// succeed.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.Unauthorized(msgUnauthorizedRequest, nil)
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, common.Unauthorized(msgInvalidRefreshToken, err)
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByIDForUpdate(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.Unauthorized(msgInvalidRefreshToken, err)
			}
			return common.Internal(fmt.Errorf("load user: %w", err))
		}

		if user.RefreshToken == "" ||
			subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
			return common.Unauthorized(msgRefreshTokenUsed, nil)
		}

		pair, err = s.issue(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, common.AsAPIError(err)
	}

	return pair, nil
}

// Logout clears the stored refresh token. It is idempotent.
func (s *SessionManager) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.Users(s.db).ClearRefreshToken(ctx, userID); err != nil {
		return common.Internal(fmt.Errorf("clear refresh token: %w", err))
	}
	return nil
}

func (s *SessionManager) issue(ctx context.Context, db dbx.DBTX, user *models.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, common.Internal(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, common.Internal(err)
	}

	if err := s.repomanager.Users(db).SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, common.Internal(fmt.Errorf("store refresh token: %w", err))
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
