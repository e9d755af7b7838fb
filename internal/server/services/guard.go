package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/server/auth"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
)

const (
	msgInvalidAccessToken = "Invalid access token"
	msgUserGone           = "Invalid Access Token"
)

// AuthGuard resolves an access token to the user it was issued for.
type AuthGuard struct {
	tokens *auth.TokenService
	store  *CredentialStore
}

func NewAuthGuard(tokens *auth.TokenService, store *CredentialStore) *AuthGuard {
	return &AuthGuard{tokens: tokens, store: store}
}

func (g *AuthGuard) Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error) {
	if accessToken == "" {
		return nil, common.Unauthorized(msgUnauthorizedRequest, nil)
	}

	claims, err := g.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, common.Unauthorized(msgInvalidAccessToken, err)
	}

	user, err := g.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.Unauthorized(msgUserGone, err)
		}
		return nil, common.Internal(fmt.Errorf("load user: %w", err))
	}

	return models.NewPublicUser(user), nil
}
