package users

import (
	"context"

	"github.com/dmitrijs2005/accounthub/internal/server/models"
)

// Repository persists user accounts. Lookups return common.ErrorNotFound when
// no row matches; writes that collide on username or email return
// common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	ExistsByEmailExcept(ctx context.Context, email, exceptID string) (bool, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id, fullName, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error)

	SetRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshToken(ctx context.Context, id string) error
}
