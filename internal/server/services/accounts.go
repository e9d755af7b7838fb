package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/server/media"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
)

const (
	msgAvatarRequired     = "Avatar file is required"
	msgAvatarMissing      = "Avatar file is missing"
	msgCoverMissing       = "Cover image file is missing"
	msgAvatarUploadFailed = "Error while uploading avatar"
	msgCoverUploadFailed  = "Error while uploading cover image"
	msgInvalidOldPassword = "Invalid old password"
)

// RegisterInput carries the registration form. AvatarPath and CoverImagePath
// are staged local files; they are consumed (removed) by the media storage.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// AccountService implements registration and self-service profile changes.
type AccountService struct {
	store *CredentialStore
	media media.Storage
}

func NewAccountService(store *CredentialStore, storage media.Storage) *AccountService {
	return &AccountService{store: store, media: storage}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" ||
		strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.Validation(msgAllFieldsRequired)
	}

	if err := s.store.EnsureAvailable(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	if in.AvatarPath == "" {
		return nil, common.Validation(msgAvatarRequired)
	}

	avatarURL, err := s.media.Upload(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		return nil, &common.APIError{Kind: common.KindValidation, Message: msgAvatarRequired, Err: err}
	}

	// The cover image is optional; a failed upload leaves it empty.
	coverURL, err := s.media.Upload(ctx, in.CoverImagePath)
	if err != nil {
		coverURL = ""
	}

	user, err := s.store.Create(ctx, NewUser{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		Password:      in.Password,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		return nil, err
	}

	return models.NewPublicUser(user), nil
}

func (s *AccountService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NotFound(msgUserNotFound)
		}
		return common.Internal(fmt.Errorf("load user: %w", err))
	}

	if !s.store.VerifyPassword(user, oldPassword) {
		return common.Validation(msgInvalidOldPassword)
	}

	return s.store.SetPassword(ctx, user, newPassword)
}

func (s *AccountService) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error) {
	return s.store.UpdateProfile(ctx, userID, ProfileUpdate{FullName: fullName, Email: email})
}

func (s *AccountService) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	if localPath == "" {
		return nil, common.Validation(msgAvatarMissing)
	}

	url, err := s.media.Upload(ctx, localPath)
	if err != nil || url == "" {
		return nil, &common.APIError{Kind: common.KindValidation, Message: msgAvatarUploadFailed, Err: err}
	}

	return s.store.UpdateAvatar(ctx, userID, url)
}

func (s *AccountService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	if localPath == "" {
		return nil, common.Validation(msgCoverMissing)
	}

	url, err := s.media.Upload(ctx, localPath)
	if err != nil || url == "" {
		return nil, &common.APIError{Kind: common.KindValidation, Message: msgCoverUploadFailed, Err: err}
	}

	return s.store.UpdateCoverImage(ctx, userID, url)
}

func (s *AccountService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NotFound(msgUserNotFound)
		}
		return nil, common.Internal(fmt.Errorf("load user: %w", err))
	}
	return models.NewPublicUser(user), nil
}
