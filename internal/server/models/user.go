// Package models defines server-side data models persisted in the database
// and the sanitized views returned to clients.
package models

import "time"

// User is the persisted account record. PasswordHash and RefreshToken never
// leave the server; use PublicUser for anything that is serialized.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	// RefreshToken is the single live refresh token, empty when logged out.
	RefreshToken string
	WatchHistory []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	WatchHistory []string  `json:"watchHistory"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewPublicUser strips credential material from u. A nil user yields nil.
func NewPublicUser(u *User) *PublicUser {
	if u == nil {
		return nil
	}

	history := u.WatchHistory
	if history == nil {
		history = []string{}
	}

	return &PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Avatar:       u.AvatarURL,
		CoverImage:   u.CoverImageURL,
		WatchHistory: append([]string(nil), history...),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
