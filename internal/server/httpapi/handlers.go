package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/server/auth"
	"github.com/dmitrijs2005/accounthub/internal/server/services"
)

const (
	fieldAvatar     = "avatar"
	fieldCoverImage = "coverImage"

	msgInvalidBody = "Invalid request body"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type accountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User any `json:"user"`
	tokensResponse
}

// decodeJSON reads a JSON body into dst. An empty body is allowed when
// optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return &common.APIError{Kind: common.KindValidation, Message: msgInvalidBody, Err: err}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	files, err := s.stageUploads(r, fieldAvatar, fieldCoverImage)
	defer files.cleanup()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), services.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		Username:       r.FormValue("username"),
		Password:       r.FormValue("password"),
		AvatarPath:     files[fieldAvatar],
		CoverImagePath: files[fieldCoverImage],
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "user_id", user.ID)
	s.respond(w, http.StatusCreated, user, "User registered successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.sessions.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	s.metrics.authEvent("login", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setAuthCookies(w, res.AccessToken, res.RefreshToken)
	s.respond(w, http.StatusOK, loginResponse{
		User:           res.User,
		tokensResponse: tokensResponse{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken},
	}, "User logged in successfully")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	err := s.sessions.Logout(r.Context(), id.UserID)
	s.metrics.authEvent("logout", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	clearAuthCookies(w)
	s.respond(w, http.StatusOK, nil, "User logged out")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		token = c.Value
	}
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req, true); err != nil {
			s.fail(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := s.sessions.Refresh(r.Context(), token)
	s.metrics.authEvent("refresh", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setAuthCookies(w, pair.AccessToken, pair.RefreshToken)
	s.respond(w, http.StatusOK, tokensResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, "Access token refreshed")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	if err := s.accounts.ChangePassword(r.Context(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, nil, "Password changed successfully")
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	user, err := s.accounts.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, user, "User fetched successfully")
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	user, err := s.accounts.UpdateAccountDetails(r.Context(), id.UserID, req.FullName, req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, user, "Account details updated successfully")
}

func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	files, err := s.stageUploads(r, fieldAvatar)
	defer files.cleanup()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	user, err := s.accounts.UpdateAvatar(r.Context(), id.UserID, files[fieldAvatar])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, user, "Avatar image updated successfully")
}

func (s *Server) handleUpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	files, err := s.stageUploads(r, fieldCoverImage)
	defer files.cleanup()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	user, err := s.accounts.UpdateCoverImage(r.Context(), id.UserID, files[fieldCoverImage])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, user, "Cover image updated successfully")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "health check failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
