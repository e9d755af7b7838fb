package httpapi

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	"github.com/dmitrijs2005/accounthub/internal/server/services"
)

var alice = &models.PublicUser{ID: "u-1", Username: "alice", Email: "a@x.com", FullName: "Alice A", WatchHistory: []string{}}

type fakeSessions struct {
	mu         sync.Mutex
	loginIn    services.LoginInput
	refreshArg string
	logoutArg  string
	loginErr   error
}

func (f *fakeSessions) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginIn = in
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if in.Password != "secret123" {
		return nil, common.Unauthorized("Invalid user credentials", nil)
	}
	return &services.LoginResult{
		User:      alice,
		TokenPair: services.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}, nil
}

func (f *fakeSessions) Refresh(ctx context.Context, token string) (*services.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshArg = token
	switch token {
	case "":
		return nil, common.Unauthorized("Unauthorized request", nil)
	case "refresh-1":
		return &services.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
	default:
		return nil, common.Unauthorized("Refresh token is expired or used", nil)
	}
}

func (f *fakeSessions) Logout(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutArg = userID
	return nil
}

type fakeAccounts struct {
	mu       sync.Mutex
	register services.RegisterInput
	// content of staged files observed during the call, keyed by path
	seen      map[string]string
	lastPath  string
	currentID string
	err       error
	panicMsg  string
}

func (f *fakeAccounts) observe(path string) {
	if path == "" {
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if f.seen == nil {
		f.seen = map[string]string{}
	}
	f.seen[path] = string(b)
}

func (f *fakeAccounts) Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.register = in
	f.observe(in.AvatarPath)
	f.observe(in.CoverImagePath)
	if f.err != nil {
		return nil, f.err
	}
	if in.AvatarPath == "" {
		return nil, common.Validation("Avatar file is required")
	}
	return alice, nil
}

func (f *fakeAccounts) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword != "secret123" {
		return common.Validation("Invalid old password")
	}
	return nil
}

func (f *fakeAccounts) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error) {
	if fullName == "" || email == "" {
		return nil, common.Validation("All fields are required")
	}
	u := *alice
	u.FullName, u.Email = fullName, email
	return &u, nil
}

func (f *fakeAccounts) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPath = localPath
	f.observe(localPath)
	if localPath == "" {
		return nil, common.Validation("Avatar file is missing")
	}
	u := *alice
	u.Avatar = "https://cdn.test/new.png"
	return &u, nil
}

func (f *fakeAccounts) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPath = localPath
	if localPath == "" {
		return nil, common.Validation("Cover image file is missing")
	}
	u := *alice
	u.CoverImage = "https://cdn.test/cover.png"
	return &u, nil
}

func (f *fakeAccounts) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	f.mu.Lock()
	f.currentID = userID
	err, panicMsg := f.err, f.panicMsg
	f.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	return alice, nil
}

// fakeGuard accepts the single token "good".
type fakeGuard struct{}

func (fakeGuard) Authenticate(ctx context.Context, token string) (*models.PublicUser, error) {
	switch token {
	case "":
		return nil, common.Unauthorized("Unauthorized request", nil)
	case "good":
		return alice, nil
	default:
		return nil, common.Unauthorized("Invalid access token", common.ErrInvalidToken)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

var errDBExploded = errors.New("pq: db exploded at 10.0.0.5")
