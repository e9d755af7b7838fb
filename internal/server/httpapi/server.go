// Package httpapi exposes the account services over HTTP under /api/v1.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounthub/internal/logging"
	"github.com/dmitrijs2005/accounthub/internal/server/config"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	"github.com/dmitrijs2005/accounthub/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Sessions interface {
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error)
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address         string
	corsOrigins     []string
	uploadDir       string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	shutdownTimeout time.Duration

	logger   logging.Logger
	sessions Sessions
	accounts Accounts
	guard    Authenticator
	db       Pinger

	registry *prometheus.Registry
	metrics  *Metrics
}

func NewServer(cfg *config.Config, l logging.Logger, sessions Sessions, accounts Accounts, guard Authenticator, db Pinger) *Server {
	registry := prometheus.NewRegistry()

	return &Server{
		address:         cfg.HTTPAddr,
		corsOrigins:     splitOrigins(cfg.CORSOrigin),
		uploadDir:       cfg.UploadTempDir,
		accessTTL:       cfg.AccessTokenTTL,
		refreshTTL:      cfg.RefreshTokenTTL,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          l.With("module", "http_server"),
		sessions:        sessions,
		accounts:        accounts,
		guard:           guard,
		db:              db,
		registry:        registry,
		metrics:         NewMetrics(registry),
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, p := range strings.Split(s, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Handler builds the router with all middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh-token", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/logout", s.handleLogout)
			r.Post("/change-password", s.handleChangePassword)
			r.Get("/current-user", s.handleCurrentUser)
			r.Patch("/account", s.handleUpdateAccount)
			r.Patch("/avatar", s.handleUpdateAvatar)
			r.Patch("/cover-image", s.handleUpdateCoverImage)
		})
	})

	return r
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errCh <- srv.Serve(listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
