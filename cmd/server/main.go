package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supplies-portal/internal/auth"
	"supplies-portal/internal/config"
	"supplies-portal/internal/database"
	"supplies-portal/internal/handlers"
	"supplies-portal/internal/middleware"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/repository"
	"supplies-portal/internal/services"
	"supplies-portal/internal/web"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
	})

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", logger.Fields{"err": err})
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	applied, err := db.RunMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info("migrations applied", logger.Fields{"migrations": applied})
	}

	secrets, err := config.LoadSecrets(cfg.Store.SecretsPath, cfg.Store.Backend == config.BackendSheets)
	if err != nil {
		return err
	}

	store, err := services.NewStore(cfg, secrets, db, log)
	if err != nil {
		return err
	}

	if cfg.Store.Backend == config.BackendDatabase {
		created, err := services.InitTemplates(ctx, store, repository.NewWorksheetRepository(db))
		if err != nil {
			return fmt.Errorf("failed to create template worksheets: %w", err)
		}
		if len(created) > 0 {
			log.Info("template worksheets created", logger.Fields{"worksheets": created})
		}
	}

	if err := web.InitTemplates(); err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}

	auditRepo := repository.NewAuditRepository(db)
	jwtManager := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionDuration)
	csrfProtection := middleware.NewCSRFProtection(cfg.Security.CSRFSecret)
	defer csrfProtection.Stop()
	rateLimiter := middleware.NewRateLimiter(cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow)
	defer rateLimiter.Stop()
	loginRateLimiter := middleware.NewRateLimiter(cfg.Security.LoginRateLimit, cfg.Security.LoginRateWindow)
	defer loginRateLimiter.Stop()

	portal := &handlers.Portal{
		Service: services.NewPortalService(store, auditRepo, cfg.Forecast, secrets.GoogleSheets.Worksheet, log.With(logger.Fields{"component": "portal"})),
		CSRF:    csrfProtection,
		Log:     log,
	}
	session := &handlers.Session{
		Credentials:  auth.NewCredentialStore(credentials(secrets)),
		JWT:          jwtManager,
		Audit:        auditRepo,
		SecureCookie: cfg.IsProduction(),
		Log:          log.With(logger.Fields{"component": "auth"}),
	}

	r := newRouter(routerDeps{
		cfg:              cfg,
		log:              log,
		db:               db,
		portal:           portal,
		session:          session,
		authMiddleware:   middleware.NewAuthMiddleware(jwtManager),
		csrf:             csrfProtection,
		rateLimiter:      rateLimiter,
		loginRateLimiter: loginRateLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", logger.Fields{
			"addr":    srv.Addr,
			"env":     cfg.Server.Environment,
			"backend": cfg.Store.Backend,
			"users":   len(secrets.Users),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type routerDeps struct {
	cfg              *config.Config
	log              logger.Logger
	db               handlers.Pinger
	portal           *handlers.Portal
	session          *handlers.Session
	authMiddleware   *middleware.AuthMiddleware
	csrf             *middleware.CSRFProtection
	rateLimiter      *middleware.RateLimiter
	loginRateLimiter *middleware.RateLimiter
}

func newRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(d.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders(d.cfg.Security.CSPEnabled, d.cfg.Security.HSTSEnabled))

	allowedOrigins := d.cfg.Security.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes (no authentication required)
	r.Group(func(r chi.Router) {
		r.Use(d.rateLimiter.Middleware)

		r.Get("/health", handlers.HandleHealth(d.db, d.cfg.Store.Backend))
		r.Get("/login", handlers.HandleLoginPage(d.authMiddleware, d.log))
		r.With(d.loginRateLimiter.Middleware).Post("/login", handlers.HandleLoginForm(d.session))
		r.With(d.loginRateLimiter.Middleware).Post("/api/auth/login", handlers.HandleLogin(d.session))
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(d.authMiddleware.RequireAuth)
		r.Use(d.rateLimiter.Middleware)
		r.Use(d.csrf.Middleware)

		r.Route("/api", func(r chi.Router) {
			r.Get("/csrf-token", handlers.HandleGetCSRFToken(d.csrf))

			r.Get("/auth/me", handlers.HandleGetCurrentUser())
			r.Post("/auth/logout", handlers.HandleLogout(d.session))
			r.Post("/auth/refresh", handlers.HandleRefreshToken(d.session))

			r.Get("/worksheets", handlers.HandleListWorksheets(d.portal))
			r.Get("/worksheets/{name}", handlers.HandleGetWorksheet(d.portal))
			r.Put("/worksheets/{name}", handlers.HandleSaveWorksheet(d.portal))

			r.Get("/forecast", handlers.HandleGetForecast(d.portal))
			r.Get("/forecast/export.csv", handlers.HandleExportCSV(d.portal))
			r.Get("/forecast/export.pdf", handlers.HandleExportPDF(d.portal))
		})
	})

	// Protected web pages
	r.Group(func(r chi.Router) {
		r.Use(d.authMiddleware.RequireAuthPage)
		r.Use(d.rateLimiter.Middleware)
		r.Use(d.csrf.Middleware)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/forecast", http.StatusSeeOther)
		})
		r.Get("/forecast", handlers.HandleForecastPage(d.portal))
		r.Get("/worksheets/{name}", handlers.HandleWorksheetPage(d.portal))
		r.Post("/worksheets/{name}", handlers.HandleSaveWorksheetForm(d.portal))
		r.Post("/logout", handlers.HandleLogoutPage(d.session))
	})

	return r
}

// credentials converts the secrets file users into the credential store's
// form. Passwords in the secrets file are bcrypt hashes.
func credentials(secrets *config.Secrets) map[string]auth.Credential {
	creds := make(map[string]auth.Credential, len(secrets.Users))
	for username, user := range secrets.Users {
		creds[username] = auth.Credential{Name: user.Name, PasswordHash: user.Password}
	}
	return creds
}
