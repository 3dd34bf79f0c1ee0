package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/api"
	"github.com/rbigger/aiamp/internal/app"
	"github.com/rbigger/aiamp/internal/app/maintenance"
	iauth "github.com/rbigger/aiamp/internal/auth"
	"github.com/rbigger/aiamp/internal/database"
	"github.com/rbigger/aiamp/internal/monitoring"
	"github.com/rbigger/aiamp/internal/security"
	"github.com/rbigger/aiamp/internal/services"
	"github.com/rbigger/aiamp/pkg/logger"
	"github.com/rbigger/aiamp/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("aiamp-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	if err := ensureSecretsPresent(cfg); err != nil {
		return err
	}

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp disabled; invite and reset emails will not be delivered")
	}

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionSvc, err := iauth.NewSessionService(db, jwtService, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	accountSvc, err := services.NewAccountService(db)
	if err != nil {
		return fmt.Errorf("initialise account service: %w", err)
	}

	inviteSvc, err := services.NewInviteService(db, mailer,
		services.WithInviteBaseURL(cfg.Server.BaseURL),
		services.WithInviteExpiry(cfg.Invites.TTL),
	)
	if err != nil {
		return fmt.Errorf("initialise invite service: %w", err)
	}

	resetSvc, err := services.NewPasswordResetService(db, mailer,
		services.WithResetBaseURL(cfg.Server.BaseURL),
		services.WithResetTTL(cfg.Auth.ResetTokenTTL()),
	)
	if err != nil {
		return fmt.Errorf("initialise password reset service: %w", err)
	}

	approvalSvc, err := services.NewApprovalService(db, resetSvc)
	if err != nil {
		return fmt.Errorf("initialise approval service: %w", err)
	}

	keySvc, err := services.NewAPIKeyService(db)
	if err != nil {
		return fmt.Errorf("initialise api key service: %w", err)
	}

	documentSvc, err := services.NewDocumentService(db)
	if err != nil {
		return fmt.Errorf("initialise document service: %w", err)
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}

	cleaner := maintenance.NewCleaner(sessionSvc, inviteSvc, resetSvc, auditSvc,
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule),
		maintenance.WithTokenSchedule(cfg.Maintenance.TokenSchedule),
		maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
	)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	securityAudit := security.NewAuditService(db, cfg)

	healthChecker := monitoring.NewChecker(
		monitoring.DatabaseProbe(db),
		monitoring.MailProbe(cfg.Email.SMTPSettings()),
	)

	router, err := api.NewRouter(cfg, api.Services{
		Accounts:  accountSvc,
		Sessions:  sessionSvc,
		JWT:       jwtService,
		Invites:   inviteSvc,
		Approvals: approvalSvc,
		Resets:    resetSvc,
		Keys:      keySvc,
		Documents: documentSvc,
		Audit:     auditSvc,
		Health:    healthChecker,
		Security:  securityAudit,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	return nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
