package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"planora-backend/internal/config"
	"planora-backend/internal/db"
	"planora-backend/internal/handler"
	"planora-backend/internal/logger"
	"planora-backend/internal/notify"
	"planora-backend/internal/observability/tracing"
	"planora-backend/internal/repository"
	"planora-backend/internal/server"
	"planora-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTelEndpoint, cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Error("failed to init tracing", "err", err)
		os.Exit(1)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Error("failed to run migrations", "err", err)
			os.Exit(1)
		}
	}

	pg, err := db.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	// repositories
	userRepo := repository.UserRepository{DB: pg}
	businessRepo := repository.BusinessRepository{DB: pg}
	assocRepo := repository.UserBusinessRepository{DB: pg}
	clientRepo := repository.ClientRepository{DB: pg}
	employeeRepo := repository.EmployeeRepository{DB: pg}
	classRepo := repository.ClassRepository{DB: pg}
	sessionRepo := repository.SessionRepository{DB: pg}
	notificationRepo := repository.NotificationRepository{DB: pg}

	// outbound email
	dispatcher := &notify.Dispatcher{Logger: log}
	if cfg.SMTP.Enabled() {
		dispatcher.Sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Password: cfg.SMTP.Password,
		})
	} else {
		log.Warn("SMTP not configured; emails will only be logged")
	}

	// services
	tokens := service.JWTIssuer{Secret: []byte(cfg.JWTSecret), TTL: cfg.AccessTokenTTL}
	gate := service.GateService{Tokens: tokens, Users: userRepo, Associations: assocRepo, Logger: log}
	authSvc := service.AuthService{
		Users:        userRepo,
		Associations: assocRepo,
		Businesses:   businessRepo,
		Employees:    employeeRepo,
		Tokens:       tokens,
		Logger:       log,
	}
	assocSvc := service.AssociationService{
		Tx:           pg,
		Users:        userRepo,
		Businesses:   businessRepo,
		Associations: assocRepo,
		Clients:      clientRepo,
		Notifier:     dispatcher,
		Logger:       log,
	}
	businessSvc := service.BusinessService{Businesses: businessRepo, Users: userRepo, Notifier: dispatcher, Logger: log}
	employeeSvc := service.EmployeeService{Employees: employeeRepo, Notifier: dispatcher, Logger: log}
	clientSvc := service.ClientService{
		Tx:           pg,
		Clients:      clientRepo,
		Associations: assocRepo,
		Sessions:     sessionRepo,
		Logger:       log,
	}
	sessionSvc := service.SessionService{
		Tx:            pg,
		Sessions:      sessionRepo,
		Classes:       classRepo,
		Clients:       clientRepo,
		Employees:     employeeRepo,
		Notifications: notificationRepo,
		Logger:        log,
	}
	catchUpSvc := service.CatchUpService{
		Tx:            pg,
		Clients:       clientRepo,
		Sessions:      sessionRepo,
		Classes:       classRepo,
		Notifications: notificationRepo,
		Logger:        log,
	}

	var resolver server.IdentityResolver = gate
	if cfg.DevAuthBypass {
		log.Warn("DEV_AUTH_BYPASS enabled: requests without a token run as the fixture super-admin")
		resolver = server.FixtureResolver{Next: gate, Identity: server.DevSuperAdmin}
	}

	router := server.NewRouter(cfg, log, resolver, server.Handlers{
		Health:        handler.HealthHandler{DB: pg},
		Docs:          handler.DocsHandler{},
		Auth:          handler.AuthHandler{Auth: authSvc, Associations: assocSvc},
		Businesses:    handler.BusinessHandler{Businesses: businessSvc, Associations: assocSvc},
		Clients:       handler.ClientHandler{Clients: clientSvc, CatchUps: catchUpSvc},
		Employees:     handler.EmployeeHandler{Service: employeeSvc},
		Classes:       handler.ClassHandler{Repo: classRepo},
		Sessions:      handler.SessionHandler{Sessions: sessionSvc},
		Notifications: handler.NotificationHandler{Repo: notificationRepo, CatchUps: catchUpSvc},
	})

	runErr := server.Start(ctx, cfg, router, log)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	dispatcher.Wait(drainCtx)
	if err := shutdownTracing(drainCtx); err != nil {
		log.Warn("tracing shutdown failed", "err", err)
	}

	if runErr != nil {
		log.Error("server error", "err", runErr)
		os.Exit(1)
	}
}
