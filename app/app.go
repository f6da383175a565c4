// ABOUTME: Wires configuration, storage, and calendar services into one application value
// ABOUTME: Shared by the CLI, the HTTP API, and the MCP server
package app

import (
	"database/sql"
	"log/slog"

	"github.com/harperreed/studypilot/config"
	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/sync"
	"golang.org/x/oauth2"
)

// App holds the services every entry point needs.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Logger *slog.Logger

	Users *db.UsersRepository
	Study *db.StudyRepository

	OAuth       *oauth2.Config
	Credentials *sync.CredentialStore
	Gateway     sync.Gateway
	Events      *sync.EventManager
	Reconciler  *sync.Reconciler
	Scheduler   *sync.Scheduler
}

// New builds an App talking to Google Calendar.
func New(cfg *config.Config, database *sql.DB, logger *slog.Logger) *App {
	a := newBase(cfg, database, logger)
	a.Gateway = sync.NewGoogleGateway(a.Credentials, sync.GatewayConfig{
		CalendarID: cfg.CalendarID,
		Endpoint:   cfg.CalendarEndpoint,
		Retry:      sync.RetryPolicyFromConfig(cfg),
	}, logger)
	a.wire()
	return a
}

// NewWithGateway builds an App around an existing gateway.
func NewWithGateway(cfg *config.Config, database *sql.DB, logger *slog.Logger, gateway sync.Gateway) *App {
	a := newBase(cfg, database, logger)
	a.Gateway = gateway
	a.wire()
	return a
}

func newBase(cfg *config.Config, database *sql.DB, logger *slog.Logger) *App {
	users := db.NewUsersRepository(database)
	oauthConfig := sync.NewOAuthConfig(cfg)

	return &App{
		Config:      cfg,
		DB:          database,
		Logger:      logger,
		Users:       users,
		Study:       db.NewStudyRepository(database),
		OAuth:       oauthConfig,
		Credentials: sync.NewCredentialStore(users, sync.NewOAuthRefresher(oauthConfig), logger),
	}
}

func (a *App) wire() {
	a.Events = sync.NewEventManager(a.Gateway, a.Study, a.Config.ReminderMinutes, a.Logger)
	a.Reconciler = sync.NewReconciler(a.Gateway, a.Study, a.DB, a.Logger).
		WithWindow(a.Config.ReconcilePastMonths, a.Config.ReconcileFutureMonths)
	a.Scheduler = sync.NewScheduler(a.Gateway, a.Events, a.Study, a.Users, a.Logger)
}
