package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"google.golang.org/api/option"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/assistant"
	"github.com/example/taskplanner/internal/config"
	httptransport "github.com/example/taskplanner/internal/http"
	"github.com/example/taskplanner/internal/persistence"
	"github.com/example/taskplanner/internal/persistence/jsonfile"
	"github.com/example/taskplanner/internal/persistence/sqlstore"
	"github.com/example/taskplanner/internal/seed"
	"github.com/example/taskplanner/internal/sheets"
)

// app holds the services built from one configuration.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time

	store     persistence.Store
	closeFn   func() error
	hasher    *application.CodeHasher
	access    *application.AccessService
	records   *application.RecordService
	tasks     *application.TaskService
	chat      *application.ChatService
	search    *application.SearchService
	templates *application.TemplateService
}

// openStore opens the configured backend. Relational backends are migrated
// before use.
func openStore(ctx context.Context, cfg config.StorageConfig, now func() time.Time, logger *slog.Logger) (persistence.Store, func() error, error) {
	if cfg.Backend == config.BackendJSON {
		store, err := jsonfile.Open(cfg.DataDir, jsonfile.WithClock(now), jsonfile.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open json store: %w", err)
		}
		return store, func() error { return nil }, nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Backend)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.DSN, sqlstore.WithClock(now), sqlstore.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("apply migrations: %w", err), store.Close())
	}
	return store, store.Close, nil
}

// newApp opens storage and wires every service. The task sheet and the
// assistant are only attached when integrations is set; a sheet that cannot
// be opened leaves tasks on the record store.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, integrations bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger, now: time.Now}

	store, closeFn, err := openStore(ctx, cfg.Storage, a.now, logger)
	if err != nil {
		return nil, err
	}
	a.store, a.closeFn = store, closeFn

	a.hasher, err = application.NewCodeHasher(cfg.Auth.SecretKey, cfg.Auth.HashScheme)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	tokens := application.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.SessionTTL, a.now)

	var ai application.Assistant
	switch {
	case !integrations:
	case cfg.Assistant.APIKey != "":
		ai = assistant.New(assistant.Config{
			APIKey:          cfg.Assistant.APIKey,
			BaseURL:         cfg.Assistant.BaseURL,
			Model:           cfg.Assistant.Model,
			Timeout:         cfg.Assistant.Timeout,
			ChatMaxTokens:   cfg.Assistant.ChatMaxTokens,
			SearchMaxTokens: cfg.Assistant.SearchMaxTokens,
		}, nil, logger)
	default:
		logger.WarnContext(ctx, "assistant api key not configured; chat and ai search are disabled")
	}

	var external application.TaskSource
	if integrations && cfg.Sheets.Enabled {
		source, serr := openSheet(ctx, cfg.Sheets, a.now, logger)
		if serr != nil {
			logger.WarnContext(ctx, "could not open task sheet; tasks fall back to the record store", "error", serr)
		} else {
			external = source
		}
	}

	a.records = application.NewRecordService(store, a.now, logger)
	a.access = application.NewAccessService(store, a.hasher, tokens, logger)
	a.tasks = application.NewTaskService(a.records, application.NewStoreTaskSource(store, a.now), external, cfg.Sheets.Timeout, logger)
	a.chat = application.NewChatService(store, ai, logger)
	a.search = application.NewSearchService(store, ai, logger)
	a.templates = application.NewTemplateService(a.records, logger)
	return a, nil
}

func openSheet(ctx context.Context, cfg config.SheetsConfig, now func() time.Time, logger *slog.Logger) (*sheets.Source, error) {
	var clientOpts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	// The client keeps ctx for credential refreshes, so it must outlive this call.
	return sheets.Open(ctx, sheets.Config{
		SpreadsheetID: cfg.SpreadsheetID,
		Range:         cfg.Range,
	}, clientOpts, sheets.WithClock(now), sheets.WithLogger(logger))
}

// seed applies the bundled defaults, overridden by file when set.
func (a *app) seed(ctx context.Context, file string) (seed.Report, error) {
	data, err := seed.Load(file)
	if err != nil {
		return seed.Report{}, err
	}
	return seed.NewSeeder(a.store, a.access, a.logger).Apply(ctx, data)
}

func (a *app) router() *echo.Echo {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:    a.access,
		Auth:        httptransport.NewAuthHandler(a.access, a.logger),
		Records:     httptransport.NewRecordHandler(a.records, a.logger),
		Tasks:       httptransport.NewTaskHandler(a.tasks, a.logger),
		Templates:   httptransport.NewTemplateHandler(a.templates, a.logger),
		Admin:       httptransport.NewAdminHandler(a.access, a.logger),
		Search:      httptransport.NewSearchHandler(a.search, a.logger),
		Chat:        httptransport.NewChatHandler(a.chat, a.logger),
		CORSOrigins: a.cfg.CORS.Origins,
		Logger:      a.logger,
	})
}

// Close releases the store.
func (a *app) Close() error {
	if a == nil || a.closeFn == nil {
		return nil
	}
	err := a.closeFn()
	a.closeFn = nil
	return err
}
