package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alexanderramin/pipedeck/internal/cli"
	"github.com/alexanderramin/pipedeck/internal/config"
	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/alexanderramin/pipedeck/internal/remote"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"github.com/alexanderramin/pipedeck/internal/service"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// PIPEDECK_CONFIG names the YAML file; PIPEDECK_* variables override it.
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	app := &cli.App{
		Config: cfg,
		Logger: logger,
	}

	// Detect interactive terminal for the board.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	if cfg.Remote.URL != "" {
		// Remote mode: only the PipelineAPI is available.
		var observer remote.Observer = remote.NoopObserver{}
		if cfg.Remote.LogCalls {
			observer = remote.NewLogObserver(logger)
		}
		app.API = remote.New(remote.Config{
			BaseURL:    cfg.Remote.URL,
			Timeout:    cfg.RemoteTimeout(),
			MaxRetries: cfg.Remote.MaxRetries,
		}, observer)
		return cli.NewRootCmd(app).Execute()
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories
	pipelineRepo := repository.NewSQLitePipelineRepo(database)
	fieldRepo := repository.NewSQLiteFieldRepo(database)
	oppRepo := repository.NewSQLiteOpportunityRepo(database)
	transitionRepo := repository.NewSQLiteTransitionRepo(database)

	// Wire unit of work for transactional operations
	uow := db.NewSQLiteUnitOfWork(database, db.WithUoWLogger(logger))

	var observers []service.UseCaseObserver
	if cfg.LogUseCases {
		observers = append(observers, service.NewLogUseCaseObserver(logger))
	}
	opts := []service.EngineOption{
		service.WithValidator(fieldschema.Validator{StrictMultiselect: cfg.StrictMultiselect}),
	}
	for _, o := range observers {
		opts = append(opts, service.WithObserver(o))
	}

	engine := service.NewEngine(pipelineRepo, fieldRepo, oppRepo, transitionRepo, uow, opts...)
	app.API = engine
	app.Migrations = engine
	app.Import = service.NewImportService(uow, observers...)
	app.Suggestions = service.NewSuggestionService(oppRepo, service.NoopRecommender{}, observers...)

	return cli.NewRootCmd(app).Execute()
}
