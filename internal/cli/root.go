package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/config"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/alexanderramin/pipedeck/internal/form"
	"github.com/spf13/cobra"
)

// App holds the backends CLI commands run against. API is either the local
// engine or a remote client; the local-only use cases are nil in remote mode.
type App struct {
	API         app.PipelineAPI
	Migrations  app.FieldMigrationUseCase
	Import      app.ImportPipelineUseCase
	Suggestions app.SuggestionUseCase

	Config config.Config
	Logger *slog.Logger

	// IsInteractive reports whether stdin/stdout are a terminal. The board
	// falls back to a static rendering when it returns false.
	IsInteractive func() bool

	// Now is the clock used for days-in-stage and relative dates.
	Now func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// formOptions configures form controllers the same way the engine validates.
func (a *App) formOptions() []form.Option {
	return []form.Option{
		form.WithVariantName(a.Config.VariantPipelineName),
		form.WithValidator(fieldschema.Validator{StrictMultiselect: a.Config.StrictMultiselect}),
	}
}

// loadContext bounds a single command's backend calls by the load timeout.
func (a *App) loadContext(parent context.Context) (context.Context, context.CancelFunc) {
	if d := a.Config.LoadTimeout(); d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}

// NewRootCmd creates the top-level "pipedeck" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "pipedeck",
		Short:         "Customizable sales pipelines with a kanban board",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newPipelineCmd(app),
		newFieldCmd(app),
		newOppCmd(app),
		newBoardCmd(app),
		newServeCmd(app),
	)

	return root
}
