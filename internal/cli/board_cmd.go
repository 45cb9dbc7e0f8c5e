package cli

import (
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/board"
	"github.com/alexanderramin/pipedeck/internal/cli/formatter"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newBoardCmd(app *App) *cobra.Command {
	var static bool

	cmd := &cobra.Command{
		Use:   "board PIPELINE",
		Short: "Open the kanban board of a pipeline",
		Long: `Open the kanban board of a pipeline.

In a terminal this starts the interactive board. With --static, or when
stdout is not a terminal, the first page of every column is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := resolvePipeline(ctx, app, args[0])
			if err != nil {
				return err
			}

			if static || !app.interactive() {
				b := board.New(app.API,
					board.WithLogger(app.logger()),
					board.WithPageSize(app.Config.PageSize),
					board.WithLoadTimeout(app.Config.LoadTimeout()),
				)
				if err := b.Load(ctx, p.ID); err != nil {
					return fmt.Errorf("loading board: %w", err)
				}
				defs, err := app.API.ListFieldDefinitions(ctx, p.ID)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatBoard(b.Pipeline(), b.Columns(), defs, app.now()))
				return nil
			}

			// Log lines on stderr would tear the alt screen.
			tui := *app
			tui.Logger = nil
			model := newBoardModel(ctx, &tui, p.ID)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&static, "static", false, "Print the board instead of opening it")
	return cmd
}
