package cli

import (
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newPipelineCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipeline",
		Aliases: []string{"pipelines", "p"},
		Short:   "Inspect and import pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(app),
		newPipelineShowCmd(app),
		newPipelineImportCmd(app),
		newPipelineSummaryCmd(app),
	)

	return cmd
}

func newPipelineListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.loadContext(cmd.Context())
			defer cancel()

			pipelines, err := app.API.ListPipelines(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPipelineList(pipelines))
			return nil
		},
	}
}

func newPipelineShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show PIPELINE",
		Short: "Show a pipeline's stages and custom fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.loadContext(cmd.Context())
			defer cancel()

			p, err := resolvePipeline(ctx, app, args[0])
			if err != nil {
				return err
			}
			defs, err := app.API.ListFieldDefinitions(ctx, p.ID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPipeline(p, defs))
			return nil
		},
	}
}

func newPipelineSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary PIPELINE",
		Short: "Show deal count, value and weighted value per stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.loadContext(cmd.Context())
			defer cancel()

			p, err := resolvePipeline(ctx, app, args[0])
			if err != nil {
				return err
			}
			sums, err := app.API.StageSummaries(ctx, p.ID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatSummary(p, sums))
			return nil
		},
	}
}

func newPipelineImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create a pipeline from a YAML definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Import == nil {
				return fmt.Errorf("import is only available against a local database")
			}
			stop := formatter.StartSpinner(cmd.ErrOrStderr(), app.interactive(), "Importing "+args[0])
			result, err := app.Import.ImportPipeline(cmd.Context(), args[0])
			stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Imported pipeline %s %s\n",
				formatter.StyleGreen.Render("✔"),
				formatter.Bold(result.Pipeline.Name),
				formatter.Dim(fmt.Sprintf("(%d stages, %d fields, %d opportunities)",
					result.StageCount, result.FieldCount, result.OpportunityCount)))
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("id: "+result.Pipeline.ID))
			return nil
		},
	}
}
