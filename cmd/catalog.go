package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"restore-chain/internal/catalog"
	"restore-chain/internal/chain"
	"restore-chain/internal/display"
)

func createCatalogCommand(opts *globalOptions) *cobra.Command {
	var exportPath string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the raw backup history with filtering annotations",
		Long: `List every backup row read for a database, merged across replicas, before a
chain is resolved. Each row is marked ok, invalid_path (the device is neither
a file path nor a URL) or duplicate (the same backup was already read from
another replica), followed by how many backup sets the remaining rows form.

The merged rows can be written to a catalog file with --export and read back
later with --catalog-file, e.g. to resolve a chain away from the replicas.

Examples:
  # Inspect the backup history of Sales
  restore-chain catalog -d Sales

  # Save it for offline resolution
  restore-chain catalog -d Sales --export=sales-catalog.yaml
  restore-chain resolve -d Sales --catalog-file=sales-catalog.yaml`,
		Args: cobra.NoArgs,
	}

	addSourceFlags(cmd)
	cmd.Flags().StringVar(&exportPath, "export", "", "write the merged rows to a catalog file (.yaml, .yml or .json)")

	cmd.RunE = opts.run(sourceBindings, func(ctx context.Context, a *app, args []string) error {
		return runCatalog(ctx, a, exportPath)
	})
	return cmd
}

func runCatalog(ctx context.Context, a *app, exportPath string) error {
	source, release, err := openSource(ctx, a)
	if err != nil {
		return err
	}
	defer release()

	records, err := fetchRecords(ctx, a, source)
	if err != nil {
		return err
	}

	view := display.NewCatalogView(a.config.Database, catalog.Servers(records), records)
	a.logger.LogRecordFiltering(a.config.Database, view.Stats.Total, view.Stats.Invalid, view.Stats.Duplicates, view.Stats.Sets)

	if exportPath != "" {
		if err := exportCatalog(exportPath, records); err != nil {
			return err
		}
		defer a.renderer.Success(fmt.Sprintf("Exported %d rows to %s", len(records), exportPath))
	}

	return a.renderer.RenderCatalog(view)
}

func exportCatalog(path string, records []chain.Record) error {
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	if err := catalog.Export(file, format, records); err != nil {
		file.Close()
		return fmt.Errorf("failed to export catalog: %w", err)
	}
	return file.Close()
}
