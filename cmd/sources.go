package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"restore-chain/internal/catalog"
	"restore-chain/internal/chain"
	"restore-chain/internal/database"
)

// sourceBindings are the flags shared by commands that read backup history
var sourceBindings = map[string]string{
	"database":        "database",
	"catalog-file":    "catalog_file",
	"allow-partial":   "allow_partial",
	"max-concurrency": "max_concurrency",
	"from-checkpoint": "from_checkpoint",
}

// openSource returns the configured catalog source and a function releasing
// its connections. A catalog file takes precedence over the replicas.
func openSource(ctx context.Context, a *app) (catalog.Source, func(), error) {
	cfg := a.config
	if err := cfg.ValidateSources(); err != nil {
		return nil, nil, err
	}

	if cfg.UseCatalogFile() {
		a.logger.WithField("catalog_file", cfg.CatalogFile).Debug("Reading backup history from catalog file")
		return catalog.NewFileSource(cfg.CatalogFile), func() {}, nil
	}

	service := database.NewService(
		database.WithLogger(a.logger),
		database.WithRetry(cfg.Retry),
	)
	manager := database.NewConnectionManager(service)
	if err := manager.ConnectAll(ctx, cfg.Replicas, cfg.AllowPartial); err != nil {
		return nil, nil, err
	}

	replicas := manager.Replicas()
	sources := make([]catalog.Source, 0, len(replicas))
	for _, r := range replicas {
		sqlSource := catalog.NewSQLSource(r.Name, r.DB, a.logger)
		if cfg.FromCheckpoint {
			sources = append(sources, catalog.NewCheckpointSource(sqlSource))
			continue
		}
		sources = append(sources, sqlSource)
	}

	set := catalog.NewReplicaSet(sources,
		catalog.WithRetryConfig(cfg.Retry),
		catalog.WithLogger(a.logger),
		catalog.WithMaxConcurrency(cfg.MaxConcurrency),
		catalog.WithAllowPartial(cfg.AllowPartial),
	)

	release := func() {
		if err := manager.Close(); err != nil {
			a.logger.WithField("error", err.Error()).Warn("Failed to close replica connections")
		}
	}
	return set, release, nil
}

// fetchRecords reads the backup history of the configured database
func fetchRecords(ctx context.Context, a *app, source catalog.Source) (records []chain.Record, err error) {
	done := a.logger.LogOperationStart("fetch_catalog", map[string]interface{}{
		"source":   source.Name(),
		"database": a.config.Database,
	})
	defer func() { done(err) }()

	return source.RecentBackups(ctx, a.config.Database)
}

// addSourceFlags defines the flags listed in sourceBindings
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("database", "d", "", "database whose backup history is read")
	cmd.Flags().String("catalog-file", "", "read backup history from an exported catalog file instead of the replicas")
	cmd.Flags().Bool("allow-partial", false, "continue when some replicas cannot be reached")
	cmd.Flags().Int("max-concurrency", 0, "maximum replicas queried at once (0 = all)")
	cmd.Flags().Bool("from-checkpoint", false, "read only the backups based on the newest full backup (ignored with --catalog-file)")
}
