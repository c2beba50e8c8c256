package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"restore-chain/internal/manifest"
)

func createManifestCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect saved restore manifests",
		Long: `Read back the manifests saved by "resolve --save-manifest". The storage
provider, compression and encryption settings come from the manifest section
of the configuration and must match the ones used when saving.

Examples:
  # Newest manifests first
  restore-chain manifest list -d Sales --limit=10

  # Every device of a saved chain
  restore-chain manifest show 3f0c2a8e-6f43-4c1b-9d59-0b7e0c5e1d2a

  # Remove a manifest
  restore-chain manifest delete 3f0c2a8e-6f43-4c1b-9d59-0b7e0c5e1d2a`,
	}

	cmd.AddCommand(createManifestListCommand(opts))
	cmd.AddCommand(createManifestShowCommand(opts))
	cmd.AddCommand(createManifestDeleteCommand(opts))
	return cmd
}

func createManifestListCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved manifests, newest first",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringP("database", "d", "", "only list manifests of this database")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of manifests listed (0 = all)")

	cmd.RunE = opts.run(map[string]string{"database": "database"}, func(ctx context.Context, a *app, args []string) error {
		if limit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}
		store, err := manifest.NewStore(ctx, a.config.Manifest, a.logger)
		if err != nil {
			return err
		}
		summaries, err := store.List(ctx, manifest.Filter{Database: a.config.Database, MaxItems: limit})
		if err != nil {
			return err
		}
		return a.renderer.RenderManifestList(summaries)
	})
	return cmd
}

func createManifestShowCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved manifest",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = opts.run(nil, func(ctx context.Context, a *app, args []string) error {
		store, err := manifest.NewStore(ctx, a.config.Manifest, a.logger)
		if err != nil {
			return err
		}
		m, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return a.renderer.RenderManifest(m)
	})
	return cmd
}

func createManifestDeleteCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved manifest",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = opts.run(nil, func(ctx context.Context, a *app, args []string) error {
		store, err := manifest.NewStore(ctx, a.config.Manifest, a.logger)
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, args[0]); err != nil {
			return err
		}
		a.renderer.Success(fmt.Sprintf("Manifest %s deleted", args[0]))
		return nil
	})
	return cmd
}
