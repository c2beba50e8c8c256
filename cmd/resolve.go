package cmd

import (
	"context"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"restore-chain/internal/chain"
	"restore-chain/internal/display"
	"restore-chain/internal/manifest"
)

var resolveBindings = map[string]string{
	"applied-lsn":     "resolve.applied_lsn",
	"lower-bound-lsn": "resolve.lower_bound_lsn",
	"adjacency":       "resolve.adjacency",
	"save-manifest":   "resolve.save_manifest",
	"device-root":     "resolve.device_root",
}

func createResolveCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the ordered restore chain of a database",
		Long: `Read the backup history of a database and print the backups to restore, in
order: the most recent full backup, the latest differential based on it, then
every log backup continuing the LSN sequence.

Rows whose device is not a file path or URL are dropped, the same backup seen
on several replicas is kept once, and the stripes of a backup are grouped into
one step. Resolution stops at the first gap in the log sequence.

With --applied-lsn the steps already restored on a database left in the
restoring state are removed; nothing left to restore is an error.

Examples:
  # Restore chain of Sales from the configured replicas
  restore-chain resolve -d Sales

  # Only the steps after what a secondary already applied
  restore-chain resolve -d Sales --applied-lsn=98000000012300001

  # Ignore backups ending at or before an LSN and save a manifest
  restore-chain resolve -d Sales --lower-bound-lsn=97000000000500001 --save-manifest

  # Accept a first log that brackets the differential instead of starting at its end
  restore-chain resolve -d Sales --adjacency=bracketing --format=json

  # Backup files were copied to another share before the restore
  restore-chain resolve -d Sales --device-root='\\dr-nas\restore\Sales'`,
		Args: cobra.NoArgs,
	}

	addSourceFlags(cmd)
	cmd.Flags().String("applied-lsn", "", "last LSN already restored; earlier steps are skipped")
	cmd.Flags().String("lower-bound-lsn", "", "ignore backups whose last LSN is at or below this LSN")
	cmd.Flags().String("adjacency", "exact", "how a log must continue the chain (exact, bracketing)")
	cmd.Flags().String("device-root", "", "read every device from this directory or URL, keeping its file name")
	cmd.Flags().Bool("save-manifest", false, "store the resolved chain as a manifest")

	cmd.RunE = opts.run(mergeBindings(sourceBindings, resolveBindings), runResolve)
	return cmd
}

func runResolve(ctx context.Context, a *app, args []string) error {
	cfg := a.config

	resolveOpts, err := cfg.Resolve.Options()
	if err != nil {
		return err
	}
	applied, hasApplied, err := cfg.Resolve.Applied()
	if err != nil {
		return err
	}

	source, release, err := openSource(ctx, a)
	if err != nil {
		return err
	}
	defer release()

	records, err := fetchRecords(ctx, a, source)
	if err != nil {
		return err
	}

	start := time.Now()
	c, stats, err := chain.Build(records, resolveOpts...)
	a.logger.LogRecordFiltering(cfg.Database, stats.Input, stats.Invalid, stats.Duplicates, stats.Sets)
	if err != nil {
		a.logger.LogChainResolution(cfg.Database, 0, "", time.Since(start), err)
		return err
	}
	a.logger.LogChainResolution(cfg.Database, c.Len(), c.LastLSN().String(), time.Since(start), nil)

	if hasApplied {
		c, err = chain.TrimApplied(c, applied)
		if err != nil {
			return err
		}
		stats.ChainSize = c.Len()
	}

	if cfg.Resolve.DeviceRoot != "" {
		c, err = chain.Relocate(c, cfg.Resolve.DeviceRoot)
		if err != nil {
			return err
		}
	}

	view := display.NewChainView(c, stats)
	if hasApplied {
		view.AppliedLSN = applied.String()
	}

	if cfg.Resolve.SaveManifest {
		summary, err := saveManifest(ctx, a, c, applied, hasApplied)
		if err != nil {
			return err
		}
		view.ManifestID = summary.ID
		view.Location = summary.Location
	}

	return a.renderer.RenderChain(view)
}

func saveManifest(ctx context.Context, a *app, c chain.Chain, applied chain.LSN, hasApplied bool) (*manifest.Summary, error) {
	store, err := manifest.NewStore(ctx, a.config.Manifest, a.logger)
	if err != nil {
		return nil, err
	}

	opts := []manifest.Option{manifest.WithCreatedBy(currentUser())}
	if hasApplied {
		opts = append(opts, manifest.WithAppliedLSN(applied))
	}
	m, err := manifest.FromChain(c, opts...)
	if err != nil {
		return nil, err
	}
	return store.Put(ctx, m)
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}

func mergeBindings(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for flag, key := range m {
			out[flag] = key
		}
	}
	return out
}
