package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"restore-chain/internal/config"
	apperrors "restore-chain/internal/errors"
)

// globalOptions holds the persistent flags that are not plain config keys
type globalOptions struct {
	configFile string
	verbose    bool
	debug      bool
	quiet      bool
	noColor    bool
}

// globalBindings maps persistent flags to config keys
var globalBindings = map[string]string{
	"log-file":        "logging.file",
	"log-format":      "logging.format",
	"theme":           "display.theme",
	"format":          "display.output_format",
	"table-style":     "display.table_style",
	"max-table-width": "display.max_table_width",
	"show-devices":    "display.show_devices",
	"timeout":         "timeout",
}

// errReported marks an error that was already rendered to the user
var errReported = errors.New("error already reported")

// newRootCommand builds the command tree
func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "restore-chain",
		Short: "Resolve the SQL Server backups needed to restore a database",
		Long: `restore-chain reads the backup history of a SQL Server database from msdb on
one or more replicas (or from an exported catalog file) and works out the
ordered list of full, differential and log backups that restores it to the
most recent point the catalog can reach.

Backups taken on different replicas of an availability group are merged,
striped backups are grouped into one step, and rows whose device is not a
usable file path or URL are dropped. The resulting chain can be rendered as a
table, JSON, YAML or tab separated values, and saved as a manifest to a local
directory, S3, Azure Blob Storage or Google Cloud Storage.

Examples:
  # Resolve the restore chain of Sales from the replicas in the config file
  restore-chain resolve --config=config.yaml --database=Sales

  # Only the backups still missing on a server restored up to an LSN
  restore-chain resolve --config=config.yaml -d Sales --applied-lsn=98000000012300001

  # Resolve from an exported catalog and print JSON for scripting
  restore-chain resolve -d Sales --catalog-file=catalog.yaml --format=json

  # Show the raw backup history with duplicate and invalid rows marked
  restore-chain catalog --config=config.yaml -d Sales

  # List saved manifests
  restore-chain manifest list --config=config.yaml`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default is ./.restore-chain.yaml or $HOME/.restore-chain.yaml)")

	// Operation flags
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug output, including every catalog row")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")
	flags.Duration("timeout", 5*time.Minute, "overall operation timeout")
	flags.String("log-file", "", "also write logs to file")
	flags.String("log-format", "text", "log format (text, json)")

	// Display flags
	flags.BoolVar(&opts.noColor, "no-color", false, "disable color output")
	flags.String("theme", "dark", "color theme (dark, light, high-contrast, plain)")
	flags.StringP("format", "o", "table", "output format (table, json, yaml, compact)")
	flags.String("table-style", "default", "table style (default, rounded, compact, grid)")
	flags.Int("max-table-width", 160, "maximum table width (40-400)")
	flags.Bool("show-devices", false, "list every stripe of a backup instead of the first one")

	rootCmd.SetUsageTemplate(getUsageTemplate())

	rootCmd.AddCommand(createResolveCommand(opts))
	rootCmd.AddCommand(createCatalogCommand(opts))
	rootCmd.AddCommand(createManifestCommand(opts))
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())

	return rootCmd
}

// Execute runs the command tree and exits non-zero on any error.
// This is called by main.main().
func Execute() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", apperrors.FormatUserError(err))
		}
		os.Exit(1)
	}
}

// getUsageTemplate returns a custom usage template with configuration notes
func getUsageTemplate() string {
	return `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}

Configuration:
  Settings are read from the file given with --config, or from .restore-chain.yaml
  in the current directory, $HOME/.config/restore-chain or $HOME. Generate a
  commented sample with: restore-chain config

  Every setting can be overridden with a RESTORE_CHAIN_ environment variable,
  using underscores for nesting:
    RESTORE_CHAIN_DATABASE=Sales
    RESTORE_CHAIN_RESOLVE_ADJACENCY=bracketing
    RESTORE_CHAIN_DISPLAY_OUTPUT_FORMAT=json
    RESTORE_CHAIN_MANIFEST_STORAGE_PROVIDER=s3

Output Formats:
  table          - Formatted tables with colors and styling (default)
  json           - Machine-readable JSON output
  yaml           - Human-readable YAML output
  compact        - Tab separated values for scripting

Exit Status:
  0 when the command succeeds, 1 on any error. Chain errors are reported with
  their kind (NO_FULL_BACKUP_FOUND, AMBIGUOUS_CHAIN_MATCH, NO_BACKUPS_TO_RESTORE).
`
}

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

The template lists every available option with its default. Redirect the
output to a file and customize it for your environment.

Examples:
  restore-chain config > .restore-chain.yaml`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig)
		},
	}
}
