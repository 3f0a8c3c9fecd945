package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coredevice/videonode/internal/config"
	"github.com/coredevice/videonode/internal/sources"
)

// validateSourcesOptions is the flag set validate-sources reads on its own,
// independent of the server's Options: the command never starts the
// service, so it only needs enough config to build a Source Registry.
type validateSourcesOptions struct {
	Config         string `help:"Path to configuration file" short:"c" default:"config.toml"`
	SourcesFileDir string `help:"Directory scanned for file-backed sources" default:"" toml:"streams.sources_file_dir" env:"STREAMS_SOURCES_FILE_DIR"`
}

// CreateValidateSourcesCmd builds the validate-sources subcommand: it
// probes the Source Registry the same way the server does at boot
// (local V4L2 devices, synthetic gst test patterns, files under the
// configured sources directory) and reports what it finds.
func CreateValidateSourcesCmd() *cobra.Command {
	opts := &validateSourcesOptions{}

	validateCmd := &cobra.Command{
		Use:   "validate-sources",
		Short: "Probe available video sources",
		Long:  "Lists every source the Source Registry can currently see: local V4L2 devices, synthetic gst test patterns, and files under the configured sources directory. Exits non-zero if none are found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			quiet, _ := cmd.Flags().GetBool("quiet")

			registry := sources.NewRegistry(opts.SourcesFileDir)
			refs, err := registry.ListAvailable(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list sources: %w", err)
			}
			if len(refs) == 0 {
				fmt.Fprintln(os.Stderr, "no sources available")
				os.Exit(1)
			}

			if !quiet {
				for _, ref := range refs {
					fmt.Printf("%-10s %s\n", ref.Kind, ref.String())
				}
			}
			fmt.Printf("%d source(s) available\n", len(refs))
			return nil
		},
	}

	validateCmd.Flags().StringVarP(&opts.Config, "config", "c", opts.Config, "Path to configuration file")
	validateCmd.Flags().StringVar(&opts.SourcesFileDir, "sources-file-dir", opts.SourcesFileDir, "Directory scanned for file-backed sources")
	validateCmd.Flags().BoolP("quiet", "q", false, "Only print the source count")

	return validateCmd
}
