package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omriharel/cinema/pkg/cinema"
)

var (
	gitCommit  string
	versionTag string
	buildType  string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := cinema.Options{}

	cmd := &cobra.Command{
		Use:           "cinema [movie]",
		Short:         "Play a movie on the cinema screen",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.MoviePath = args[0]
			}
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Show verbose logs (useful for debugging the remote)")
	flags.BoolVar(&opts.NoTray, "no-tray", false, "Run without the tray icon")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the configuration file (default config.yaml)")

	return cmd
}

func run(opts cinema.Options) error {
	logger, err := cinema.NewLogger(buildType, opts.Verbose)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return err
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	if versionTag != "" || gitCommit != "" {
		named.Infow("Version info", "gitCommit", gitCommit, "versionTag", versionTag, "buildType", buildType)
	}

	if opts.Verbose {
		named.Debug("Verbose mode enabled, all log messages will be shown")
	}

	c, err := cinema.NewCinema(logger, opts)
	if err != nil {
		named.Errorw("Failed to create cinema instance", "error", err)
		return err
	}

	if versionTag != "" || gitCommit != "" {
		versionIdentifier := versionTag
		if versionIdentifier == "" {
			versionIdentifier = gitCommit
		}
		c.SetVersion(fmt.Sprintf("Version %s-%s", buildType, versionIdentifier))
	}

	if err := c.Initialize(); err != nil {
		named.Errorw("Failed to initialize cinema", "error", err)
		return err
	}

	return nil
}
