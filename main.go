package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/lntools/reckless/conf"
	"github.com/lntools/reckless/lightning"
	"github.com/lntools/reckless/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var cerr *lightning.ControlError
		if errors.As(err, &cerr) && cerr.ExitCode != 0 {
			os.Exit(cerr.ExitCode)
		}
		os.Exit(1)
	}
}

type cliOptions struct {
	lightningDir string
	recklessDir  string
	network      string
	regtest      bool
	verbose      bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	var settings *conf.Settings
	var lg *log.Logger

	root := &cobra.Command{
		Use:          "reckless",
		Short:        "Install and manage Core Lightning plugins",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			settings, lg, err = buildSettings(opts)
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.lightningDir, "lightning-dir", "d", "", "lightningd data directory (default ~/.lightning)")
	flags.StringVar(&opts.recklessDir, "reckless-dir", "", "plugin data directory (default <lightning-dir>/reckless)")
	flags.StringVar(&opts.network, "network", "", "daemon network (default bitcoin)")
	flags.BoolVar(&opts.regtest, "regtest", false, "shorthand for --network=regtest")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "surface captured subprocess output")

	run := func(c Command) error {
		return Dispatch(context.Background(), lg, settings, c)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "install <plugin>",
			Short: "Resolve, install and enable a plugin",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return run(InstallCommand{Name: args[0]}) },
		},
		&cobra.Command{
			Use:   "uninstall <plugin>",
			Short: "Disable a plugin and delete its installed directory",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return run(UninstallCommand{Name: args[0]}) },
		},
		&cobra.Command{
			Use:   "search <plugin>",
			Short: "Locate a plugin in the configured sources",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return run(SearchCommand{Name: args[0]}) },
		},
		&cobra.Command{
			Use:   "enable <plugin>",
			Short: "Activate an installed plugin",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return run(EnableCommand{Name: args[0]}) },
		},
		&cobra.Command{
			Use:   "disable <plugin>",
			Short: "Deactivate an installed plugin",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return run(DisableCommand{Name: args[0]}) },
		},
		&cobra.Command{
			Use:   "list",
			Short: "Show installed plugins",
			Args:  cobra.NoArgs,
			RunE:  func(_ *cobra.Command, _ []string) error { return run(ListCommand{}) },
		},
	)

	sourceCmd := &cobra.Command{
		Use:   "source",
		Short: "Manage plugin sources",
	}
	sourceCmd.AddCommand(
		&cobra.Command{
			Use:   "add <url-or-path>",
			Short: "Append a plugin source",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return run(SourceAddCommand{URL: args[0]}) },
		},
		&cobra.Command{
			Use:   "remove <url-or-path>",
			Short: "Remove a plugin source",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return run(SourceRemoveCommand{URL: args[0]}) },
		},
		&cobra.Command{
			Use:   "list",
			Short: "Show plugin sources in search order",
			Args:  cobra.NoArgs,
			RunE:  func(_ *cobra.Command, _ []string) error { return run(SourceListCommand{}) },
		},
	)
	root.AddCommand(sourceCmd)

	return root
}

// buildSettings folds flags over optional preferences over defaults into the
// one Settings value every core operation receives.
func buildSettings(opts *cliOptions) (*conf.Settings, *log.Logger, error) {
	prefs, err := loadPrefs()
	if err != nil {
		return nil, nil, err
	}

	lightningDir := opts.lightningDir
	if lightningDir == "" {
		lightningDir = prefs.LightningDir
	}
	if lightningDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		lightningDir = filepath.Join(home, ".lightning")
	}
	lightningDir, err = homedir.Expand(lightningDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to expand lightning dir: %w", err)
	}

	network := opts.network
	if network == "" {
		network = prefs.Network
	}
	if opts.regtest {
		network = "regtest"
	}
	if network == "" {
		network = "bitcoin"
	}

	recklessDir := opts.recklessDir
	if recklessDir == "" {
		recklessDir = filepath.Join(lightningDir, "reckless")
	}

	verbose := opts.verbose || prefs.Verbose

	settings := &conf.Settings{
		LightningDir: lightningDir,
		RecklessDir:  recklessDir,
		Network:      network,
		Verbose:      verbose,
	}

	lg, err := logger.New(recklessDir, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return settings, lg, nil
}
