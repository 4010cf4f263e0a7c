// Command browserprofiles launches isolated browser sessions for profiles
// and applies their spoofed identity to every page.
package main

import (
	"fmt"
	"os"

	"browserprofiles/internal/config"
	"browserprofiles/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "browserprofiles",
	Short: "Launch browser sessions with per-profile identities",
	Long: `browserprofiles starts one browser process per profile, each with its own
data directory, and applies the profile's identity (proxy, timezone,
fingerprint, WebRTC suppression) to every page the session opens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}

		opts := logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
		if verbose {
			opts.Level = "debug"
		}
		logger, err = logging.New(opts)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Get(logger, logging.CategoryBoot).Debug("config loaded",
			zap.String("path", configPath),
			zap.String("root_dir", cfg.RootDir))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Config file")

	launchCmd.Flags().Bool("headless", false, "Run the browser headless")
	launchCmd.Flags().String("start-url", "", "Page opened once the session is ready (default from config)")
	outcomesCmd.Flags().Int("limit", 50, "Maximum number of outcomes to show (0 = all)")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(outcomesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
