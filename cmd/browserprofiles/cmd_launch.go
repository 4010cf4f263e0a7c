package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"browserprofiles/internal/config"
	"browserprofiles/internal/driver"
	"browserprofiles/internal/driver/roddriver"
	"browserprofiles/internal/launcher"
	"browserprofiles/internal/logging"
	"browserprofiles/internal/mutator"
	"browserprofiles/internal/orchestrator"
	"browserprofiles/internal/profile"
	"browserprofiles/internal/provision"
	"browserprofiles/internal/telemetry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const stopTimeout = 15 * time.Second

var launchCmd = &cobra.Command{
	Use:   "launch [profile-file]",
	Short: "Launch a session for a profile record (.json or .yaml)",
	Long: `Resolves the profile, starts its browser and keeps applying the profile's
identity to every new page until the browser exits or the command is
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

// newDriver is swapped in tests.
var newDriver = func(l *zap.Logger) driver.Launcher {
	return roddriver.NewLauncher(l)
}

// newProvisioner is swapped in tests.
var newProvisioner = func(c *config.Config, l *zap.Logger) launcher.Provisioner {
	return provision.New(c.Browser.ExecutablePath, c.BrowsersDir(), l)
}

func newResolver(c *config.Config) (*profile.Resolver, error) {
	policy, err := profile.ParseLanguagePolicy(c.Fingerprint.LanguagePolicy)
	if err != nil {
		return nil, err
	}
	return profile.NewResolver(c.ProfilesDir(), policy), nil
}

func openJournal(c *config.Config) (*telemetry.Journal, error) {
	if c.Telemetry.JournalPath == "" {
		return nil, nil
	}
	j, err := telemetry.OpenJournal(c.Telemetry.JournalPath)
	if err != nil {
		return nil, err
	}
	logging.Get(logger, logging.CategoryTelemetry).Debug("journal opened", zap.String("path", j.Path()))
	return j, nil
}

func newOrchestrator(c *config.Config, journal *telemetry.Journal) (*orchestrator.Orchestrator, error) {
	resolver, err := newResolver(c)
	if err != nil {
		return nil, err
	}

	l := launcher.New(
		newDriver(logging.Get(logger, logging.CategoryLaunch)),
		newProvisioner(c, logging.Get(logger, logging.CategoryProvision)),
		logging.Get(logger, logging.CategoryLaunch),
	)
	l.Revision = c.Browser.Revision
	l.Headless = c.Browser.Headless
	l.Timeout = c.GetLaunchTimeout()

	stealthEvasions := c.Browser.StealthEvasions
	return &orchestrator.Orchestrator{
		Resolver: resolver,
		Launcher: l,
		NewRegistry: func() *mutator.Registry {
			return mutator.Default(mutator.Options{StealthEvasions: stealthEvasions})
		},
		StartURL: c.Browser.StartURL,
		Journal:  journal,
		Logger:   logger,
	}, nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	rec, err := profile.LoadRecord(args[0])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless, _ = cmd.Flags().GetBool("headless")
	}
	if u, _ := cmd.Flags().GetString("start-url"); u != "" {
		cfg.Browser.StartURL = u
	}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	orch, err := newOrchestrator(cfg, journal)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res := orch.LaunchSession(ctx, rec)
	if !res.Success {
		return errors.New(res.Message)
	}
	s := res.Session
	fmt.Fprintf(cmd.OutOrStdout(), "%s (data dir %s)\n", res.Message, s.DataDir())

	select {
	case <-s.Done():
		logger.Info("browser exited", zap.String("profile", s.ProfileID()))
	case <-ctx.Done():
		logger.Info("received shutdown signal", zap.String("profile", s.ProfileID()))
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		if err := s.Stop(stopCtx); err != nil {
			logger.Warn("stopping session", zap.Error(err))
		}
	}

	printSummary(cmd, s.Outcomes())
	return nil
}

func printSummary(cmd *cobra.Command, outcomes []mutator.Outcome) {
	counts := map[mutator.Status]int{}
	pages := map[string]struct{}{}
	for _, o := range outcomes {
		counts[o.Status]++
		pages[o.PageID] = struct{}{}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pages mutated: %d, applied: %d, skipped: %d, failed: %d\n",
		len(pages), counts[mutator.StatusApplied], counts[mutator.StatusSkipped], counts[mutator.StatusFailed])
}
