package main

import (
	"fmt"

	"browserprofiles/internal/logging"

	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Download or locate the browser executable and print its path",
	Args:  cobra.NoArgs,
	RunE:  runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	p := newProvisioner(cfg, logging.Get(logger, logging.CategoryProvision))
	bin, err := p.ResolveExecutable(cmd.Context(), cfg.Browser.Revision)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), bin)
	return nil
}
