package main

import (
	"encoding/json"
	"fmt"

	"browserprofiles/internal/profile"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [profile-file]",
	Short: "Print the launch spec a profile record resolves to",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

// resolvedView adds the redacted proxy URL to the printed spec.
type resolvedView struct {
	*profile.LaunchSpec
	ProxyURL string `json:"proxyUrl,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	rec, err := profile.LoadRecord(args[0])
	if err != nil {
		return err
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}
	spec, err := resolver.Resolve(rec)
	if err != nil {
		return err
	}

	view := resolvedView{LaunchSpec: spec}
	if spec.Proxy != nil {
		view.ProxyURL = spec.Proxy.Redacted()
	}
	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
