// agectl drives the portrait aging API from the command line: local image
// preparation, the full generate flow, and capability introspection.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"ageme/internal/agecli"
	"ageme/internal/ageparams"
)

var (
	flagEndpoint string
	flagConfig   string
	flagDebug    bool
)

var rootCmd = &cobra.Command{
	Use:           "agectl",
	Short:         "Client for the portrait aging API",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "API base URL (default from profile, then "+agecli.DefaultEndpoint+")")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a yaml profile")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Print the local pipeline report and request the server-side echo")
}

func loadProfile() (*agecli.Profile, error) {
	return agecli.LoadProfile(flagConfig)
}

// baseParams are the built-in defaults before the profile and flags apply.
func baseParams() ageparams.AgeParams {
	return ageparams.AgeParams{
		AgeDelta:         10,
		Intensity:        0.5,
		HairColor:        ageparams.HairPreserve,
		Glasses:          ageparams.GlassesPreserve,
		Quality:          ageparams.QualityMedium,
		PreserveIdentity: true,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
