package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ageme/internal/agecli"
)

var capabilitiesProbe bool

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Show the API's routes, model, and constraints",
	Long: `Capabilities fetches the introspection route. With --probe the server
additionally performs one live upstream round-trip, which may incur cost.`,
	RunE: runCapabilities,
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
	capabilitiesCmd.Flags().BoolVar(&capabilitiesProbe, "probe", false, "Run a live upstream compatibility check")
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	client := agecli.NewClient(profile.ResolveEndpoint(flagEndpoint), flagDebug)
	raw, err := client.Capabilities(cmd.Context(), capabilitiesProbe)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
