package cli

import (
	"fmt"

	"github.com/kilupskalvis/minard/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the minard-sync configuration",
	Long: `Create the configuration directory (~/.minard, or $MINARD_HOME) with the
API URL and default team.`,
	Run: runInit,
}

var (
	initURL  string
	initTeam string
)

func init() {
	initCmd.Flags().StringVar(&initURL, "url", "http://localhost:8000", "Minard API URL")
	initCmd.Flags().StringVar(&initTeam, "team", "", "Default team ID")
}

func runInit(cmd *cobra.Command, args []string) {
	cfg, err := config.Initialize(initURL, initTeam)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	fmt.Printf("Initialized minard-sync configuration in %s\n", cfg.Path())
	fmt.Printf("API URL: %s\n", cfg.APIURL)
	if cfg.TeamID != "" {
		fmt.Printf("Team:    %s\n", cfg.TeamID)
	}
	fmt.Printf("\nRun 'minard-sync login' to store an access token.\n")
}
