package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/minard/internal/auth"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token",
	Long: `Store the access token used for API requests and the event stream.
The token is read from stdin for security (not passed as an argument).

Examples:
  minard-sync login                     # prompts for token
  echo "$TOKEN" | minard-sync login     # pipe token from stdin`,
	Args: cobra.NoArgs,
	Run:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	Run:   runLogout,
}

func runLogin(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	fmt.Fprint(os.Stderr, "Enter access token: ")

	reader := bufio.NewReader(os.Stdin)
	raw, err := reader.ReadString('\n')
	if err != nil && raw == "" {
		exitError("failed to read token: %v", err)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		exitError("token cannot be empty")
	}

	tok, err := auth.ParseToken(raw)
	if err != nil {
		exitError("%v", err)
	}
	if err := tok.Valid(time.Now()); err != nil {
		exitError("%v", err)
	}

	teamID := tok.TeamID
	if teamID == "" {
		teamID = c.Config.TeamID
	}
	if err := c.Sessions.Save(auth.Session{Token: raw, TeamID: teamID, SavedAt: time.Now()}); err != nil {
		exitError("failed to save session: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Logged in")
	if tok.Email != "" {
		green.Printf(" as %s", tok.Email)
	}
	fmt.Println()
	if !tok.ExpiresAt.IsZero() {
		fmt.Printf("Token expires %s\n", tok.ExpiresAt.Local().Format(time.RFC1123))
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.Sessions.Delete(); err != nil {
		exitError("failed to delete session: %v", err)
	}
	fmt.Println("Logged out")
}
