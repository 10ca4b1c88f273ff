package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview <deployment|commit> <id>",
	Short: "Show the preview of a deployment or commit",
	Long: `Show a preview with the project and branch it belongs to.

Examples:
  minard-sync preview deployment 7
  minard-sync preview commit 9f2c1a0`,
	ValidArgs: []string{"deployment", "commit"},
	Args:      cobra.MatchAll(cobra.ExactArgs(2), validPreviewKind),
	Run:       runPreview,
}

func validPreviewKind(cmd *cobra.Command, args []string) error {
	if args[0] != "deployment" && args[0] != "commit" {
		return fmt.Errorf("preview kind must be deployment or commit, got %q", args[0])
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	kind, id := args[0], args[1]
	c.Engine.LoadPreview(ctx, kind, id)
	c.Engine.Wait()

	s := c.Store.State()
	pv := mustEntity(s.Previews, models.PreviewKey(kind, id))

	bold := color.New(color.Bold)
	bold.Printf("%s", pv.Project.Name)
	fmt.Printf(" / ")
	color.New(color.FgGreen).Printf("%s\n", pv.Branch.Name)

	if pv.Commit != "" {
		printCommitLine(s, pv.Commit)
	} else if pv.Deployment != "" {
		printDeployment(s, pv.Deployment)
		fmt.Println()
	}
}
