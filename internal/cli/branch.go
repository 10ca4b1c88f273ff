package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var branchCmd = &cobra.Command{
	Use:   "branch <id>",
	Short: "Show a branch",
	Long: `Show a branch with its latest commit, latest deployed commit and the
newest page of its history.

Examples:
  minard-sync branch 42`,
	Args: cobra.ExactArgs(1),
	Run:  runBranch,
}

func runBranch(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	id := args[0]
	c.Engine.LoadBranch(ctx, id)
	c.Engine.LoadCommitsForBranch(ctx, id, 0, time.Time{})
	c.Engine.Wait()

	s := c.Store.State()
	b := mustEntity(s.Branches, id)

	green := color.New(color.FgGreen)
	green.Printf("%s", b.Name)
	if p, ok := s.Projects.Entity(b.Project); ok {
		fmt.Printf(" in %s", p.Name)
	}
	fmt.Println()
	fmt.Printf("Last activity: %s\n", formatTime(b.LatestActivityTimestamp))

	if len(b.BuildErrors) > 0 {
		red := color.New(color.FgRed)
		for _, e := range b.BuildErrors {
			red.Printf("build error: %s\n", e)
		}
	}

	if b.LatestCommit != "" {
		fmt.Print("Latest:   ")
		printCommitLine(s, b.LatestCommit)
	}
	if b.LatestSuccessfullyDeployedCommit != "" {
		fmt.Print("Deployed: ")
		printCommitLine(s, b.LatestSuccessfullyDeployedCommit)
	}

	fmt.Println()
	for _, cid := range b.Commits {
		printCommitLine(s, cid)
	}
	if !b.AllCommitsLoaded {
		fmt.Printf("\nRun 'minard-sync commits %s' for the full history.\n", id)
	}
}
