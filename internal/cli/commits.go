package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/store"
	"github.com/spf13/cobra"
)

var commitsCmd = &cobra.Command{
	Use:   "commits <branch-id>",
	Short: "Show the commit history of a branch",
	Long:  `Display the commit history of a branch, newest first, one page at a time.`,
	Args:  cobra.ExactArgs(1),
	Run:   runCommits,
}

var (
	commitsOneline bool
	commitsLimit   int
)

func init() {
	commitsCmd.Flags().BoolVar(&commitsOneline, "oneline", false, "Show each commit on a single line")
	commitsCmd.Flags().IntVarP(&commitsLimit, "n", "n", 0, "Limit the number of commits to show")
}

func runCommits(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	branchID := args[0]
	c.Engine.LoadBranch(ctx, branchID)
	c.Engine.LoadCommitsForBranch(ctx, branchID, 0, time.Time{})
	c.Engine.Wait()
	mustSucceed(c.Store.State(), store.RequestKey{Type: models.TypeCommit, Op: store.OpFetchList, ID: branchID})

	// Page until the history or the limit is exhausted.
	for {
		b := mustEntity(c.Store.State().Branches, branchID)
		if b.AllCommitsLoaded || (commitsLimit > 0 && len(b.Commits) >= commitsLimit) {
			break
		}
		before := len(b.Commits)
		c.Engine.LoadMoreCommits(ctx, branchID)
		c.Engine.Wait()

		s := c.Store.State()
		mustSucceed(s, store.RequestKey{Type: models.TypeCommit, Op: store.OpFetchList, ID: branchID})
		if b := mustEntity(s.Branches, branchID); len(b.Commits) == before && !b.AllCommitsLoaded {
			break
		}
	}

	s := c.Store.State()
	b := mustEntity(s.Branches, branchID)
	ids := b.Commits
	if commitsLimit > 0 && len(ids) > commitsLimit {
		ids = ids[:commitsLimit]
	}
	if len(ids) == 0 {
		fmt.Println("No commits yet")
		return
	}

	yellow := color.New(color.FgYellow)
	for _, id := range ids {
		if commitsOneline {
			printCommitLine(s, id)
			continue
		}
		commit, ok := s.Commits.Entity(id)
		if !ok {
			continue
		}
		yellow.Printf("commit %s", commit.Hash)
		if id == b.LatestSuccessfullyDeployedCommit {
			color.New(color.FgCyan).Print(" (deployed)")
		}
		fmt.Println()
		fmt.Printf("Author: %s <%s>\n", commit.Author.Name, commit.Author.Email)
		fmt.Printf("Date:   %s\n", formatTime(commit.Committer.Timestamp))
		fmt.Printf("\n    %s\n", commit.Message)
		if commit.Description != "" {
			fmt.Printf("\n    %s\n", commit.Description)
		}
		if commit.Deployment != "" {
			fmt.Print("   ")
			printDeployment(s, commit.Deployment)
			fmt.Println()
		}
		fmt.Println()
	}
}
