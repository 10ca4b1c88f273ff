package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/store"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the activity feed",
	Long: `Show recent deployments and comments for the team, or for one project.

Examples:
  minard-sync activity
  minard-sync activity --project 12 -n 20`,
	Args: cobra.NoArgs,
	Run:  runActivity,
}

var (
	activityProject string
	activityCount   int
)

func init() {
	activityCmd.Flags().StringVar(&teamFlag, "team", "", "Team ID (defaults to the configured team)")
	activityCmd.Flags().StringVar(&activityProject, "project", "", "Only show activity of this project")
	activityCmd.Flags().IntVarP(&activityCount, "n", "n", 0, "Number of items to fetch")
}

func runActivity(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	key := store.RequestKey{Type: models.TypeActivity, Op: store.OpFetchList, ID: activityProject}
	if activityProject != "" {
		c.Engine.LoadActivityForProject(ctx, activityProject, activityCount, time.Time{})
	} else {
		c.Engine.LoadActivity(ctx, c.teamID(teamFlag), activityCount, time.Time{})
	}
	c.Engine.Wait()

	s := c.Store.State()
	mustSucceed(s, key)

	var items []models.Activity
	for _, id := range s.Activities.IDs() {
		a, ok := s.Activities.Entity(id)
		if ok && (activityProject == "" || a.Project == activityProject) {
			items = append(items, a)
		}
	}
	if len(items) == 0 {
		fmt.Println("No activity yet")
		return
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })

	faint := color.New(color.Faint)
	for _, a := range items {
		faint.Printf("%s ", formatTime(a.Timestamp))
		switch a.Kind {
		case models.ActivityComment:
			if cm, ok := s.Comments.Entity(a.Comment); ok {
				fmt.Printf("comment by %s: %s", cm.Email, cm.Message)
			} else {
				fmt.Printf("comment #%s", a.Comment)
			}
			printDeployment(s, a.Deployment)
			fmt.Println()
		default:
			fmt.Print("deployed ")
			if a.Commit != "" {
				printCommitLine(s, a.Commit)
			} else {
				printDeployment(s, a.Deployment)
				fmt.Println()
			}
		}
	}
}
