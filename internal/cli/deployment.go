package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/spf13/cobra"
)

var deploymentCmd = &cobra.Command{
	Use:   "deployment <id>",
	Short: "Show a deployment and its comments",
	Args:  cobra.ExactArgs(1),
	Run:   runDeployment,
}

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add or delete deployment comments",
	Long: `Add or delete comments on a deployment.

Examples:
  minard-sync comment add 7 -m "Looks good" --email ada@example.com
  minard-sync comment delete 31`,
}

var commentAddCmd = &cobra.Command{
	Use:   "add <deployment-id>",
	Short: "Comment on a deployment",
	Args:  cobra.ExactArgs(1),
	Run:   runCommentAdd,
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <comment-id>",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(1),
	Run:   runCommentDelete,
}

var (
	commentMessage string
	commentName    string
	commentEmail   string
)

func init() {
	commentAddCmd.Flags().StringVarP(&commentMessage, "message", "m", "", "Comment text")
	commentAddCmd.Flags().StringVar(&commentName, "name", "", "Your name")
	commentAddCmd.Flags().StringVar(&commentEmail, "email", "", "Your email")
	commentAddCmd.MarkFlagRequired("message")
	commentAddCmd.MarkFlagRequired("email")

	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentDeleteCmd)
}

func runDeployment(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	id := args[0]
	c.Engine.LoadDeployment(ctx, id)
	c.Engine.LoadCommentsForDeployment(ctx, id)
	c.Engine.Wait()

	s := c.Store.State()
	d := mustEntity(s.Deployments, id)

	fmt.Printf("Deployment %s ", d.ID)
	statusColor(d.Status).Printf("%s\n", d.Status)
	if d.URL != "" {
		fmt.Printf("URL:        %s\n", d.URL)
	}
	if d.Screenshot != "" {
		fmt.Printf("Screenshot: %s\n", d.Screenshot)
	}
	if d.Creator.Email != "" {
		fmt.Printf("Created by: %s <%s> at %s\n", d.Creator.Name, d.Creator.Email, formatTime(d.Creator.Timestamp))
	}

	fmt.Printf("\nComments:\n")
	if d.CommentsError != nil {
		color.New(color.FgRed).Printf("  failed to load comments: %v\n", d.CommentsError)
		return
	}
	if len(d.Comments) == 0 {
		fmt.Println("  none")
		return
	}
	cyan := color.New(color.FgCyan)
	for _, cid := range d.Comments {
		cm, ok := s.Comments.Entity(cid)
		if !ok {
			continue
		}
		who := cm.Name
		if who == "" {
			who = cm.Email
		}
		cyan.Printf("  %s", who)
		fmt.Printf(" (%s, #%s): %s\n", formatTime(cm.Timestamp), cm.ID, cm.Message)
	}
}

func runCommentAdd(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	cm, err := c.Engine.AddComment(ctx, remote.CommentInput{
		Deployment: args[0],
		Message:    commentMessage,
		Name:       commentName,
		Email:      commentEmail,
	})
	if err != nil {
		exitError("failed to add comment: %v", err)
	}
	color.New(color.FgGreen).Printf("Added comment #%s\n", cm.ID)
}

func runCommentDelete(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	if err := c.Engine.DeleteComment(ctx, args[0]); err != nil {
		exitError("failed to delete comment: %v", err)
	}
	fmt.Printf("Deleted comment #%s\n", args[0])
}
