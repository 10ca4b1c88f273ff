package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/kilupskalvis/minard/internal/store"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the team's projects",
	Long:  `List every project of the team with its latest deployed commit.`,
	Args:  cobra.NoArgs,
	Run:   runProjects,
}

var projectCmd = &cobra.Command{
	Use:   "project <id>",
	Short: "Show a project and its branches",
	Long: `Show a project with its branches and active committers.

Examples:
  minard-sync project 12                      Show project 12
  minard-sync project create --name site      Create a project
  minard-sync project edit 12 --name blog     Rename a project
  minard-sync project delete 12               Delete a project`,
	Args: cobra.ExactArgs(1),
	Run:  runProject,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	Args:  cobra.NoArgs,
	Run:   runProjectCreate,
}

var projectEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a project's name or description",
	Args:  cobra.ExactArgs(1),
	Run:   runProjectEdit,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	Run:   runProjectDelete,
}

var (
	teamFlag           string
	projectName        string
	projectDescription string
	projectTemplate    string
)

func init() {
	projectsCmd.Flags().StringVar(&teamFlag, "team", "", "Team ID (defaults to the configured team)")

	projectCreateCmd.Flags().StringVar(&teamFlag, "team", "", "Team ID (defaults to the configured team)")
	projectCreateCmd.Flags().StringVar(&projectName, "name", "", "Project name")
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectCreateCmd.Flags().StringVar(&projectTemplate, "template", "", "Project ID to use as a template")
	projectCreateCmd.MarkFlagRequired("name")

	projectEditCmd.Flags().StringVar(&projectName, "name", "", "New project name")
	projectEditCmd.Flags().StringVar(&projectDescription, "description", "", "New project description")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectEditCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}

func runProjects(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	teamID := c.teamID(teamFlag)
	c.Engine.LoadAllProjects(ctx, teamID)
	c.Engine.Wait()

	s := c.Store.State()
	mustSucceed(s, store.RequestKey{Type: models.TypeProject, Op: store.OpFetchList, ID: teamID})

	var projects []models.Project
	for _, id := range s.Projects.IDs() {
		if p, ok := s.Projects.Entity(id); ok {
			projects = append(projects, p)
		}
	}
	if len(projects) == 0 {
		fmt.Println("No projects yet")
		return
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LatestActivityTimestamp.After(projects[j].LatestActivityTimestamp)
	})

	bold := color.New(color.Bold)
	for _, p := range projects {
		bold.Printf("%s", p.Name)
		fmt.Printf(" (%s)  last activity %s\n", p.ID, formatTime(p.LatestActivityTimestamp))
		if p.LatestSuccessfullyDeployedCommit != "" {
			fmt.Print("    deployed: ")
			printCommitLine(s, p.LatestSuccessfullyDeployedCommit)
		}
	}
}

func runProject(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	id := args[0]
	c.Engine.LoadProject(ctx, id)
	c.Engine.LoadBranchesForProject(ctx, id)
	c.Engine.Wait()

	s := c.Store.State()
	p := mustEntity(s.Projects, id)

	color.New(color.Bold).Printf("%s\n", p.Name)
	if p.Description != "" {
		fmt.Printf("%s\n", p.Description)
	}
	if p.RepoURL != "" {
		fmt.Printf("Repository: %s\n", p.RepoURL)
	}
	fmt.Printf("Last activity: %s\n", formatTime(p.LatestActivityTimestamp))

	if len(p.ActiveUsers) > 0 {
		fmt.Printf("\nActive committers:\n")
		for _, u := range p.ActiveUsers {
			fmt.Printf("  %s <%s>\n", u.Name, u.Email)
		}
	}

	fmt.Printf("\nBranches:\n")
	if p.BranchesError != nil {
		color.New(color.FgRed).Printf("  failed to load branches: %v\n", p.BranchesError)
		return
	}
	green := color.New(color.FgGreen)
	for _, bid := range p.Branches {
		b, ok := s.Branches.Entity(bid)
		if !ok {
			fmt.Printf("  %s (not loaded)\n", bid)
			continue
		}
		green.Printf("  %s", b.Name)
		fmt.Printf(" (%s)  ", b.ID)
		printCommitLine(s, b.LatestCommit)
	}
}

func runProjectCreate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	p, err := c.Engine.CreateProject(ctx, c.teamID(teamFlag), remote.ProjectInput{
		Name:              projectName,
		Description:       projectDescription,
		TemplateProjectID: projectTemplate,
	})
	if err != nil {
		exitError("failed to create project: %v", err)
	}
	color.New(color.FgGreen).Printf("Created project '%s' (%s)\n", p.Name, p.ID)
}

func runProjectEdit(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	var edit remote.ProjectEdit
	if cmd.Flags().Changed("name") {
		edit.Name = &projectName
	}
	if cmd.Flags().Changed("description") {
		edit.Description = &projectDescription
	}
	if edit.Name == nil && edit.Description == nil {
		exitError("nothing to change (use --name or --description)")
	}

	if err := c.Engine.EditProject(ctx, args[0], edit); err != nil {
		exitError("failed to edit project: %v", err)
	}
	fmt.Printf("Updated project %s\n", args[0])
}

func runProjectDelete(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initEngineContext(ctx)
	defer c.Close()

	if err := c.Engine.DeleteProject(ctx, args[0]); err != nil {
		exitError("failed to delete project: %v", err)
	}
	fmt.Printf("Deleted project %s\n", args[0])
}
