package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/store"
)

// mustEntity returns the cached entity for id or exits with the stored
// fetch error.
func mustEntity[T models.Entity](t *store.Table[T], id string) T {
	slot, ok := t.Get(id)
	if !ok {
		exitError("%s %s not found", t.Type(), id)
	}
	if slot.Err != nil {
		exitError("%v", slot.Err)
	}
	return slot.Entity
}

// mustSucceed exits when the last request for key failed.
func mustSucceed(s *store.State, key store.RequestKey) {
	if ferr := s.Requests.Failure(key); ferr != nil {
		exitError("%v", ferr)
	}
}

func statusColor(status models.DeploymentStatus) *color.Color {
	switch status {
	case models.DeploymentSuccess:
		return color.New(color.FgGreen)
	case models.DeploymentFailed, models.DeploymentCanceled:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func connectionColor(state store.ConnectionState) *color.Color {
	switch state {
	case store.ConnOpen:
		return color.New(color.FgGreen)
	case store.ConnClosed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

// printDeployment prints "<status> <url>" for the deployment of a commit,
// if it is cached.
func printDeployment(s *store.State, deploymentID string) {
	if deploymentID == "" {
		return
	}
	d, ok := s.Deployments.Entity(deploymentID)
	if !ok {
		fmt.Printf(" [deployment %s]", shortID(deploymentID))
		return
	}
	statusColor(d.Status).Printf(" [%s]", d.Status)
	if d.URL != "" {
		fmt.Printf(" %s", d.URL)
	}
}

// printCommitLine prints a commit as "<hash> <message> (<author>)".
func printCommitLine(s *store.State, id string) {
	yellow := color.New(color.FgYellow)
	c, ok := s.Commits.Entity(id)
	if !ok {
		yellow.Printf("%s", shortID(id))
		fmt.Println(" (not loaded)")
		return
	}
	yellow.Printf("%s ", c.ShortHash())
	fmt.Printf("%s", c.Message)
	if c.Author.Name != "" {
		fmt.Printf(" (%s)", c.Author.Name)
	}
	printDeployment(s, c.Deployment)
	fmt.Println()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Mon Jan 2 15:04:05 2006")
}
