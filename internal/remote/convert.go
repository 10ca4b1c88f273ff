package remote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kilupskalvis/minard/internal/models"
)

// Converter turns one resource into an entity.
type Converter[T any] func(Resource) (T, error)

// ConvertAll converts every resource with conv. A resource that fails to
// convert is logged and dropped; the rest of the batch is kept.
func ConvertAll[T any](resources []Resource, conv Converter[T], logger *slog.Logger) []T {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]T, 0, len(resources))
	for _, r := range resources {
		e, err := conv(r)
		if err != nil {
			logger.Warn("dropping malformed resource", "type", r.Type, "id", r.ID, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// SplitIncluded groups side-loaded resources by entity type. Resources of
// unknown types are dropped.
func SplitIncluded(included []Resource) map[models.EntityType][]Resource {
	groups := make(map[models.EntityType][]Resource)
	for _, r := range included {
		typ := models.EntityType(r.Type)
		switch typ {
		case models.TypeProject, models.TypeBranch, models.TypeCommit, models.TypeDeployment,
			models.TypeComment, models.TypeActivity, models.TypePreview:
			groups[typ] = append(groups[typ], r)
		}
	}
	return groups
}

func checkResource(r Resource, typ models.EntityType) error {
	if r.Type != string(typ) {
		return fmt.Errorf("expected %s resource, got %q", typ, r.Type)
	}
	if r.ID == "" {
		return fmt.Errorf("%s resource without id", typ)
	}
	return nil
}

func decodeAttributes(r Resource, v interface{}) error {
	if isNull(r.Attributes) {
		return nil
	}
	if err := json.Unmarshal(r.Attributes, v); err != nil {
		return fmt.Errorf("decode %s %s attributes: %w", r.Type, r.ID, err)
	}
	return nil
}

type identityAttributes struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

func (a identityAttributes) identity() models.Identity {
	return models.Identity{Name: a.Name, Email: a.Email, Timestamp: a.Timestamp}
}

type projectAttributes struct {
	Name                    string               `json:"name"`
	Description             string               `json:"description"`
	RepoURL                 string               `json:"repo-url"`
	ActiveCommitters        []identityAttributes `json:"active-committers"`
	LatestActivityTimestamp time.Time            `json:"latest-activity-timestamp"`
}

// ConvertProject converts a projects resource.
func ConvertProject(r Resource) (models.Project, error) {
	if err := checkResource(r, models.TypeProject); err != nil {
		return models.Project{}, err
	}
	var a projectAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return models.Project{}, err
	}
	deployed, err := r.RelatedID("latest-successfully-deployed-commit")
	if err != nil {
		return models.Project{}, err
	}
	branches, _, err := r.RelatedIDs("branches")
	if err != nil {
		return models.Project{}, err
	}

	users := make([]models.User, 0, len(a.ActiveCommitters))
	for _, c := range a.ActiveCommitters {
		users = append(users, models.User{Name: c.Name, Email: c.Email, Timestamp: c.Timestamp})
	}

	return models.Project{
		ID:                               r.ID,
		Name:                             a.Name,
		Description:                      a.Description,
		RepoURL:                          a.RepoURL,
		ActiveUsers:                      users,
		LatestActivityTimestamp:          a.LatestActivityTimestamp,
		Branches:                         branches,
		LatestSuccessfullyDeployedCommit: deployed,
	}, nil
}

type branchAttributes struct {
	Name                    string    `json:"name"`
	LatestActivityTimestamp time.Time `json:"latest-activity-timestamp"`
	BuildErrors             []string  `json:"build-errors"`
}

// ConvertBranch converts a branches resource. The commit list is taken from
// the commits relationship when present and otherwise starts empty.
func ConvertBranch(r Resource) (models.Branch, error) {
	if err := checkResource(r, models.TypeBranch); err != nil {
		return models.Branch{}, err
	}
	var a branchAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return models.Branch{}, err
	}
	project, err := r.RelatedID("project")
	if err != nil {
		return models.Branch{}, err
	}
	if project == "" {
		return models.Branch{}, fmt.Errorf("branch %s without project", r.ID)
	}
	latest, err := r.RelatedID("latest-commit")
	if err != nil {
		return models.Branch{}, err
	}
	deployed, err := r.RelatedID("latest-successfully-deployed-commit")
	if err != nil {
		return models.Branch{}, err
	}
	commits, _, err := r.RelatedIDs("commits")
	if err != nil {
		return models.Branch{}, err
	}
	if commits == nil {
		commits = []string{}
	}

	return models.Branch{
		ID:                               r.ID,
		Name:                             a.Name,
		Project:                          project,
		Commits:                          commits,
		LatestCommit:                     latest,
		LatestSuccessfullyDeployedCommit: deployed,
		LatestActivityTimestamp:          a.LatestActivityTimestamp,
		BuildErrors:                      a.BuildErrors,
	}, nil
}

type commitAttributes struct {
	Hash      string             `json:"hash"`
	Message   string             `json:"message"`
	Author    identityAttributes `json:"author"`
	Committer identityAttributes `json:"committer"`
}

// ConvertCommit converts a commits resource. The raw message is split into
// its first line and the remaining description.
func ConvertCommit(r Resource) (models.Commit, error) {
	if err := checkResource(r, models.TypeCommit); err != nil {
		return models.Commit{}, err
	}
	var a commitAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return models.Commit{}, err
	}
	deployments, _, err := r.RelatedIDs("deployments")
	if err != nil {
		return models.Commit{}, err
	}

	hash := a.Hash
	if hash == "" {
		hash = r.ID
	}
	message, description := SplitMessage(a.Message)

	c := models.Commit{
		ID:          r.ID,
		Hash:        hash,
		Message:     message,
		Description: description,
		Author:      a.Author.identity(),
		Committer:   a.Committer.identity(),
	}
	if len(deployments) > 0 {
		c.Deployment = deployments[0]
	}
	return c, nil
}

// SplitMessage splits a raw commit message on its first newline into the
// title and the trimmed body.
func SplitMessage(raw string) (message, description string) {
	title, body, found := strings.Cut(raw, "\n")
	if !found {
		return strings.TrimSpace(raw), ""
	}
	return strings.TrimSpace(title), strings.TrimSpace(body)
}

type deploymentAttributes struct {
	Status     string             `json:"status"`
	URL        string             `json:"url"`
	Screenshot string             `json:"screenshot"`
	Creator    identityAttributes `json:"creator"`
}

// ConvertDeployment converts a deployments resource. Comments stays nil when
// the resource carries no comments relationship.
func ConvertDeployment(r Resource) (models.Deployment, error) {
	if err := checkResource(r, models.TypeDeployment); err != nil {
		return models.Deployment{}, err
	}
	var a deploymentAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return models.Deployment{}, err
	}
	status, err := models.ParseDeploymentStatus(a.Status)
	if err != nil {
		return models.Deployment{}, err
	}
	comments, present, err := r.RelatedIDs("comments")
	if err != nil {
		return models.Deployment{}, err
	}
	if present && comments == nil {
		comments = []string{}
	}

	return models.Deployment{
		ID:         r.ID,
		Status:     status,
		URL:        a.URL,
		Screenshot: a.Screenshot,
		Creator:    a.Creator.identity(),
		Comments:   comments,
	}, nil
}

type commentAttributes struct {
	Message    string    `json:"message"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
	Deployment string    `json:"deployment"`
}

// ConvertComment converts a comments resource.
func ConvertComment(r Resource) (models.Comment, error) {
	if err := checkResource(r, models.TypeComment); err != nil {
		return models.Comment{}, err
	}
	var a commentAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return models.Comment{}, err
	}
	deployment, err := r.RelatedID("deployment")
	if err != nil {
		return models.Comment{}, err
	}
	if deployment == "" {
		deployment = a.Deployment
	}
	if deployment == "" {
		return models.Comment{}, fmt.Errorf("comment %s without deployment", r.ID)
	}

	return models.Comment{
		ID:         r.ID,
		Message:    a.Message,
		Deployment: deployment,
		Name:       a.Name,
		Email:      a.Email,
		Timestamp:  a.Timestamp,
	}, nil
}

type activityAttributes struct {
	ActivityType string    `json:"activity-type"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConvertActivity converts an activities resource.
func ConvertActivity(r Resource) (models.Activity, error) {
	if err := checkResource(r, models.TypeActivity); err != nil {
		return models.Activity{}, err
	}
	var a activityAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return models.Activity{}, err
	}

	act := models.Activity{ID: r.ID, Timestamp: a.Timestamp}
	switch kind := models.ActivityKind(a.ActivityType); kind {
	case models.ActivityDeployment, models.ActivityComment:
		act.Kind = kind
	default:
		return models.Activity{}, fmt.Errorf("unknown activity type %q", a.ActivityType)
	}

	for name, dst := range map[string]*string{
		"project":    &act.Project,
		"branch":     &act.Branch,
		"commit":     &act.Commit,
		"deployment": &act.Deployment,
		"comment":    &act.Comment,
	} {
		id, err := r.RelatedID(name)
		if err != nil {
			return models.Activity{}, err
		}
		*dst = id
	}

	if act.Project == "" || act.Branch == "" || act.Deployment == "" {
		return models.Activity{}, fmt.Errorf("activity %s missing project, branch or deployment", r.ID)
	}
	if act.Kind == models.ActivityComment && act.Comment == "" {
		return models.Activity{}, fmt.Errorf("comment activity %s without comment", r.ID)
	}
	return act, nil
}

type previewAttributes struct {
	Project models.NamedRef `json:"project"`
	Branch  models.NamedRef `json:"branch"`
}

// ConvertPreview converts a previews resource. The resource ID becomes the
// preview key.
func ConvertPreview(r Resource) (models.Preview, error) {
	if err := checkResource(r, models.TypePreview); err != nil {
		return models.Preview{}, err
	}
	var a previewAttributes
	if err := decodeAttributes(r, &a); err != nil {
		return models.Preview{}, err
	}
	commit, err := r.RelatedID("commit")
	if err != nil {
		return models.Preview{}, err
	}
	deployment, err := r.RelatedID("deployment")
	if err != nil {
		return models.Preview{}, err
	}

	return models.Preview{
		Key:        r.ID,
		Commit:     commit,
		Deployment: deployment,
		Project:    a.Project,
		Branch:     a.Branch,
	}, nil
}
