package models

// Commit represents a git commit. Message holds the first line of the raw
// commit message and Description the rest.
type Commit struct {
	ID          string   `json:"id"`
	Hash        string   `json:"hash"`
	Message     string   `json:"message"`
	Description string   `json:"description,omitempty"`
	Author      Identity `json:"author"`
	Committer   Identity `json:"committer"`
	Deployment  string   `json:"deployment,omitempty"`
}

func (c Commit) EntityID() string { return c.ID }

// ShortHash returns a shortened commit hash (first 7 characters)
func (c Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}
