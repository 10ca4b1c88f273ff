package models

// NamedRef is a denormalised reference carrying a display name.
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Preview is the read model behind a shareable deployment preview. It is
// keyed by PreviewKey(kind, id) rather than by a server ID.
type Preview struct {
	Key        string   `json:"key"`
	Commit     string   `json:"commit"`
	Deployment string   `json:"deployment"`
	Project    NamedRef `json:"project"`
	Branch     NamedRef `json:"branch"`
}

func (p Preview) EntityID() string { return p.Key }

// PreviewKey builds the store key for a preview requested by entity kind,
// e.g. PreviewKey("deployment", "12") == "deployment-12".
func PreviewKey(kind, id string) string {
	return kind + "-" + id
}
