// Package remote defines the Minard API document types and the client used
// to talk to it.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ResourceIdentifier is a JSON:API {type, id} pair.
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Relationship holds linkage data that is either null, one identifier or a
// list of identifiers.
type Relationship struct {
	Data json.RawMessage `json:"data"`
}

// One decodes single linkage. ok is false for null linkage.
func (r Relationship) One() (id ResourceIdentifier, ok bool, err error) {
	if isNull(r.Data) {
		return ResourceIdentifier{}, false, nil
	}
	if err := json.Unmarshal(r.Data, &id); err != nil {
		return ResourceIdentifier{}, false, fmt.Errorf("decode relationship: %w", err)
	}
	return id, true, nil
}

// Many decodes list linkage. Null linkage yields an empty list.
func (r Relationship) Many() ([]ResourceIdentifier, error) {
	if isNull(r.Data) {
		return nil, nil
	}
	var ids []ResourceIdentifier
	if err := json.Unmarshal(r.Data, &ids); err != nil {
		return nil, fmt.Errorf("decode relationship list: %w", err)
	}
	return ids, nil
}

// Resource is a JSON:API resource object.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    json.RawMessage         `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// RelatedID returns the ID linked by the named to-one relationship, or ""
// when it is missing or null.
func (r Resource) RelatedID(name string) (string, error) {
	rel, ok := r.Relationships[name]
	if !ok {
		return "", nil
	}
	id, ok, err := rel.One()
	if err != nil || !ok {
		return "", err
	}
	return id.ID, nil
}

// RelatedIDs returns the IDs linked by the named to-many relationship.
// present is false when the relationship is absent from the resource.
func (r Resource) RelatedIDs(name string) (ids []string, present bool, err error) {
	rel, ok := r.Relationships[name]
	if !ok {
		return nil, false, nil
	}
	linked, err := rel.Many()
	if err != nil {
		return nil, true, err
	}
	ids = make([]string, 0, len(linked))
	for _, l := range linked {
		ids = append(ids, l.ID)
	}
	return ids, true, nil
}

// Document is a JSON:API top-level response.
type Document struct {
	Data     json.RawMessage `json:"data"`
	Included []Resource      `json:"included,omitempty"`
}

// Resources returns the primary data as a list, whether the document
// carries a single resource or an array.
func (d *Document) Resources() ([]Resource, error) {
	data := bytes.TrimSpace(d.Data)
	if isNull(data) {
		return nil, nil
	}
	if data[0] == '[' {
		var list []Resource
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode resource list: %w", err)
		}
		return list, nil
	}
	var one Resource
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return []Resource{one}, nil
}

// NewDocument builds a document around resources, mainly for tests and
// request bodies.
func NewDocument(included []Resource, resources ...Resource) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if len(resources) == 1 {
		data, err = json.Marshal(resources[0])
	} else {
		data, err = json.Marshal(resources)
	}
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return &Document{Data: data, Included: included}, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Page selects a window of a timestamp-ordered collection. Items strictly
// older than Until are returned; a zero Until starts from the newest.
type Page struct {
	Count int
	Until time.Time
}

// ProjectInput is the payload for creating a project.
type ProjectInput struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	TemplateProjectID string `json:"template-project-id,omitempty"`
}

// ProjectEdit carries the fields to change on a project. Nil fields are
// left untouched.
type ProjectEdit struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CommentInput is the payload for adding a comment to a deployment.
type CommentInput struct {
	Deployment string `json:"deployment"`
	Message    string `json:"message"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email"`
}

// ErrorResponse is the structured error format returned by the API.
type ErrorResponse struct {
	Error        string `json:"error"`
	Details      string `json:"details,omitempty"`
	Unauthorized bool   `json:"unauthorized,omitempty"`
}
