package models

import "time"

// Comment is a reviewer note left on a deployment.
type Comment struct {
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	Deployment string    `json:"deployment"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
}

func (c Comment) EntityID() string { return c.ID }
