package api

import "time"

// Agent is the projection of a remote agent the CLI works with.
type Agent struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	Status         string    `json:"status,omitempty"`
	DeploymentType string    `json:"deployment_type,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
}

// DeploymentTypeContainer marks agents hosted from an uploaded image.
const DeploymentTypeContainer = "container"

func (a *Agent) validate() error {
	var missing []string
	if a.ID == "" {
		missing = append(missing, "id")
	}
	if a.Name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return &SchemaError{Type: "agent", Missing: missing}
	}
	return nil
}

// CreateAgentRequest is the body of POST /agents.
type CreateAgentRequest struct {
	Name           string `json:"name"`
	DeploymentType string `json:"deployment_type,omitempty"`
}

// StopResult reports the outcome of a stop request. Stopped is false when
// there was no running deployment.
type StopResult struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}

// UploadResult is the server acknowledgement of a chunk upload.
type UploadResult struct {
	Complete bool   `json:"complete"`
	Message  string `json:"message,omitempty"`
	ImageURI string `json:"image_uri,omitempty"`

	// Client-side bookkeeping, not part of the response body.
	Chunks    int    `json:"-"`
	BytesSent int64  `json:"-"`
	Digest    string `json:"-"`
}
