package buildlogs

import "time"

// DeploymentStatus is the server-side lifecycle status of a deployment.
// Transitions are authoritative on the server; clients only display the
// latest value.
type DeploymentStatus string

const (
	DeploymentWaitingUpload DeploymentStatus = "waiting_upload"
	DeploymentBuilding      DeploymentStatus = "building"
	DeploymentDeploying     DeploymentStatus = "deploying"
	DeploymentSuccess       DeploymentStatus = "success"
	DeploymentFailed        DeploymentStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s DeploymentStatus) Valid() bool {
	switch s {
	case DeploymentWaitingUpload, DeploymentBuilding, DeploymentDeploying,
		DeploymentSuccess, DeploymentFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the deployment has finished.
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentSuccess || s == DeploymentFailed
}

// Deployment is one build/release attempt of an app.
type Deployment struct {
	ID        string
	AppID     string
	Slug      string
	Status    DeploymentStatus
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
