package buildlogs

import "context"

// Source opens build log streams. Implementations own the transport; the
// returned Stream owns the underlying connection until it is closed.
type Source interface {
	Stream(ctx context.Context, deploymentID string) (Stream, error)
}

// DeploymentService fetches the latest known state of a deployment.
type DeploymentService interface {
	Deployment(ctx context.Context, deploymentID string) (Deployment, error)
}
