// Package mock provides test doubles for buildlogs interfaces using function
// fields.
package mock

import (
	"context"

	"github.com/fastapicloud/buildlogs"
)

// Interface compliance checks.
var (
	_ buildlogs.Source            = (*Source)(nil)
	_ buildlogs.DeploymentService = (*DeploymentService)(nil)
)

// Source is a test double for buildlogs.Source.
// Set StreamFn before calling Stream.
type Source struct {
	StreamFn func(ctx context.Context, deploymentID string) (buildlogs.Stream, error)
}

// Stream delegates to StreamFn.
func (s *Source) Stream(ctx context.Context, deploymentID string) (buildlogs.Stream, error) {
	return s.StreamFn(ctx, deploymentID)
}

// DeploymentService is a test double for buildlogs.DeploymentService.
type DeploymentService struct {
	DeploymentFn func(ctx context.Context, deploymentID string) (buildlogs.Deployment, error)
}

// Deployment delegates to DeploymentFn.
func (d *DeploymentService) Deployment(ctx context.Context, deploymentID string) (buildlogs.Deployment, error) {
	return d.DeploymentFn(ctx, deploymentID)
}
