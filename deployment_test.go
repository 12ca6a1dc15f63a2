package buildlogs_test

import (
	"testing"

	"github.com/fastapicloud/buildlogs"
	"github.com/stretchr/testify/assert"
)

func TestDeploymentStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   buildlogs.DeploymentStatus
		valid    bool
		terminal bool
	}{
		{buildlogs.DeploymentWaitingUpload, true, false},
		{buildlogs.DeploymentBuilding, true, false},
		{buildlogs.DeploymentDeploying, true, false},
		{buildlogs.DeploymentSuccess, true, true},
		{buildlogs.DeploymentFailed, true, true},
		{"", false, false},
		{"queued", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, tt.status.Valid())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}
