package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
	oscptest "github.com/imamik/oscp/internal/testing"
)

func TestSave(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    resource.InstanceStatus
		behavior  request.SaveBehavior
		wantStops int
	}{
		{name: "power off active", status: resource.StatusActive, behavior: request.PowerOffDuringSave, wantStops: 1},
		{name: "remain powered on", status: resource.StatusActive, behavior: request.RemainPoweredOn},
		{name: "already off", status: resource.StatusShutoff, behavior: request.PowerOffDuringSave},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := oscptest.NewFixture(t)
			ctx := oscptest.TestContext(t)
			inst := fx.Cloud.AddServer("vm", tt.status)
			s := NewSaver(fx.Deps, newDeployer(t, fx))

			imageID, err := s.Save(ctx, request.SaveRequest{
				ActionID: "s1", InstanceID: inst.ID, BehaviorDuringSave: tt.behavior,
			})
			require.NoError(t, err)

			assert.True(t, fx.Cloud.HasImage(imageID))
			assert.Equal(t, tt.wantStops, fx.Cloud.Calls("StopServer"))
			assert.Equal(t, tt.wantStops, fx.Cloud.Calls("StartServer"))

			after, err := fx.Cloud.GetServer(ctx, inst.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, after.Status)
		})
	}
}

func TestSaveSnapshotFailurePowersBackOn(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	inst := fx.Cloud.AddServer("vm", resource.StatusActive)
	fx.Cloud.Fail("CreateServerImage", errors.New("quota exceeded"))
	s := NewSaver(fx.Deps, newDeployer(t, fx))

	ctx := oscptest.TestContext(t)
	_, err := s.Save(ctx, request.SaveRequest{InstanceID: inst.ID, BehaviorDuringSave: request.PowerOffDuringSave})
	require.Error(t, err)
	assert.Equal(t, 1, fx.Cloud.Calls("StopServer"))
	assert.Equal(t, 1, fx.Cloud.Calls("StartServer"))

	after, err := fx.Cloud.GetServer(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, resource.StatusActive, after.Status)
}

func TestRestore(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	ctx := oscptest.TestContext(t)
	inst := fx.Cloud.AddServer("vm", resource.StatusActive)
	s := NewSaver(fx.Deps, newDeployer(t, fx))

	imageID, err := s.Save(ctx, request.SaveRequest{InstanceID: inst.ID})
	require.NoError(t, err)

	req := deployRequest()
	req.ImageID = imageID
	dep, err := s.Restore(ctx, req)
	require.NoError(t, err)
	assert.True(t, fx.Cloud.HasServer(dep.InstanceID))

	req.ImageID = "gone"
	_, err = s.Restore(ctx, req)
	assert.True(t, resource.IsNotFound(err))
}

func TestDeleteSaved(t *testing.T) {
	t.Parallel()
	fx := oscptest.NewFixture(t)
	ctx := oscptest.TestContext(t)
	inst := fx.Cloud.AddServer("vm", resource.StatusActive)
	s := NewSaver(fx.Deps, newDeployer(t, fx))

	imageID, err := s.Save(ctx, request.SaveRequest{InstanceID: inst.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSaved(ctx, request.DeleteSavedRequest{ImageIDs: []string{"missing", imageID}}))
	assert.False(t, fx.Cloud.HasImage(imageID))
	assert.Equal(t, 2, fx.Cloud.Calls("DeleteImage"))

	fx.Cloud.Fail("DeleteImage", errors.New("boom"))
	assert.Error(t, s.DeleteSaved(ctx, request.DeleteSavedRequest{ImageIDs: []string{oscptest.ImageID}}))
}
