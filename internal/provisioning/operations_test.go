package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/resource"
)

func capture() (logr.Logger, *[]string) {
	var lines []string
	return funcr.New(func(_, args string) { lines = append(lines, args) }, funcr.Options{}), &lines
}

func TestEnsure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing *resource.Trunk
		wantMsg  string
	}{
		{name: "found", existing: &resource.Trunk{ID: "t-1"}, wantMsg: `"msg"="trunk already exists"`},
		{name: "created", wantMsg: `"msg"="trunk created"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			log, lines := capture()

			trunk, err := Ensure(context.Background(), log, &openstack.EnsureOperation[resource.Trunk]{
				Name:         "vm-trunk",
				ResourceType: "trunk",
				Find:         func(context.Context, string) (*resource.Trunk, error) { return tt.existing, nil },
				Create:       func(context.Context) (*resource.Trunk, error) { return &resource.Trunk{ID: "t-1"}, nil },
			}, func(tr *resource.Trunk) string { return tr.ID })
			require.NoError(t, err)
			assert.Equal(t, "t-1", trunk.ID)

			require.Len(t, *lines, 1)
			assert.Contains(t, (*lines)[0], tt.wantMsg)
			assert.Contains(t, (*lines)[0], `"id"="t-1"`)
		})
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		deleteErr error
		want      openstack.DeleteOutcome
		wantMsg   string
	}{
		{name: "deleted", want: openstack.Deleted, wantMsg: `"msg"="subnet deleted"`},
		{name: "absent", deleteErr: resource.NewNotFound("subnet", "s-1"), want: openstack.AlreadyGone, wantMsg: `"msg"="subnet already gone"`},
		{name: "in use", deleteErr: resource.NewConflict("subnet", "s-1", errors.New("ports")), want: openstack.StillInUse, wantMsg: `"msg"="subnet still in use, keeping it"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			log, lines := capture()

			outcome, err := Delete(context.Background(), log, &openstack.DeleteOperation{
				ID:           "s-1",
				ResourceType: "subnet",
				Delete:       func(context.Context, string) error { return tt.deleteErr },
				KeepInUse:    true,
			}, "subnet-n-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)

			require.Len(t, *lines, 1)
			assert.Contains(t, (*lines)[0], tt.wantMsg)
		})
	}
}

func TestDelete_Error(t *testing.T) {
	t.Parallel()
	log, lines := capture()

	_, err := Delete(context.Background(), log, &openstack.DeleteOperation{
		ID:           "s-1",
		ResourceType: "subnet",
		Delete:       func(context.Context, string) error { return errors.New("boom") },
	}, "")
	require.Error(t, err)
	assert.Empty(t, *lines)
}
