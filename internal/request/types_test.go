package request

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oscp/internal/resource"
)

func TestConnectivityRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     ConnectivityRequest
		wantErr string
	}{
		{name: "set vlan", req: ConnectivityRequest{Type: SetVLAN, VLANID: 100, InstanceID: "i"}},
		{name: "remove all ignores vlan", req: ConnectivityRequest{Type: RemoveAllVLANs, InstanceID: "i"}},
		{name: "trunk mode", req: ConnectivityRequest{Type: RemoveVLAN, VLANID: 4094, PortMode: Trunk, InstanceID: "i"}},
		{name: "missing instance", req: ConnectivityRequest{Type: SetVLAN, VLANID: 1}, wantErr: "instanceId"},
		{name: "vlan zero", req: ConnectivityRequest{Type: SetVLAN, InstanceID: "i"}, wantErr: "outside"},
		{name: "vlan too large", req: ConnectivityRequest{Type: SetVLAN, VLANID: 4095, InstanceID: "i"}, wantErr: "outside"},
		{name: "unknown type", req: ConnectivityRequest{Type: "bridge", InstanceID: "i"}, wantErr: "unknown connectivity type"},
		{name: "unknown mode", req: ConnectivityRequest{Type: SetVLAN, VLANID: 1, PortMode: "hybrid", InstanceID: "i"}, wantErr: "port mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := tt.req
			err := req.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, req.PortMode)
		})
	}
}

func TestDeployRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := DeployRequest{AppName: "web", ImageID: "img", Flavor: "m1.small", InboundPorts: []string{"22", "udp:53"}}
	assert.NoError(t, valid.Validate())

	noFlavor := valid
	noFlavor.Flavor = ""
	assert.ErrorContains(t, noFlavor.Validate(), "flavor")

	badRule := valid
	badRule.InboundPorts = []string{"ssh"}
	assert.ErrorContains(t, badRule.Validate(), "inbound port rule")
}

func TestNewResult(t *testing.T) {
	t.Parallel()

	ok := NewResult("a1", map[string]string{ArtifactInstanceID: "i-1"}, nil)
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)
	assert.Equal(t, "i-1", ok.Artifacts[ArtifactInstanceID])

	failed := NewResult("a2", nil, resource.NewInstanceError(&resource.Instance{Name: "vm", Fault: "boom"}))
	assert.False(t, failed.Success)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "InstanceErrorState", failed.Error.Kind)
	assert.Contains(t, failed.Error.Message, "boom")

	plain := NewResult("a3", nil, errors.New("unexpected"))
	assert.Equal(t, "Error", plain.Error.Kind)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var req ConnectivityRequest
		err := Decode(strings.NewReader(`{"actionId":"a","type":"setVlan","vlanId":10,"portMode":"trunk","instanceId":"i"}`), &req)
		require.NoError(t, err)
		assert.Equal(t, ConnectivityRequest{ActionID: "a", Type: SetVLAN, VLANID: 10, PortMode: Trunk, InstanceID: "i"}, req)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		var req DeployRequest
		err := Decode(strings.NewReader("appName: web\nimageId: img\nflavor: m1.small\ninboundPorts:\n  - \"22\"\n  - udp:53\n"), &req)
		require.NoError(t, err)
		assert.Equal(t, []string{"22", "udp:53"}, req.InboundPorts)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		var req PowerRequest
		assert.Error(t, Decode(strings.NewReader(`{"instanceId":"i","reboot":true}`), &req))
	})
}

func TestLoadBatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`connectivity:
  - actionId: a1
    type: setVlan
    vlanId: 10
    instanceId: i-1
  - actionId: a2
    type: removeAllVlans
    instanceId: i-2
`), 0o600))

	b, err := LoadBatch(good)
	require.NoError(t, err)
	require.Len(t, b.Connectivity, 2)
	assert.Equal(t, Access, b.Connectivity[0].PortMode, "default port mode applied")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("connectivity:\n  - type: setVlan\n    instanceId: i\n"), 0o600))
	_, err = LoadBatch(bad)
	assert.ErrorContains(t, err, "outside")

	_, err = LoadBatch(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
