package openstack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/resource"
)

// testServer mocks the network and compute endpoints of an OpenStack cloud.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{server: server, mux: mux}
}

// realClient returns a RealClient whose service clients point at the server.
func (ts *testServer) realClient() *RealClient {
	provider := &gophercloud.ProviderClient{}
	network := &gophercloud.ServiceClient{
		ProviderClient: provider,
		Endpoint:       ts.server.URL + "/network/",
		ResourceBase:   ts.server.URL + "/network/v2.0/",
	}
	compute := &gophercloud.ServiceClient{
		ProviderClient: provider,
		Endpoint:       ts.server.URL + "/compute/",
	}
	timeouts := config.DefaultTimeouts()
	timeouts.RetryMaxAttempts = 3
	timeouts.RetryInitialDelay = 10 * time.Millisecond
	return NewRealClientFromServices(network, compute, WithTimeouts(timeouts))
}

func (ts *testServer) handleFunc(pattern string, handler http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, handler)
}

// jsonResponse writes a JSON response with the given status code and body.
func jsonResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestRealClient_CreateNetwork_SendsProviderAttributes(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	var sent map[string]any
	ts.handleFunc("POST /network/v2.0/networks", func(w http.ResponseWriter, r *http.Request) {
		sent = decodeBody(t, r)["network"].(map[string]any)
		jsonResponse(w, http.StatusCreated, map[string]any{
			"network": map[string]any{
				"id":                        "net-1",
				"name":                      "net-seg-100",
				"subnets":                   []string{},
				"provider:network_type":     "vlan",
				"provider:segmentation_id":  100,
				"provider:physical_network": "physnet1",
				"vlan_transparent":          true,
			},
		})
	})

	network, err := ts.realClient().CreateNetwork(context.Background(), NetworkCreateOpts{
		Name:            "net-seg-100",
		NetworkType:     resource.NetworkTypeVLAN,
		PhysicalNetwork: "physnet1",
		SegmentationID:  100,
		VLANTransparent: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "net-seg-100", sent["name"])
	assert.Equal(t, "vlan", sent["provider:network_type"])
	assert.Equal(t, "physnet1", sent["provider:physical_network"])
	assert.Equal(t, float64(100), sent["provider:segmentation_id"])
	assert.Equal(t, true, sent["vlan_transparent"])

	assert.Equal(t, "net-1", network.ID)
	assert.Equal(t, resource.NetworkTypeVLAN, network.Type)
	assert.Equal(t, 100, network.Segment())
	assert.True(t, network.VLANTransparent)
	assert.False(t, network.HasSubnet())
}

func TestRealClient_CreateNetwork_Conflict(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.handleFunc("POST /network/v2.0/networks", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusConflict, map[string]any{
			"NeutronError": map[string]any{"type": "SegmentationIdInUse", "message": "VLAN 100 is in use"},
		})
	})

	_, err := ts.realClient().CreateNetwork(context.Background(), NetworkCreateOpts{
		Name:           "net-seg-100",
		NetworkType:    resource.NetworkTypeVLAN,
		SegmentationID: 100,
	})
	require.Error(t, err)
	assert.True(t, resource.IsConflict(err))
	assert.Contains(t, err.Error(), "failed to create network")
}

func TestRealClient_GetNetwork_NotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.handleFunc("GET /network/v2.0/networks/{id}", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusNotFound, map[string]any{
			"NeutronError": map[string]any{"type": "NetworkNotFound", "message": "not found"},
		})
	})

	_, err := ts.realClient().GetNetwork(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, resource.IsNotFound(err))
	assert.Equal(t, resource.KindNotFound, resource.KindOf(err))
}

func TestRealClient_GetNetwork_External(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.handleFunc("GET /network/v2.0/networks/{id}", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{"network": map[string]any{
			"id":                    r.PathValue("id"),
			"name":                  "public",
			"provider:network_type": "flat",
			"router:external":       true,
		}})
	})

	network, err := ts.realClient().GetNetwork(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", network.ID)
	assert.True(t, network.External)
}

func TestRealClient_FindNetworkByName(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.handleFunc("GET /network/v2.0/networks", func(w http.ResponseWriter, r *http.Request) {
		networks := []map[string]any{}
		if r.URL.Query().Get("name") == "net-seg-7" {
			networks = append(networks, map[string]any{
				"id":                       "net-7",
				"name":                     "net-seg-7",
				"subnets":                  []string{"sub-7"},
				"provider:network_type":    "vxlan",
				"provider:segmentation_id": 7,
			})
		}
		jsonResponse(w, http.StatusOK, map[string]any{"networks": networks})
	})

	client := ts.realClient()

	t.Run("found", func(t *testing.T) {
		network, err := client.FindNetworkByName(context.Background(), "net-seg-7")
		require.NoError(t, err)
		assert.Equal(t, "net-7", network.ID)
		assert.Equal(t, resource.NetworkTypeVXLAN, network.Type)
		assert.True(t, network.HasSubnet())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.FindNetworkByName(context.Background(), "net-seg-8")
		assert.True(t, resource.IsNotFound(err))
	})
}

func TestRealClient_CreateSubnet_WithoutGateway(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	var sent map[string]any
	ts.handleFunc("POST /network/v2.0/subnets", func(w http.ResponseWriter, r *http.Request) {
		sent = decodeBody(t, r)["subnet"].(map[string]any)
		jsonResponse(w, http.StatusCreated, map[string]any{
			"subnet": map[string]any{
				"id":         "sub-1",
				"name":       "subnet-net-1",
				"network_id": "net-1",
				"cidr":       "10.0.0.0/24",
				"ip_version": 4,
				"gateway_ip": nil,
				"allocation_pools": []map[string]string{
					{"start": "10.0.0.2", "end": "10.0.0.254"},
				},
			},
		})
	})

	subnet, err := ts.realClient().CreateSubnet(context.Background(), SubnetCreateOpts{
		Name:      "subnet-net-1",
		NetworkID: "net-1",
		CIDR:      "10.0.0.0/24",
	})
	require.NoError(t, err)

	assert.Contains(t, sent, "gateway_ip")
	assert.Nil(t, sent["gateway_ip"])
	assert.Equal(t, float64(4), sent["ip_version"])
	assert.Equal(t, "10.0.0.0/24", subnet.CIDR)
	assert.Empty(t, subnet.GatewayIP)
	require.Len(t, subnet.AllocationPools, 1)
	assert.Equal(t, "10.0.0.2", subnet.AllocationPools[0].Start)
}

func TestRealClient_AddSubPorts_Conflict(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.handleFunc("PUT /network/v2.0/trunks/{id}/add_subports", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusConflict, map[string]any{
			"NeutronError": map[string]any{"type": "DuplicateSubPort", "message": "already present"},
		})
	})

	err := ts.realClient().AddSubPorts(context.Background(), "trunk-1", []resource.SubPort{
		{PortID: "port-1", SegmentationID: 100, SegmentationType: "vlan"},
	})
	assert.True(t, resource.IsConflict(err))
}

func TestRealClient_GetServer_StatusAndFault(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.handleFunc("GET /compute/servers/{id}", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"server": map[string]any{
				"id":     r.PathValue("id"),
				"name":   "vm-1",
				"status": "ERROR",
				"fault":  map[string]any{"code": 500, "message": "No valid host was found"},
			},
		})
	})

	inst, err := ts.realClient().GetServer(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", inst.ID)
	assert.Equal(t, resource.StatusError, inst.Status)
	assert.Equal(t, "No valid host was found", inst.Fault)
}

func TestRealClient_CreateServer(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	var sent map[string]any
	ts.handleFunc("POST /compute/servers", func(w http.ResponseWriter, r *http.Request) {
		sent = decodeBody(t, r)
		jsonResponse(w, http.StatusAccepted, map[string]any{
			"server": map[string]any{"id": "srv-1", "adminPass": "x"},
		})
	})

	inst, err := ts.realClient().CreateServer(context.Background(), ServerCreateOpts{
		Name:            "web-1a2b3c4d",
		ImageID:         "img-1",
		FlavorID:        "flv-1",
		NetworkID:       "mgmt",
		AffinityGroupID: "8f2c5a1e-3b7d-4e9a-9c61-2d4f0b7e5a13",
		UserData:        "#cloud-config\n",
		KeyName:         "web-1a2b3c4d-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", inst.ID)
	assert.Equal(t, "web-1a2b3c4d", inst.Name)

	server := sent["server"].(map[string]any)
	assert.Equal(t, "web-1a2b3c4d-key", server["key_name"])
	assert.Equal(t, "img-1", server["imageRef"])
	assert.NotEmpty(t, server["user_data"])
	assert.Equal(t, map[string]any{"group": "8f2c5a1e-3b7d-4e9a-9c61-2d4f0b7e5a13"}, sent["os:scheduler_hints"])
}

func TestRealClient_StartServer_PostsAction(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	var sent map[string]any
	ts.handleFunc("POST /compute/servers/{id}/action", func(w http.ResponseWriter, r *http.Request) {
		sent = decodeBody(t, r)
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, ts.realClient().StartServer(context.Background(), "srv-1"))
	assert.Contains(t, sent, "os-start")
}

func TestRealClient_ListInterfaces(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.handleFunc("GET /compute/servers/{id}/os-interface", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"interfaceAttachments": []map[string]any{{
				"port_id":    "port-1",
				"net_id":     "net-1",
				"mac_addr":   "fa:16:3e:00:00:01",
				"port_state": "ACTIVE",
				"fixed_ips":  []map[string]string{{"subnet_id": "sub-1", "ip_address": "10.0.0.5"}},
			}},
		})
	})

	ifaces, err := ts.realClient().ListInterfaces(context.Background(), "srv-1")
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.Equal(t, resource.Interface{
		InstanceID: "srv-1",
		PortID:     "port-1",
		NetworkID:  "net-1",
		MACAddress: "fa:16:3e:00:00:01",
		FixedIPs:   []string{"10.0.0.5"},
	}, ifaces[0])
}

func TestRealClient_DeleteSecurityGroup_RetriesWhileInUse(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	var calls atomic.Int32
	ts.handleFunc("DELETE /network/v2.0/security-groups/{id}", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			jsonResponse(w, http.StatusConflict, map[string]any{
				"NeutronError": map[string]any{"type": "SecurityGroupInUse", "message": "in use"},
			})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, ts.realClient().DeleteSecurityGroup(context.Background(), "sg-1"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRealClient_DeleteSecurityGroup_NotFoundIsFatal(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	var calls atomic.Int32
	ts.handleFunc("DELETE /network/v2.0/security-groups/{id}", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	err := ts.realClient().DeleteSecurityGroup(context.Background(), "sg-1")
	assert.True(t, resource.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
}
