package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imamik/oscp/internal/request"
)

// ConnectivityResponse holds one result per request, in request order.
type ConnectivityResponse struct {
	Results []request.Result `json:"results"`
}

// handleConnectivity handles POST /v1/connectivity. Individual failures are
// reported in their result, so the response is 200 once the batch is valid.
func (a *API) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var batch request.Batch
	if err := request.Decode(r.Body, &batch); err != nil {
		a.writeBadRequest(w, "", err)
		return
	}
	for i := range batch.Connectivity {
		if err := batch.Connectivity[i].Validate(); err != nil {
			a.writeBadRequest(w, batch.Connectivity[i].ActionID, err)
			return
		}
	}
	results := a.connectivity.HandleAll(r.Context(), batch.Connectivity)
	a.writeJSON(w, http.StatusOK, ConnectivityResponse{Results: results})
}

// handleDeploy handles POST /v1/instances.
func (a *API) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req request.DeployRequest
	if err := request.Decode(r.Body, &req); err != nil {
		a.writeBadRequest(w, "", err)
		return
	}
	if err := req.Validate(); err != nil {
		a.writeBadRequest(w, req.ActionID, err)
		return
	}
	dep, err := a.instances.Deploy(r.Context(), req)
	if err != nil {
		a.writeResult(w, req.ActionID, nil, err)
		return
	}
	a.writeResult(w, req.ActionID, dep.Artifacts(), nil)
}

// handleDelete handles DELETE /v1/instances/{id}?publicIp=.
func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	req := request.DeleteRequest{
		InstanceID: chi.URLParam(r, "id"),
		PublicIP:   r.URL.Query().Get("publicIp"),
	}
	a.writeResult(w, "", nil, a.instances.Delete(r.Context(), req))
}

// handlePower handles POST /v1/instances/{id}/power with {"on": bool}.
func (a *API) handlePower(w http.ResponseWriter, r *http.Request) {
	var req request.PowerRequest
	if err := request.Decode(r.Body, &req); err != nil {
		a.writeBadRequest(w, "", err)
		return
	}
	req.InstanceID = chi.URLParam(r, "id")
	inst, err := a.instances.Power(r.Context(), req)
	if err != nil {
		a.writeResult(w, "", nil, err)
		return
	}
	a.writeResult(w, "", map[string]string{
		request.ArtifactInstanceID:   inst.ID,
		request.ArtifactInstanceName: inst.Name,
	}, nil)
}

// handleSave handles POST /v1/instances/{id}/save.
func (a *API) handleSave(w http.ResponseWriter, r *http.Request) {
	var req request.SaveRequest
	if err := request.Decode(r.Body, &req); err != nil {
		a.writeBadRequest(w, "", err)
		return
	}
	req.InstanceID = chi.URLParam(r, "id")
	imageID, err := a.images.Save(r.Context(), req)
	if err != nil {
		a.writeResult(w, req.ActionID, nil, err)
		return
	}
	a.writeResult(w, req.ActionID, map[string]string{request.ArtifactImageID: imageID}, nil)
}

// handleRefreshIP handles GET /v1/instances/{id}/ips.
func (a *API) handleRefreshIP(w http.ResponseWriter, r *http.Request) {
	addrs, err := a.instances.RefreshIP(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeResult(w, "", nil, err)
		return
	}
	artifacts := map[string]string{request.ArtifactPrivateIP: addrs.PrivateIP}
	if addrs.PublicIP != "" {
		artifacts[request.ArtifactPublicIP] = addrs.PublicIP
	}
	a.writeResult(w, "", artifacts, nil)
}

// handleRestore handles POST /v1/images/{id}/restore with a deploy request
// body whose image is taken from the path.
func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req request.RestoreRequest
	if err := request.Decode(r.Body, &req); err != nil {
		a.writeBadRequest(w, "", err)
		return
	}
	req.ImageID = chi.URLParam(r, "id")
	if err := req.Validate(); err != nil {
		a.writeBadRequest(w, req.ActionID, err)
		return
	}
	dep, err := a.images.Restore(r.Context(), req)
	if err != nil {
		a.writeResult(w, req.ActionID, nil, err)
		return
	}
	a.writeResult(w, req.ActionID, dep.Artifacts(), nil)
}

// handleDeleteImage handles DELETE /v1/images/{id}.
func (a *API) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	req := request.DeleteSavedRequest{ImageIDs: []string{chi.URLParam(r, "id")}}
	a.writeResult(w, "", nil, a.images.DeleteSaved(r.Context(), req))
}
