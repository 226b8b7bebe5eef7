package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/metrics"
	"github.com/imamik/oscp/internal/provisioning/app"
	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
)

// Connectivity runs connectivity requests.
type Connectivity interface {
	HandleAll(ctx context.Context, reqs []request.ConnectivityRequest) []request.Result
}

// Instances deploys and manages instances.
type Instances interface {
	Deploy(ctx context.Context, req request.DeployRequest) (*app.Deployment, error)
	Delete(ctx context.Context, req request.DeleteRequest) error
	Power(ctx context.Context, req request.PowerRequest) (*resource.Instance, error)
	RefreshIP(ctx context.Context, instanceID string) (*app.Addresses, error)
}

// Images saves instances and restores them.
type Images interface {
	Save(ctx context.Context, req request.SaveRequest) (string, error)
	Restore(ctx context.Context, req request.RestoreRequest) (*app.Deployment, error)
	DeleteSaved(ctx context.Context, req request.DeleteSavedRequest) error
}

// API holds the provisioners behind the HTTP routes.
type API struct {
	connectivity Connectivity
	instances    Instances
	images       Images
	log          logr.Logger
	timeout      time.Duration
}

// New creates an API. A zero timeout leaves requests unbounded.
func New(connectivity Connectivity, instances Instances, images Images, log logr.Logger, timeout time.Duration) *API {
	return &API{
		connectivity: connectivity,
		instances:    instances,
		images:       images,
		log:          log.WithName("api"),
		timeout:      timeout,
	}
}

// Router returns the HTTP handler with every route registered.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if a.timeout > 0 {
			r.Use(middleware.Timeout(a.timeout))
		}
		r.Post("/connectivity", a.handleConnectivity)

		r.Post("/instances", a.handleDeploy)
		r.Route("/instances/{id}", func(r chi.Router) {
			r.Delete("/", a.handleDelete)
			r.Post("/power", a.handlePower)
			r.Post("/save", a.handleSave)
			r.Get("/ips", a.handleRefreshIP)
		})

		r.Post("/images/{id}/restore", a.handleRestore)
		r.Delete("/images/{id}", a.handleDeleteImage)
	})
	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.V(1).Info("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch resource.KindOf(err) {
	case resource.KindNotFound:
		return http.StatusNotFound
	case resource.KindConflict:
		return http.StatusConflict
	case resource.KindExhausted:
		return http.StatusInsufficientStorage
	case resource.KindInstanceError:
		return http.StatusBadGateway
	case resource.KindTimeout:
		return http.StatusGatewayTimeout
	case resource.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error(err, "failed to write response")
	}
}

// writeResult answers with the result of one action.
func (a *API) writeResult(w http.ResponseWriter, actionID string, artifacts map[string]string, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		a.log.Error(err, "request failed", "action", actionID)
	}
	a.writeJSON(w, status, request.NewResult(actionID, artifacts, err))
}

// writeBadRequest answers a request that could not be decoded or validated.
func (a *API) writeBadRequest(w http.ResponseWriter, actionID string, err error) {
	a.writeJSON(w, http.StatusBadRequest, request.Result{
		ActionID: actionID,
		Error:    &request.ErrorReason{Kind: "BadRequest", Message: err.Error()},
	})
}
