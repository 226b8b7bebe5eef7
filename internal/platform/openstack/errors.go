package openstack

import (
	"net/http"

	"github.com/gophercloud/gophercloud/v2"

	"github.com/imamik/oscp/internal/resource"
)

// classify maps gophercloud response codes onto resource error kinds.
// 404 becomes NotFound and 409 Conflict; anything else passes through.
func classify(kind, ref string, err error) error {
	switch {
	case err == nil:
		return nil
	case isStatus(err, http.StatusNotFound):
		e := resource.NewNotFound(kind, ref)
		e.Err = err
		return e
	case isStatus(err, http.StatusConflict):
		return resource.NewConflict(kind, ref, err)
	}
	return err
}

// isStatus reports whether err is an unexpected-response error with the given
// HTTP status code.
func isStatus(err error, code int) bool {
	return err != nil && gophercloud.ResponseCodeIs(err, code)
}

// isInUse checks if an error indicates the resource is still referenced,
// such as a security group that the compute service has not yet released.
// These errors are retryable.
func isInUse(err error) bool {
	return resource.IsConflict(err)
}
