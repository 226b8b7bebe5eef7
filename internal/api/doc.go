// Package api serves provisioning requests over HTTP.
//
// Every endpoint answers with a request.Result. Failures carry the error
// kind, and the HTTP status follows it.
package api
