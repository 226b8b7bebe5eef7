// Package rollback runs ordered commands and undoes the completed ones when
// a later command fails or the request is cancelled.
//
// Compensations run newest first with a context detached from the caller's
// cancellation, so cleanup deletes still reach the cloud after a cancel.
// Their failures are logged and counted, never returned: the caller always
// sees the error that started the rollback.
package rollback
