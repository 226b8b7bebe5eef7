// Package retry provides the two waiting primitives used against the cloud API.
//
// [WithExponentialBackoff] retries an operation that may fail transiently,
// such as deleting a security group that is still detaching from a server.
// Errors wrapped with [Fatal] stop the retry loop.
//
// [Poll] re-evaluates a condition on a fixed interval with a bounded number
// of attempts. Instance status waits, interface attach waits, and port
// settle waits all use it. Both primitives check the context between
// attempts, so the same mechanism serves cooperative cancellation.
package retry
