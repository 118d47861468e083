// Package retry provides exponential backoff retry logic for transient failures.
//
// It is used for AWS calls that fail while the provider converges: dependent
// resources still referencing a delete target, or a freshly created object
// that is not yet visible to the next call.
package retry
