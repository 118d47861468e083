package provisioning

import (
	"errors"
	"fmt"
	"time"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
)

// ErrNotInitialized is returned when an app operation needs the shared
// network stack and it has not been created yet.
var ErrNotInitialized = errors.New("quickhost network not found in this region, run 'quickhost init' first")

// UnauthorizedError reports that the caller may not perform an operation.
// SelfBootstrap is set when the caller is the very principal quickhost
// would create or delete.
type UnauthorizedError struct {
	Operation     string
	Principal     string
	Code          string
	SelfBootstrap bool
	Err           error
}

func (e *UnauthorizedError) Error() string {
	if e.SelfBootstrap {
		return fmt.Sprintf("%s: refusing to run as %q, the principal this operation manages; use an administrator profile", e.Operation, e.Principal)
	}
	msg := fmt.Sprintf("%s: not authorized", e.Operation)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a convergence wait that hit its deadline.
// Tally holds the last observed ready/waiting/other split.
type TimeoutError struct {
	Operation string
	Waited    time.Duration
	Tally     Tally
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v (%s)", e.Operation, e.Waited.Round(time.Second), e.Tally)
}

// Classify wraps a provider error for operation. Authorization failures
// become *UnauthorizedError; everything else is wrapped with the AWS code.
func Classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return err
	}
	if awsplatform.IsUnauthorized(err) {
		return &UnauthorizedError{Operation: operation, Code: awsplatform.ErrorCode(err), Err: err}
	}
	if code := awsplatform.ErrorCode(err); code != "" {
		return fmt.Errorf("%s failed [%s]: %w", operation, code, err)
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}

// IsUnauthorized reports whether err is or wraps an *UnauthorizedError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

// IsSelfBootstrap reports whether err is the self-bootstrap guard.
func IsSelfBootstrap(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue) && ue.SelfBootstrap
}

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
