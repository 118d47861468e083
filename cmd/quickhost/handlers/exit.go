package handlers

import (
	"errors"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
)

// Process exit codes.
const (
	ExitOK                = 0
	ExitGeneralFailure    = 1
	ExitAborted           = 2
	ExitFailAuth          = 3
	ExitNotAuthorizedUser = 4
	ExitKnownIssue        = 5
)

var (
	// ErrAborted is returned when the user declines a confirmation.
	ErrAborted = errors.New("aborted")
	// ErrWarnings is returned when an operation completed but some step
	// reported a warning. The summary has already been printed.
	ErrWarnings = errors.New("finished with warnings")
)

// ExitCode maps a handler error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrAborted):
		return ExitAborted
	case provisioning.IsSelfBootstrap(err):
		return ExitNotAuthorizedUser
	case provisioning.IsUnauthorized(err), awsplatform.IsUnauthorized(err):
		return ExitFailAuth
	case provisioning.IsTimeout(err), errors.Is(err, provisioning.ErrNotInitialized):
		return ExitKnownIssue
	default:
		return ExitGeneralFailure
	}
}

// Hint returns a one-line suggestion for the user, or "".
func Hint(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrAborted), errors.Is(err, ErrWarnings):
		return ""
	case provisioning.IsSelfBootstrap(err):
		return "this profile belongs to the quickhost user itself, run init with an administrator profile (--profile)"
	case provisioning.IsUnauthorized(err), awsplatform.IsUnauthorized(err):
		return "the profile is not allowed to do this, try a different profile (--profile)"
	case errors.Is(err, provisioning.ErrNotInitialized):
		return "run quickhost init first"
	case provisioning.IsTimeout(err):
		return "AWS is still working on it, run describe to check progress"
	default:
		return ""
	}
}

// result turns a finished report into the handler error.
func result(report *provisioning.Report, err error) error {
	if err != nil {
		return err
	}
	if report != nil && !report.OK() {
		return ErrWarnings
	}
	return nil
}
