package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrorCode returns the AWS error code carried by err, or "" when err is
// not an API error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// isAWSErrorCode checks if the error is an AWS API error with one of the given codes.
func isAWSErrorCode(err error, codes ...string) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource does not exist.
// EC2 reports absence with per-resource codes (InvalidVpcID.NotFound,
// InvalidKeyPair.NotFound, ...), IAM with NoSuchEntity.
func IsNotFound(err error) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}
	return strings.HasSuffix(code, ".NotFound") || code == "NoSuchEntity"
}

// IsAlreadyExists checks if an error indicates the resource already exists.
func IsAlreadyExists(err error) bool {
	return isAWSErrorCode(err,
		"InvalidGroup.Duplicate",
		"InvalidKeyPair.Duplicate",
		"EntityAlreadyExists",
		"RouteAlreadyExists",
		"Resource.AlreadyAssociated",
	)
}

// IsDuplicatePermission checks if an ingress rule was already authorized.
func IsDuplicatePermission(err error) bool {
	return isAWSErrorCode(err, "InvalidPermission.Duplicate")
}

// IsDependencyViolation checks if a delete was refused because other
// resources still reference the target. These errors are retryable while
// instances are shutting down.
func IsDependencyViolation(err error) bool {
	return isAWSErrorCode(err, "DependencyViolation", "DeleteConflict")
}

// IsUnauthorized checks if the caller lacks permission for the operation.
func IsUnauthorized(err error) bool {
	return isAWSErrorCode(err,
		"UnauthorizedOperation",
		"AuthFailure",
		"AccessDenied",
		"AccessDeniedException",
		"InvalidClientTokenId",
		"UnrecognizedClientException",
		"SignatureDoesNotMatch",
	)
}

// IsRetryable checks if an error is transient and worth retrying.
// Freshly created resources are sometimes not yet visible to follow-up
// calls, which surfaces as a NotFound on the dependent call.
func IsRetryable(err error) bool {
	return IsDependencyViolation(err) ||
		isAWSErrorCode(err, "RequestLimitExceeded", "Throttling", "IncorrectState", "InvalidInstanceID.NotFound")
}
