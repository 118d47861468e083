package aws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "test"}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		notFound     bool
		exists       bool
		unauthorized bool
		dependency   bool
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: errors.New("boom")},
		{name: "vpc not found", err: apiErr("InvalidVpcID.NotFound"), notFound: true},
		{name: "key pair not found", err: apiErr("InvalidKeyPair.NotFound"), notFound: true},
		{name: "iam no such entity", err: apiErr("NoSuchEntity"), notFound: true},
		{name: "wrapped not found", err: fmt.Errorf("ctx: %w", apiErr("InvalidGroup.NotFound")), notFound: true},
		{name: "duplicate group", err: apiErr("InvalidGroup.Duplicate"), exists: true},
		{name: "iam entity exists", err: apiErr("EntityAlreadyExists"), exists: true},
		{name: "unauthorized", err: apiErr("UnauthorizedOperation"), unauthorized: true},
		{name: "auth failure", err: apiErr("AuthFailure"), unauthorized: true},
		{name: "access denied", err: apiErr("AccessDenied"), unauthorized: true},
		{name: "dependency violation", err: apiErr("DependencyViolation"), dependency: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.notFound, IsNotFound(tt.err), "IsNotFound")
			assert.Equal(t, tt.exists, IsAlreadyExists(tt.err), "IsAlreadyExists")
			assert.Equal(t, tt.unauthorized, IsUnauthorized(tt.err), "IsUnauthorized")
			assert.Equal(t, tt.dependency, IsDependencyViolation(tt.err), "IsDependencyViolation")
		})
	}
}

func TestErrorCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "", ErrorCode(errors.New("x")))
	assert.Equal(t, "InvalidPermission.Duplicate", ErrorCode(fmt.Errorf("wrap: %w", apiErr("InvalidPermission.Duplicate"))))
	assert.True(t, IsDuplicatePermission(apiErr("InvalidPermission.Duplicate")))
}

func TestProviderContextValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ProviderContext{Region: "us-east-1"}.Validate())
	assert.NoError(t, ProviderContext{Profile: "admin", Region: "eu-west-1"}.Validate())
	assert.Error(t, ProviderContext{}.Validate())
	assert.Error(t, ProviderContext{Region: "mars-north-1"}.Validate())
	assert.Equal(t, "default@us-east-1", ProviderContext{Region: "us-east-1"}.String())
	assert.Equal(t, "admin@us-east-2", ProviderContext{Profile: "admin", Region: "us-east-2"}.String())
}

func TestRegions(t *testing.T) {
	t.Parallel()

	regions := Regions()
	assert.Contains(t, regions, DefaultRegion)
	assert.IsIncreasing(t, regions)
	assert.True(t, IsSupportedRegion("ap-northeast-3"))
	assert.False(t, IsSupportedRegion("cn-north-1"))
}
