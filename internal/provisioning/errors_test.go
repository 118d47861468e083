package provisioning

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Classify("op", nil))

	denied := Classify("RunInstances", &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "no"})
	assert.True(t, IsUnauthorized(denied))
	assert.False(t, IsSelfBootstrap(denied))
	assert.Contains(t, denied.Error(), "UnauthorizedOperation")

	other := Classify("CreateVpc", &smithy.GenericAPIError{Code: "VpcLimitExceeded", Message: "limit"})
	assert.False(t, IsUnauthorized(other))
	assert.Contains(t, other.Error(), "[VpcLimitExceeded]")

	plain := Classify("x", errors.New("io"))
	assert.Equal(t, "x failed: io", plain.Error())

	guard := &UnauthorizedError{Operation: "identity create", Principal: "quickhost-user", SelfBootstrap: true}
	assert.Same(t, guard, Classify("again", guard))
	assert.True(t, IsSelfBootstrap(fmt.Errorf("wrapped: %w", guard)))
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("create: %w", &TimeoutError{
		Operation: "wait for running",
		Waited:    90 * time.Second,
		Tally:     Tally{Target: 3, Ready: []string{"i-1"}, Waiting: []string{"i-2"}, Other: []string{"i-3"}},
	})
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "timed out after 1m30s")
	assert.Contains(t, err.Error(), "ready 1/3, waiting 1, other 1 [i-3]")
}

func TestTallyDone(t *testing.T) {
	t.Parallel()

	assert.False(t, Tally{}.Done())
	assert.False(t, Tally{Target: 2, Ready: []string{"a"}}.Done())
	assert.True(t, Tally{Target: 2, Ready: []string{"a", "b"}}.Done())
}
