package network

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/tags"
	"github.com/imamik/quickhost/pkg/cloud/fakes"
)

func newTestReconciler(t *testing.T) (*Reconciler, *fakes.Cloud, *provisioning.RecordingObserver) {
	t.Helper()
	cloud := fakes.New()
	obs := provisioning.NewRecordingObserver()
	r := NewReconciler(cloud, obs, config.TestTimeouts(), nil, config.NetworkConfig{})
	return r, cloud, obs
}

var createOps = []string{
	"ec2:CreateVpc",
	"ec2:CreateInternetGateway",
	"ec2:AttachInternetGateway",
	"ec2:CreateSubnet",
	"ec2:CreateRouteTable",
	"ec2:CreateRoute",
	"ec2:AssociateRouteTable",
}

func TestEnsure_CreatesStack(t *testing.T) {
	t.Parallel()
	r, cloud, obs := newTestReconciler(t)

	st, err := r.Ensure(context.Background())
	require.NoError(t, err)

	assert.True(t, st.Ready(), st.Problems())
	assert.Equal(t, config.DefaultVPCCIDR, st.CIDR)
	assert.Equal(t, "172.16.0.0/24", st.SubnetCIDR)
	for _, op := range createOps {
		assert.Equal(t, 1, cloud.Calls(op), op)
	}
	assert.Len(t, obs.Filter(provisioning.EventResourceCreated), 4)

	counts := cloud.ResourceCounts()
	assert.Equal(t, 1, counts["vpc"])
	assert.Equal(t, 1, counts["subnet"])
	assert.Equal(t, 1, counts["internet-gateway"])
	assert.Equal(t, 1, counts["route-table"])
}

func TestEnsure_Idempotent(t *testing.T) {
	t.Parallel()
	r, cloud, obs := newTestReconciler(t)
	ctx := context.Background()

	first, err := r.Ensure(ctx)
	require.NoError(t, err)
	cloud.ResetCalls()

	second, err := r.Ensure(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.NetworkID, second.NetworkID)
	assert.Equal(t, first.SubnetID, second.SubnetID)
	assert.Equal(t, first.GatewayID, second.GatewayID)
	assert.Equal(t, first.RouteTableID, second.RouteTableID)
	assert.Zero(t, cloud.MutatingCalls())
	assert.False(t, obs.HasEvent(provisioning.EventResourceRepaired, ""))
}

func TestEnsure_Repairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *fakes.Cloud, st *Stack)
		op     string
		what   string
	}{
		{
			name:   "detached gateway",
			mutate: func(c *fakes.Cloud, st *Stack) { c.DetachGateway(st.GatewayID) },
			op:     "ec2:AttachInternetGateway",
			what:   "attached to",
		},
		{
			name:   "missing default route",
			mutate: func(c *fakes.Cloud, st *Stack) { c.DeleteRoutes(st.RouteTableID) },
			op:     "ec2:CreateRoute",
			what:   "default route",
		},
		{
			name:   "deleted gateway leaves a blackhole route",
			mutate: func(c *fakes.Cloud, st *Stack) { c.DropGateway(st.GatewayID) },
			op:     "ec2:ReplaceRoute",
			what:   "replaced default route",
		},
		{
			name:   "unassociated route table",
			mutate: func(c *fakes.Cloud, st *Stack) { c.DisassociateAll(st.RouteTableID) },
			op:     "ec2:AssociateRouteTable",
			what:   "associated with",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, cloud, obs := newTestReconciler(t)
			ctx := context.Background()

			st, err := r.Ensure(ctx)
			require.NoError(t, err)
			tt.mutate(cloud, st)

			broken, err := r.Describe(ctx, true)
			require.NoError(t, err)
			require.False(t, broken.Ready())

			cloud.ResetCalls()
			repaired, err := r.Ensure(ctx)
			require.NoError(t, err)

			assert.True(t, repaired.Ready(), repaired.Problems())
			assert.Equal(t, st.NetworkID, repaired.NetworkID)
			assert.Equal(t, 1, cloud.Calls(tt.op))
			assert.Zero(t, cloud.Calls("ec2:CreateVpc"))
			assert.True(t, obs.HasEvent(provisioning.EventResourceRepaired, tt.what))
		})
	}
}

func TestEnsure_MovesGatewayFromForeignVpc(t *testing.T) {
	t.Parallel()
	r, cloud, obs := newTestReconciler(t)
	ctx := context.Background()

	st, err := r.Ensure(ctx)
	require.NoError(t, err)

	foreign, err := cloud.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})
	require.NoError(t, err)
	cloud.DetachGateway(st.GatewayID)
	_, err = cloud.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(st.GatewayID),
		VpcId:             foreign.Vpc.VpcId,
	})
	require.NoError(t, err)

	cloud.ResetCalls()
	repaired, err := r.Ensure(ctx)
	require.NoError(t, err)

	assert.True(t, repaired.GatewayAttached)
	assert.Equal(t, 1, cloud.Calls("ec2:DetachInternetGateway"))
	assert.True(t, obs.HasEvent(provisioning.EventResourceRepaired, "moved from"))
}

func TestDescribe_Missing(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestReconciler(t)

	st, err := r.Describe(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, st.Empty())
	assert.False(t, st.Ready())
	assert.Equal(t, []string{"network not found"}, st.Problems())
}

func TestDescribe_Ambiguous(t *testing.T) {
	t.Parallel()
	r, cloud, _ := newTestReconciler(t)
	ctx := context.Background()

	for range 2 {
		_, err := cloud.CreateVpc(ctx, &ec2.CreateVpcInput{
			CidrBlock:         aws.String(config.DefaultVPCCIDR),
			TagSpecifications: tags.ForNetwork().Specs(ec2types.ResourceTypeVpc),
		})
		require.NoError(t, err)
	}

	_, err := r.Describe(ctx, true)
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = r.Ensure(ctx)
	assert.ErrorIs(t, err, ErrAmbiguous)
	assert.Equal(t, 2, cloud.Calls("ec2:CreateVpc"))
}

func TestDescribe_Cached(t *testing.T) {
	t.Parallel()
	r, cloud, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Ensure(ctx)
	require.NoError(t, err)
	cloud.ResetCalls()

	st, err := r.Describe(ctx, false)
	require.NoError(t, err)
	assert.True(t, st.Ready())
	assert.Zero(t, cloud.Calls("ec2:DescribeVpcs"), "ensure primes the cache")

	_, err = r.Describe(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, cloud.Calls("ec2:DescribeVpcs"))
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	r, cloud, obs := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Ensure(ctx)
	require.NoError(t, err)

	deleted, err := r.Destroy(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)

	for kind, n := range cloud.ResourceCounts() {
		assert.Zero(t, n, kind)
	}
	assert.Equal(t, 1, cloud.Calls("ec2:DisassociateRouteTable"))
	assert.Equal(t, 1, cloud.Calls("ec2:DetachInternetGateway"))
	assert.Len(t, obs.Filter(provisioning.EventResourceDeleted), 4)

	st, err := r.Describe(ctx, false)
	require.NoError(t, err)
	assert.True(t, st.Empty(), "destroy invalidates the cache")
}

func TestDestroy_Nothing(t *testing.T) {
	t.Parallel()
	r, cloud, _ := newTestReconciler(t)

	deleted, err := r.Destroy(context.Background())
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, cloud.MutatingCalls())
}

func TestDestroy_RetriesDependencyViolation(t *testing.T) {
	t.Parallel()
	r, cloud, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Ensure(ctx)
	require.NoError(t, err)
	cloud.FailNext("ec2:DeleteSubnet", fakes.APIError("DependencyViolation", "instances shutting down"))

	deleted, err := r.Destroy(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 2, cloud.Calls("ec2:DeleteSubnet"))
}

func TestEnsure_Unauthorized(t *testing.T) {
	t.Parallel()
	r, cloud, _ := newTestReconciler(t)
	cloud.FailNext("ec2:CreateVpc", fakes.APIError("UnauthorizedOperation", "You are not authorized to perform this operation."))

	_, err := r.Ensure(context.Background())
	require.Error(t, err)

	var ue *provisioning.UnauthorizedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "UnauthorizedOperation", ue.Code)
	assert.Zero(t, cloud.Calls("ec2:CreateSubnet"))
}
