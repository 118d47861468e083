package firewall

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/pkg/cloud/fakes"
)

func newTestManager(t *testing.T, app string) (*Manager, *fakes.Cloud, *provisioning.RecordingObserver) {
	t.Helper()
	cloud := fakes.New()
	vpc, err := cloud.CreateVpc(context.Background(), &ec2.CreateVpcInput{CidrBlock: aws.String(config.DefaultVPCCIDR)})
	require.NoError(t, err)
	obs := provisioning.NewRecordingObserver()
	return NewManager(cloud, obs, config.TestTimeouts(), app, aws.ToString(vpc.Vpc.VpcId)), cloud, obs
}

func TestCreate(t *testing.T) {
	t.Parallel()
	m, cloud, _ := newTestManager(t, "web")
	ctx := context.Background()

	created, err := m.Create(ctx, []int32{22, 80}, []string{"10.0.0.0/8", "203.0.113.7/32"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, cloud.Calls("ec2:AuthorizeSecurityGroupIngress"))

	rules, err := m.Describe(ctx)
	require.NoError(t, err)
	require.NotNil(t, rules)
	assert.NotEmpty(t, rules.PolicyID)
	assert.Equal(t, []string{"22/tcp", "80/tcp"}, rules.Ports)
	assert.Equal(t, []string{"10.0.0.0/8", "203.0.113.7/32"}, rules.CIDRs)
}

func TestCreate_ReusesExistingGroup(t *testing.T) {
	t.Parallel()
	m, cloud, obs := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, []int32{22}, []string{"0.0.0.0/0"})
	require.NoError(t, err)
	cloud.ResetCalls()

	created, err := m.Create(ctx, []int32{22}, []string{"0.0.0.0/0"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, cloud.Calls("ec2:CreateSecurityGroup"))
	assert.Zero(t, cloud.Calls("ec2:AuthorizeSecurityGroupIngress"), "existing rules are skipped")
	assert.True(t, obs.HasEvent(provisioning.EventResourceExists, "security group"))
}

func TestCreate_DuplicatePermissionIsSuccess(t *testing.T) {
	t.Parallel()
	m, cloud, _ := newTestManager(t, "web")
	cloud.FailNext("ec2:AuthorizeSecurityGroupIngress", fakes.APIError("InvalidPermission.Duplicate", "the specified rule already exists"))

	created, err := m.Create(context.Background(), []int32{22, 443}, []string{"0.0.0.0/0"})
	require.NoError(t, err)
	assert.True(t, created)

	rules, err := m.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"443/tcp"}, rules.Ports)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	m, cloud, _ := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, []int32{22}, []string{"10.0.0.0/8"})
	require.NoError(t, err)
	cloud.ResetCalls()

	added, err := m.Update(ctx, []int32{22, 8080}, []string{"10.0.0.0/8", "192.168.0.0/16"})
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 2, cloud.Calls("ec2:AuthorizeSecurityGroupIngress"))

	rules, err := m.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"22/tcp", "8080/tcp"}, rules.Ports)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, rules.CIDRs)

	added, err = m.Update(ctx, []int32{22}, []string{"10.0.0.0/8"})
	require.NoError(t, err)
	assert.False(t, added)
}

func TestUpdate_NoGroup(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, "web")

	_, err := m.Update(context.Background(), []int32{22}, []string{"0.0.0.0/0"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDescribe_PortRange(t *testing.T) {
	t.Parallel()
	m, cloud, _ := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, nil, nil)
	require.NoError(t, err)
	rules, err := m.Describe(ctx)
	require.NoError(t, err)

	_, err = cloud.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(rules.PolicyID),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(8000),
			ToPort:     aws.Int32(8080),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		}},
	})
	require.NoError(t, err)

	rules, err = m.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"8000-8080/tcp"}, rules.Ports)
}

func TestDescribe_Absent(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, "web")

	rules, err := m.Describe(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	m, cloud, _ := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, []int32{22}, []string{"0.0.0.0/0"})
	require.NoError(t, err)
	cloud.FailNext("ec2:DeleteSecurityGroup", fakes.APIError("DependencyViolation", "resource has a dependent object"))

	deleted, err := m.Destroy(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 2, cloud.Calls("ec2:DeleteSecurityGroup"))
	assert.Zero(t, cloud.ResourceCounts()["security-group"])
}

func TestDestroy_Nothing(t *testing.T) {
	t.Parallel()
	m, cloud, _ := newTestManager(t, "web")
	cloud.ResetCalls()

	deleted, err := m.Destroy(context.Background())
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, cloud.MutatingCalls())
}

func TestGroupsAreScopedPerApp(t *testing.T) {
	t.Parallel()
	web, cloud, _ := newTestManager(t, "web")
	ctx := context.Background()
	api := NewManager(cloud, provisioning.NewRecordingObserver(), config.TestTimeouts(), "api", web.vpcID)

	_, err := web.Create(ctx, []int32{80}, []string{"0.0.0.0/0"})
	require.NoError(t, err)

	rules, err := api.Describe(ctx)
	require.NoError(t, err)
	assert.Nil(t, rules)
}
