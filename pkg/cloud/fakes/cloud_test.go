package fakes

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/util/tags"
)

func TestWildcard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"amzn2-ami-hvm-2.0.*-x86_64-gp2", "amzn2-ami-hvm-2.0.20240109.0-x86_64-gp2", true},
		{"amzn2-ami-hvm-2.0.*-x86_64-gp2", "amzn2-ami-hvm-2.0.20240109.0-arm64-gp2", false},
		{"*ubuntu*22.04*", "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-20240101", true},
		{"web", "web", true},
		{"we?", "web", true},
		{"web", "webapp", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wildcard(tt.pattern).MatchString(tt.value), "%s ~ %s", tt.pattern, tt.value)
	}
}

func TestCloud_TagFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New()

	_, err := c.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String("172.16.0.0/16"),
		TagSpecifications: tags.ForNetwork().Specs(ec2types.ResourceTypeVpc),
	})
	require.NoError(t, err)
	_, err = c.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})
	require.NoError(t, err)

	out, err := c.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: []ec2types.Filter{tags.NetworkFilter()}})
	require.NoError(t, err)
	require.Len(t, out.Vpcs, 1)
	assert.Equal(t, "172.16.0.0/16", aws.ToString(out.Vpcs[0].CidrBlock))

	all, err := c.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
	require.NoError(t, err)
	assert.Len(t, all.Vpcs, 2)
}

func TestCloud_DeleteOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New()

	vpc, err := c.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("172.16.0.0/16")})
	require.NoError(t, err)
	vpcID := vpc.Vpc.VpcId
	_, err = c.CreateSubnet(ctx, &ec2.CreateSubnetInput{VpcId: vpcID, CidrBlock: aws.String("172.16.0.0/24")})
	require.NoError(t, err)

	_, err = c.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: vpcID})
	require.Error(t, err)
	assert.True(t, awsplatform.IsDependencyViolation(err))

	_, err = c.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String("vpc-missing")})
	assert.True(t, awsplatform.IsNotFound(err))
}

func TestCloud_InstanceLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New()
	c.PendingPolls = 2

	vpc, _ := c.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("172.16.0.0/16")})
	subnet, _ := c.CreateSubnet(ctx, &ec2.CreateSubnetInput{VpcId: vpc.Vpc.VpcId, CidrBlock: aws.String("172.16.0.0/24")})
	ami := c.AddImage(Image{Name: "img", OwnerID: "amazon", CreationDate: "2024-01-01T00:00:00.000Z"})

	run, err := c.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:     aws.String(ami),
		MinCount:    aws.Int32(2),
		MaxCount:    aws.Int32(2),
		ClientToken: aws.String("tok"),
		NetworkInterfaces: []ec2types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex: aws.Int32(0),
			SubnetId:    subnet.Subnet.SubnetId,
		}},
	})
	require.NoError(t, err)
	require.Len(t, run.Instances, 2)

	again, err := c.RunInstances(ctx, &ec2.RunInstancesInput{ClientToken: aws.String("tok")})
	require.NoError(t, err)
	assert.Equal(t, run.Instances[0].InstanceId, again.Instances[0].InstanceId, "client token is idempotent")

	states := func() []ec2types.InstanceStateName {
		out, err := c.DescribeInstances(ctx, &ec2.DescribeInstancesInput{})
		require.NoError(t, err)
		var s []ec2types.InstanceStateName
		for _, r := range out.Reservations {
			for _, i := range r.Instances {
				s = append(s, i.State.Name)
			}
		}
		return s
	}
	assert.Equal(t, []ec2types.InstanceStateName{"pending", "pending"}, states())
	assert.Equal(t, []ec2types.InstanceStateName{"pending", "pending"}, states())
	assert.Equal(t, []ec2types.InstanceStateName{"running", "running"}, states())

	_, err = c.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: subnet.Subnet.SubnetId})
	assert.True(t, awsplatform.IsDependencyViolation(err))

	_, err = c.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: c.InstanceIDs()})
	require.NoError(t, err)
	assert.Equal(t, []ec2types.InstanceStateName{"shutting-down", "shutting-down"}, states())
	assert.Equal(t, []ec2types.InstanceStateName{"terminated", "terminated"}, states())
}

func TestCloud_IAMDeleteConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New()

	_, err := c.CreateUser(ctx, &iam.CreateUserInput{UserName: aws.String("u"), Path: aws.String("/quickhost/")})
	require.NoError(t, err)
	_, err = c.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String("u")})
	require.NoError(t, err)

	_, err = c.DeleteUser(ctx, &iam.DeleteUserInput{UserName: aws.String("u")})
	assert.True(t, awsplatform.IsDependencyViolation(err))

	u, err := c.GetUser(ctx, &iam.GetUserInput{UserName: aws.String("u")})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:user/quickhost/u", aws.ToString(u.User.Arn))
	assert.Equal(t, 2, c.MutatingIAMCalls())
}

func TestCloud_FailNext(t *testing.T) {
	t.Parallel()
	c := New()
	c.FailNext("ec2:DescribeVpcs", APIError("UnauthorizedOperation", "nope"))

	_, err := c.DescribeVpcs(context.Background(), &ec2.DescribeVpcsInput{})
	assert.True(t, awsplatform.IsUnauthorized(err))
	_, err = c.DescribeVpcs(context.Background(), &ec2.DescribeVpcsInput{})
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Calls("ec2:DescribeVpcs"))
}
