package tags

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForApp(t *testing.T) {
	t.Parallel()

	got := ForApp("web").Build()
	assert.Equal(t, map[string]string{
		KeyApp:       "web",
		KeyName:      "web",
		KeyManagedBy: ManagedByQuickhost,
	}, got)
}

func TestForNetwork(t *testing.T) {
	t.Parallel()

	got := ForNetwork().Build()
	assert.Equal(t, NetworkSentinel, got[KeyName])
	assert.NotContains(t, got, KeyApp)
}

func TestBuilderIsolation(t *testing.T) {
	t.Parallel()

	b := ForApp("web")
	first := b.Build()
	first["mutated"] = "yes"
	assert.NotContains(t, b.Build(), "mutated")
}

func TestEC2AndSpecs(t *testing.T) {
	t.Parallel()

	b := ForApp("web").With("extra", "1")
	ec2Tags := b.EC2()
	require.Len(t, ec2Tags, 4)
	assert.Equal(t, "Name", aws.ToString(ec2Tags[0].Key))
	assert.Equal(t, "web", Value(ec2Tags, KeyApp))
	assert.Equal(t, "1", Value(ec2Tags, "extra"))
	assert.Equal(t, "", Value(ec2Tags, "missing"))

	specs := b.Specs(ec2types.ResourceTypeInstance, ec2types.ResourceTypeVolume)
	require.Len(t, specs, 2)
	assert.Equal(t, ec2types.ResourceTypeVolume, specs[1].ResourceType)
	assert.Len(t, specs[1].Tags, 4)

	iamTags := b.IAM()
	require.Len(t, iamTags, 4)
	assert.Equal(t, "Name", aws.ToString(iamTags[0].Key))
}

func TestFilters(t *testing.T) {
	t.Parallel()

	f := AppFilter("web")
	assert.Equal(t, "tag:quickhost", aws.ToString(f.Name))
	assert.Equal(t, []string{"web"}, f.Values)

	f = AnyAppFilter()
	assert.Equal(t, "tag-key", aws.ToString(f.Name))
	assert.Equal(t, []string{"quickhost"}, f.Values)

	f = NetworkFilter()
	assert.Equal(t, "tag:Name", aws.ToString(f.Name))

	f = Filter("instance-state-name", "running", "pending")
	assert.Equal(t, []string{"running", "pending"}, f.Values)
}
