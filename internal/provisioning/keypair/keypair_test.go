package keypair

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/keyfile"
	"github.com/imamik/quickhost/internal/util/tags"
	"github.com/imamik/quickhost/pkg/cloud/fakes"
)

func newTestManager(t *testing.T, app string) (*Manager, *fakes.Cloud, *provisioning.RecordingObserver, string) {
	t.Helper()
	cloud := fakes.New()
	obs := provisioning.NewRecordingObserver()
	return NewManager(cloud, obs, app), cloud, obs, filepath.Join(t.TempDir(), app)
}

func TestCreate(t *testing.T) {
	t.Parallel()
	m, cloud, _, target := newTestManager(t, "web")
	ctx := context.Background()

	created, err := m.Create(ctx, target)
	require.NoError(t, err)
	assert.True(t, created)

	path := target + keyfile.Extension
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := cloud.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{"web"}})
	require.NoError(t, err)
	require.Len(t, out.KeyPairs, 1)
	assert.Equal(t, "web", tags.Value(out.KeyPairs[0].Tags, tags.KeyApp))

	kp, err := m.Describe(ctx, target)
	require.NoError(t, err)
	assert.True(t, kp.Exists())
	assert.True(t, kp.LocalFileExists)
	assert.True(t, kp.LocalMatches)
	assert.Contains(t, kp.SSHFingerprint, "SHA256:")
}

func TestCreate_OneShotSecret(t *testing.T) {
	t.Parallel()
	m, cloud, obs, target := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, target)
	require.NoError(t, err)
	before, err := os.ReadFile(target + keyfile.Extension)
	require.NoError(t, err)

	created, err := m.Create(ctx, target)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, cloud.Calls("ec2:CreateKeyPair"))
	assert.True(t, obs.HasEvent(provisioning.EventResourceExists, "already exists"))

	after, err := os.ReadFile(target + keyfile.Extension)
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing key file must not be touched")
}

func TestCreate_OverwritesStaleFile(t *testing.T) {
	t.Parallel()
	m, _, obs, target := newTestManager(t, "web")
	path := target + keyfile.Extension
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	created, err := m.Create(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, created, "a fresh key replacing a stale file is still a success")
	assert.True(t, obs.HasEvent(provisioning.EventWarning, "overwrote"))

	_, err = keyfile.Load(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDescribe_Absent(t *testing.T) {
	t.Parallel()
	m, _, _, target := newTestManager(t, "web")

	kp, err := m.Describe(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, kp.Exists())
	assert.False(t, kp.LocalFileExists)
	assert.Equal(t, target+keyfile.Extension, kp.LocalFile)
}

func TestDescribe_ForeignLocalKey(t *testing.T) {
	t.Parallel()
	m, _, _, target := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, target)
	require.NoError(t, err)
	other, err := keyfile.GenerateRSAKeyPair(1024)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(target+keyfile.Extension, other.PrivateKey, 0o600))

	kp, err := m.Describe(ctx, target)
	require.NoError(t, err)
	assert.True(t, kp.LocalFileExists)
	assert.False(t, kp.LocalMatches)
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	m, cloud, _, target := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, target)
	require.NoError(t, err)

	deleted, err := m.Destroy(ctx, target)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, cloud.ResourceCounts()["key-pair"])
	assert.False(t, keyfile.Exists(target+keyfile.Extension))
}

func TestDestroy_Nothing(t *testing.T) {
	t.Parallel()
	m, cloud, _, target := newTestManager(t, "web")

	deleted, err := m.Destroy(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, cloud.MutatingCalls())
}

func TestDestroy_MissingLocalFile(t *testing.T) {
	t.Parallel()
	m, _, obs, target := newTestManager(t, "web")
	ctx := context.Background()

	_, err := m.Create(ctx, target)
	require.NoError(t, err)
	require.NoError(t, os.Remove(target+keyfile.Extension))

	deleted, err := m.Destroy(ctx, target)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, obs.HasEvent(provisioning.EventWarning, "not found"))
}

func launchWindows(t *testing.T, cloud *fakes.Cloud, keyName string) string {
	t.Helper()
	ctx := context.Background()
	vpc, err := cloud.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("172.16.0.0/16")})
	require.NoError(t, err)
	subnet, err := cloud.CreateSubnet(ctx, &ec2.CreateSubnetInput{VpcId: vpc.Vpc.VpcId, CidrBlock: aws.String("172.16.0.0/24")})
	require.NoError(t, err)
	ami := cloud.AddImage(fakes.Image{Name: "Windows_Server-2022-English-Full-Base-2024.01.10", Windows: true, RootSizeGiB: 30})

	out, err := cloud.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:  aws.String(ami),
		MinCount: aws.Int32(1),
		MaxCount: aws.Int32(1),
		KeyName:  aws.String(keyName),
		NetworkInterfaces: []ec2types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex: aws.Int32(0),
			SubnetId:    subnet.Subnet.SubnetId,
		}},
	})
	require.NoError(t, err)
	return aws.ToString(out.Instances[0].InstanceId)
}

func TestWindowsPassword(t *testing.T) {
	t.Parallel()
	m, cloud, _, target := newTestManager(t, "win")
	cloud.PasswordPolls = 1
	ctx := context.Background()

	_, err := m.Create(ctx, target)
	require.NoError(t, err)
	id := launchWindows(t, cloud, m.Name())

	_, err = m.WindowsPassword(ctx, id, target)
	assert.ErrorIs(t, err, ErrPasswordNotReady, "pending instances have no password")

	cloud.SetInstanceState(id, ec2types.InstanceStateNameRunning)
	_, err = m.WindowsPassword(ctx, id, target)
	assert.ErrorIs(t, err, ErrPasswordNotReady)

	password, err := m.WindowsPassword(ctx, id, target)
	require.NoError(t, err)
	assert.Equal(t, cloud.Password(id), password)
}
