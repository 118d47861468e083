package identity

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/credstore"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/naming"
	"github.com/imamik/quickhost/pkg/cloud/fakes"
)

func newTestReconciler(t *testing.T) (*Reconciler, *fakes.Cloud, *credstore.Store, *provisioning.RecordingObserver) {
	t.Helper()
	dir := t.TempDir()
	store := credstore.New(filepath.Join(dir, "config"), filepath.Join(dir, "credentials"))
	cloud := fakes.New()
	obs := provisioning.NewRecordingObserver()
	r := NewReconciler(cloud, cloud, store, obs, config.TestTimeouts(), "eu-west-1")
	return r, cloud, store, obs
}

func TestParseCallerARN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arn       string
		kind      string
		name      string
		account   string
		principal bool
	}{
		{"arn:aws:iam::123456789012:user/admin", "user", "admin", "123456789012", false},
		{"arn:aws:iam::123456789012:user/quickhost/quickhost-user", "user", "quickhost-user", "123456789012", true},
		{"arn:aws:iam::123456789012:user/quickhost-user", "user", "quickhost-user", "123456789012", true},
		{"arn:aws:sts::210987654321:assumed-role/quickhost-user/session", "assumed-role", "quickhost-user", "210987654321", false},
		{"arn:aws:iam::123456789012:root", "root", "", "123456789012", false},
		{"garbage", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.arn, func(t *testing.T) {
			t.Parallel()
			c := ParseCallerARN(tt.arn)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.name, c.Name)
			assert.Equal(t, tt.account, c.Account)
			assert.Equal(t, tt.principal, c.IsPrincipal())
		})
	}
}

func TestPolicyDocument(t *testing.T) {
	t.Parallel()

	for _, action := range naming.Actions() {
		t.Run(action, func(t *testing.T) {
			t.Parallel()
			doc, err := PolicyDocument(action, "123456789012")
			require.NoError(t, err)

			var parsed policyDocument
			require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
			assert.Equal(t, policyVersion, parsed.Version)
			require.NotEmpty(t, parsed.Statement)
			for _, s := range parsed.Statement {
				assert.Equal(t, "Allow", s.Effect)
				assert.NotEmpty(t, s.Action)
				assert.NotEmpty(t, s.Resource)
			}
		})
	}

	doc, err := PolicyDocument(naming.ActionDescribe, "555555555555")
	require.NoError(t, err)
	assert.Contains(t, doc, "arn:aws:iam::555555555555:user/quickhost/*")

	_, err = PolicyDocument("admin", "123456789012")
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	t.Parallel()
	r, cloud, store, _ := newTestReconciler(t)

	p, err := r.Create(context.Background())
	require.NoError(t, err)

	assert.True(t, p.Complete())
	assert.Equal(t, "arn:aws:iam::123456789012:user/quickhost/quickhost-user", p.UserARN)
	assert.Equal(t, "arn:aws:iam::123456789012:group/quickhost/quickhost-users", p.GroupARN)
	for _, action := range naming.Actions() {
		assert.Contains(t, p.PolicyARNs[action], "policy/quickhost/quickhost-"+action)
		assert.NotEmpty(t, cloud.PolicyDocument(naming.Policy(action)))
	}
	require.Len(t, p.AccessKeyIDs, 1)
	assert.Equal(t, p.AccessKeyIDs[0], p.NewAccessKeyID)

	st, err := store.Status(naming.Profile())
	require.NoError(t, err)
	assert.True(t, st.HasConfig)
	assert.Equal(t, "eu-west-1", st.Region)
	assert.Equal(t, "json", st.Output)
	assert.True(t, st.HasCredentials)
	assert.Equal(t, p.NewAccessKeyID, st.AccessKeyID)

	info, err := os.Stat(store.CredentialsPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCreate_Idempotent(t *testing.T) {
	t.Parallel()
	r, cloud, _, obs := newTestReconciler(t)
	ctx := context.Background()

	first, err := r.Create(ctx)
	require.NoError(t, err)
	cloud.ResetCalls()

	second, err := r.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.UserARN, second.UserARN)
	assert.Equal(t, first.PolicyARNs, second.PolicyARNs)
	assert.Empty(t, second.NewAccessKeyID)
	assert.Equal(t, first.AccessKeyIDs, second.AccessKeyIDs)
	for _, op := range []string{"iam:CreateUser", "iam:CreateGroup", "iam:CreatePolicy", "iam:CreateAccessKey"} {
		assert.Zero(t, cloud.Calls(op), op)
	}
	assert.True(t, obs.HasEvent(provisioning.EventWarning, "already exists"))
}

func TestCreate_SelfBootstrapGuard(t *testing.T) {
	t.Parallel()
	r, cloud, store, _ := newTestReconciler(t)
	cloud.SetCaller("arn:aws:iam::123456789012:user/quickhost/quickhost-user")

	_, err := r.Create(context.Background())
	require.Error(t, err)

	var ue *provisioning.UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.SelfBootstrap)
	assert.Equal(t, "quickhost-user", ue.Principal)
	assert.True(t, provisioning.IsSelfBootstrap(err))
	assert.Zero(t, cloud.MutatingIAMCalls())

	ok, err := store.HasProfile(naming.Profile())
	require.NoError(t, err)
	assert.False(t, ok, "guard runs before the local profile is touched")
}

func TestDestroy_SelfBootstrapGuard(t *testing.T) {
	t.Parallel()
	r, cloud, _, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Create(ctx)
	require.NoError(t, err)
	cloud.ResetCalls()
	cloud.SetCaller("arn:aws:iam::123456789012:user/quickhost/quickhost-user")

	deleted, err := r.Destroy(ctx)
	assert.False(t, deleted)
	assert.True(t, provisioning.IsSelfBootstrap(err))
	assert.Zero(t, cloud.MutatingIAMCalls())
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	r, cloud, store, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Create(ctx)
	require.NoError(t, err)

	deleted, err := r.Destroy(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)

	for kind, n := range cloud.IAMCounts() {
		assert.Zero(t, n, kind)
	}
	ok, err := store.HasProfile(naming.Profile())
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := r.Describe(ctx)
	require.NoError(t, err)
	assert.False(t, p.Exists())
}

func TestDestroy_Nothing(t *testing.T) {
	t.Parallel()
	r, cloud, _, obs := newTestReconciler(t)

	deleted, err := r.Destroy(context.Background())
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, cloud.MutatingIAMCalls())
	assert.True(t, obs.HasEvent(provisioning.EventWarning, "no local profile"))
}

func TestDescribe_Partial(t *testing.T) {
	t.Parallel()
	r, cloud, _, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Create(ctx)
	require.NoError(t, err)

	_, err = cloud.RemoveUserFromGroup(ctx, &iam.RemoveUserFromGroupInput{
		GroupName: aws.String(naming.Group()),
		UserName:  aws.String(naming.User()),
	})
	require.NoError(t, err)

	p, err := r.Describe(ctx)
	require.NoError(t, err)
	assert.True(t, p.Exists())
	assert.False(t, p.InGroup)
	assert.False(t, p.Complete())

	// Create repairs the membership.
	p, err = r.Create(ctx)
	require.NoError(t, err)
	assert.True(t, p.Complete())
}

func TestCreate_Unauthorized(t *testing.T) {
	t.Parallel()
	r, cloud, _, _ := newTestReconciler(t)
	cloud.FailNext("iam:CreateUser", fakes.APIError("AccessDenied", "User is not authorized to perform: iam:CreateUser"))

	_, err := r.Create(context.Background())
	require.Error(t, err)
	assert.True(t, provisioning.IsUnauthorized(err))
	assert.False(t, provisioning.IsSelfBootstrap(err))
	assert.Zero(t, cloud.Calls("iam:CreateGroup"))
}
