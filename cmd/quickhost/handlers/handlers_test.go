package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/credstore"
	"github.com/imamik/quickhost/internal/orchestration"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/prerequisites"
	"github.com/imamik/quickhost/pkg/cloud/fakes"
)

// env swaps every factory for in-memory versions and restores them when
// the test ends. Tests using it must not run in parallel.
type env struct {
	cloud    *fakes.Cloud
	store    *credstore.Store
	dir      string
	out      *bytes.Buffer
	profiles []awsplatform.ProviderContext
	prompts  []string
	answer   bool
	terminal bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		cloud: fakes.New(),
		store: credstore.New(filepath.Join(dir, "config"), filepath.Join(dir, "credentials")),
		dir:   dir,
		out:   &bytes.Buffer{},
	}
	e.cloud.AddImage(fakes.Image{Name: "amzn2-ami-hvm-2.0.20240101.0-x86_64-gp2", OwnerID: "amazon", CreationDate: "2024-01-01T00:00:00.000Z", RootSizeGiB: 8})

	origLoad, origClients, origLogger, origOrch := loadConfig, newClients, newLogger, newOrchestrator
	origConfirm, origStdout, origTerminal := confirm, stdout, isTerminal
	origStore, origTools, origTTY := newCredStore, checkTools, stdoutIsTTY
	t.Cleanup(func() {
		loadConfig, newClients, newLogger, newOrchestrator = origLoad, origClients, origLogger, origOrch
		confirm, stdout, isTerminal = origConfirm, origStdout, origTerminal
		newCredStore, checkTools, stdoutIsTTY = origStore, origTools, origTTY
	})

	loadConfig = func(string) (*config.Config, error) { return config.Default(), nil }
	newClients = func(_ context.Context, pc awsplatform.ProviderContext, _ ...awsplatform.ClientOption) (*awsplatform.Clients, error) {
		e.profiles = append(e.profiles, pc)
		return e.cloud.Clients(), nil
	}
	newLogger = func(int) logr.Logger { return logr.Discard() }
	newOrchestrator = func(clients *awsplatform.Clients, observer provisioning.Observer) *orchestration.Orchestrator {
		return orchestration.New(clients, observer, config.TestTimeouts(),
			orchestration.WithCredentialStore(e.store),
			orchestration.WithPublicIPLookup(func(context.Context) (string, error) { return "198.51.100.7", nil }),
			orchestration.WithPortWaiter(func(context.Context, string, int32, time.Duration, time.Duration) error { return nil }),
		)
	}
	confirm = func(_ context.Context, prompt string) (bool, error) {
		e.prompts = append(e.prompts, prompt)
		return e.answer, nil
	}
	stdout = e.out
	isTerminal = func() bool { return e.terminal }
	newCredStore = func() (*credstore.Store, error) { return e.store, nil }
	checkTools = func() *prerequisites.CheckResults {
		return &prerequisites.CheckResults{Results: []prerequisites.CheckResult{
			{Tool: prerequisites.Tool{Name: "ssh", Required: true}, Found: true, Path: "/usr/bin/ssh", Version: "OpenSSH_9.6"},
		}}
	}
	stdoutIsTTY = func() bool { return false }
	return e
}

func (e *env) keyFile(app string) string {
	return filepath.Join(e.dir, app)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, ExitOK},
		{"declined", ErrAborted, ExitAborted},
		{"no terminal", fmt.Errorf("%w: pass --yes", ErrAborted), ExitAborted},
		{"warnings", ErrWarnings, ExitGeneralFailure},
		{"other", errors.New("boom"), ExitGeneralFailure},
		{"unauthorized", &provisioning.UnauthorizedError{Operation: "make", Code: "UnauthorizedOperation"}, ExitFailAuth},
		{"raw access denied", fmt.Errorf("create: %w", fakes.APIError("AccessDenied", "no")), ExitFailAuth},
		{"self bootstrap", &provisioning.UnauthorizedError{Operation: "init", SelfBootstrap: true}, ExitNotAuthorizedUser},
		{"timeout", fmt.Errorf("compute: %w", &provisioning.TimeoutError{Operation: "wait"}), ExitKnownIssue},
		{"not initialized", fmt.Errorf("%w (vpc missing)", provisioning.ErrNotInitialized), ExitKnownIssue},
		{"joined timeout", errors.Join(errors.New("keypair"), &provisioning.TimeoutError{}), ExitKnownIssue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestHint(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Hint(nil))
	assert.Empty(t, Hint(ErrWarnings))
	assert.Contains(t, Hint(provisioning.ErrNotInitialized), "quickhost init")
	assert.Contains(t, Hint(&provisioning.UnauthorizedError{}), "different profile")
	assert.Contains(t, Hint(&provisioning.UnauthorizedError{SelfBootstrap: true}), "administrator profile")
}

func TestOpen_ProfileSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := open(ctx, Globals{}, false)
	require.NoError(t, err)
	_, err = open(ctx, Globals{}, true)
	require.NoError(t, err)
	_, err = open(ctx, Globals{Profile: "admin", Region: "eu-west-1"}, true)
	require.NoError(t, err)

	assert.Equal(t, []awsplatform.ProviderContext{
		{Profile: config.DefaultProfile, Region: "us-east-1"},
		{Profile: "", Region: "us-east-1"},
		{Profile: "admin", Region: "eu-west-1"},
	}, e.profiles)
}

func TestMakeOptions_FlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cfg.HostCount = 3
	cfg.Ports = []int32{8080}
	cfg.CIDRs = []string{"10.0.0.0/8"}
	cfg.DiskSize = 20
	s := &session{cfg: cfg}

	p := MakeOptions{App: "web"}.params(s)
	assert.Equal(t, 3, p.HostCount)
	assert.Equal(t, []int32{8080}, p.Ports)
	assert.Equal(t, []string{"10.0.0.0/8"}, p.CIDRs)
	assert.Equal(t, int32(20), p.DiskSize)
	assert.Equal(t, config.DefaultInstanceType, p.InstanceType)

	p = MakeOptions{App: "web", HostCount: 1, Ports: []int32{22}, InstanceType: "t3.small"}.params(s)
	assert.Equal(t, 1, p.HostCount)
	assert.Equal(t, []int32{22}, p.Ports)
	assert.Equal(t, "t3.small", p.InstanceType)
}

func TestLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := Globals{Yes: true}

	require.NoError(t, Init(ctx, g, InitOptions{SkipVerify: true}))
	assert.Contains(t, e.out.String(), "init done")

	e.out.Reset()
	require.NoError(t, Make(ctx, g, MakeOptions{App: "web", HostCount: 2, KeyFile: e.keyFile("web")}))
	assert.Contains(t, e.out.String(), "make web done")
	assert.Contains(t, e.out.String(), "ssh -i "+e.keyFile("web")+".pem ec2-user@")
	assert.Empty(t, e.prompts, "--yes skips prompts")

	e.out.Reset()
	require.NoError(t, Describe(ctx, g, DescribeOptions{App: "web", KeyFile: e.keyFile("web")}))
	assert.Contains(t, e.out.String(), "web (us-east-1)")
	assert.Contains(t, e.out.String(), "22/tcp")

	e.out.Reset()
	require.NoError(t, ListAll(ctx, g))
	assert.Regexp(t, `web\s+2`, e.out.String())

	e.out.Reset()
	require.NoError(t, Update(ctx, g, UpdateOptions{App: "web", Ports: []int32{443}}))
	assert.Contains(t, e.out.String(), "443/tcp")

	e.out.Reset()
	err := Make(ctx, g, MakeOptions{App: "web", KeyFile: e.keyFile("web")})
	assert.ErrorIs(t, err, ErrWarnings, "a second batch is refused with a warning")
	assert.Equal(t, ExitGeneralFailure, ExitCode(err))

	e.out.Reset()
	require.NoError(t, Destroy(ctx, g, DestroyOptions{App: "web", KeyFile: e.keyFile("web")}))
	assert.Contains(t, e.out.String(), "destroy web done")

	e.out.Reset()
	require.NoError(t, DestroyAll(ctx, g, DestroyAllOptions{KeyDir: e.dir}))
	assert.Contains(t, e.out.String(), "destroy-all done")
	for kind, n := range e.cloud.ResourceCounts() {
		assert.Zero(t, n, kind)
	}
}

func TestMake_NotInitialized(t *testing.T) {
	e := newEnv(t)

	err := Make(context.Background(), Globals{Yes: true}, MakeOptions{App: "web", KeyFile: e.keyFile("web")})
	assert.ErrorIs(t, err, provisioning.ErrNotInitialized)
	assert.Equal(t, ExitKnownIssue, ExitCode(err))
	assert.Zero(t, e.cloud.MutatingCalls())
}

func TestMake_NeedsYesWithoutTerminal(t *testing.T) {
	e := newEnv(t)

	err := Make(context.Background(), Globals{}, MakeOptions{App: "web"})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Contains(t, err.Error(), "--yes")
	assert.Equal(t, ExitAborted, ExitCode(err))
	assert.Empty(t, e.prompts)
	assert.Zero(t, e.cloud.MutatingCalls())
}

func TestDestroy_Declined(t *testing.T) {
	e := newEnv(t)
	e.terminal = true
	e.answer = false

	err := Destroy(context.Background(), Globals{}, DestroyOptions{App: "web"})
	assert.ErrorIs(t, err, ErrAborted)
	require.Len(t, e.prompts, 1)
	assert.Contains(t, e.prompts[0], "destroy every host")
	assert.Zero(t, e.cloud.MutatingCalls())
}

func TestDestroyAll_Confirmed(t *testing.T) {
	e := newEnv(t)
	e.terminal = true
	e.answer = true

	require.NoError(t, DestroyAll(context.Background(), Globals{}, DestroyAllOptions{KeepIdentity: true}))
	require.Len(t, e.prompts, 1)
	assert.Contains(t, e.prompts[0], "every app and the network")
}

func TestInit_SelfBootstrap(t *testing.T) {
	e := newEnv(t)
	e.cloud.SetCaller("arn:aws:iam::123456789012:user/quickhost/quickhost-user")

	err := Init(context.Background(), Globals{}, InitOptions{})
	require.Error(t, err)
	assert.Equal(t, ExitNotAuthorizedUser, ExitCode(err))
	assert.Zero(t, e.cloud.MutatingCalls())
}

func TestDoctor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := Doctor(ctx, Globals{}, false)
	require.Error(t, err, "the quickhost profile does not exist yet")
	assert.Contains(t, e.out.String(), "[!!] profile quickhost-user")
	assert.Contains(t, e.out.String(), "run quickhost init")
	assert.Contains(t, e.out.String(), "[OK] ssh")
	assert.Contains(t, e.out.String(), "[??] terminal")

	require.NoError(t, e.store.PutCredentials(config.DefaultProfile, "AKIATEST", "secret"))
	e.out.Reset()
	require.NoError(t, Doctor(ctx, Globals{}, true))

	var status DoctorStatus
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &status))
	assert.Equal(t, "us-east-1", status.Region)
	assert.True(t, status.Healthy())
	require.NotEmpty(t, status.Checks)
	assert.Equal(t, "region us-east-1", status.Checks[0].Name)
}

func TestDoctor_UnsupportedRegion(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.PutCredentials(config.DefaultProfile, "AKIATEST", "secret"))

	err := Doctor(context.Background(), Globals{Region: "mars-north-1"}, false)
	require.Error(t, err)
	assert.Contains(t, e.out.String(), "[!!] region mars-north-1")
}
