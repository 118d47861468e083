package orchestration

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/imamik/quickhost/internal/config"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/provisioning/identity"
	"github.com/imamik/quickhost/internal/provisioning/network"
	"github.com/imamik/quickhost/internal/util/naming"
	"github.com/imamik/quickhost/internal/util/retry"
)

// InitResult is the outcome of Init.
type InitResult struct {
	Report    *provisioning.Report
	Principal *identity.Principal
	Network   *network.Stack
	// Verified is true when the new access key authenticated successfully.
	Verified bool
}

// Init creates the quickhost principal and local profile, then the shared
// network. It must run with administrator credentials.
func (o *Orchestrator) Init(ctx context.Context, p InitParams) (*InitResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	idr, err := o.identityReconciler()
	if err != nil {
		return nil, err
	}
	res := &InitResult{}

	steps := []provisioning.Step{
		{
			Name: "identity",
			Run: func(ctx context.Context) (bool, error) {
				res.Principal, err = idr.Create(ctx)
				if err != nil {
					return false, err
				}
				return res.Principal.Complete(), nil
			},
		},
		{
			Name:            "verify",
			ContinueOnError: true,
			Run: func(ctx context.Context) (bool, error) {
				if p.SkipVerify || res.Principal.NewAccessKeyID == "" {
					return true, nil
				}
				if err := o.verifyPrincipal(ctx); err != nil {
					provisioning.LogWarning(o.observer, "verify", "new access key for %s is not usable yet: %v", naming.User(), err)
					return false, nil
				}
				res.Verified = true
				return true, nil
			},
		},
		{
			Name: "network",
			Run: func(ctx context.Context) (bool, error) {
				res.Network, err = o.networkReconciler(config.NetworkConfig{VPCCIDR: p.VPCCIDR}).Ensure(ctx)
				return err == nil, err
			},
		},
	}
	res.Report = provisioning.RunSteps(ctx, o.observer, steps)
	return res, res.Report.Err()
}

// verifyPrincipal authenticates with the stored key of the new principal.
// Fresh IAM keys take a few seconds to become valid, so auth failures are
// retried with backoff.
func (o *Orchestrator) verifyPrincipal(ctx context.Context) error {
	store, err := o.credentialStore()
	if err != nil {
		return err
	}
	keyID, secret, err := store.Credentials(naming.Profile())
	if err != nil {
		return err
	}
	clients, err := o.newClients(ctx, awsplatform.ProviderContext{Region: o.Region()}, awsplatform.WithStaticCredentials(keyID, secret))
	if err != nil {
		return err
	}
	caller, err := retry.Value(ctx, func() (*identity.Caller, error) {
		out, err := clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			if awsplatform.IsUnauthorized(err) {
				return nil, err
			}
			return nil, retry.Fatal(err)
		}
		return identity.ParseCallerARN(aws.ToString(out.Arn)), nil
	}, retry.WithMaxRetries(o.timeouts.RetryMaxAttempts), retry.WithInitialDelay(o.timeouts.RetryInitialDelay))
	if err != nil {
		return err
	}
	if !caller.IsPrincipal() {
		return fmt.Errorf("stored key authenticates as %s, not %s", caller.ARN, naming.User())
	}
	return nil
}
