package orchestration

import (
	"context"
	"errors"

	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/provisioning/compute"
	"github.com/imamik/quickhost/internal/provisioning/firewall"
	"github.com/imamik/quickhost/internal/provisioning/identity"
	"github.com/imamik/quickhost/internal/provisioning/keypair"
	"github.com/imamik/quickhost/internal/provisioning/network"
)

// PasswordNotReady is shown in place of a Windows password that EC2 has
// not generated yet.
const PasswordNotReady = "(not available yet, try again later)"

// Description is the read-only view of one app.
type Description struct {
	App    string
	Region string
	Caller *identity.Caller
	// Principal is nil when the caller may not read IAM.
	Principal *identity.Principal
	Network   *network.Stack
	KeyPair   *keypair.KeyPair
	// Firewall is nil when the app has no security group.
	Firewall    *firewall.Rules
	Instances   []compute.Instance
	OS          string
	Connections []string
	// Passwords maps Windows instance ids to their administrator password.
	Passwords map[string]string
}

// Exists reports whether the app owns anything in the region.
func (d *Description) Exists() bool {
	return d.Firewall != nil || len(d.Instances) > 0 || (d.KeyPair != nil && d.KeyPair.Exists())
}

// Describe reports what an app owns. Nothing is created or changed.
func (o *Orchestrator) Describe(ctx context.Context, p DescribeParams) (*Description, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d := &Description{App: p.App, Region: o.Region()}

	idr, err := o.identityReconciler()
	if err != nil {
		return nil, err
	}
	if d.Caller, err = idr.Caller(ctx); err != nil {
		return nil, err
	}
	d.Principal, err = idr.Describe(ctx)
	switch {
	case provisioning.IsUnauthorized(err):
		provisioning.LogWarning(o.observer, "describe", "identity details unavailable to %s: %v", d.Caller.ARN, err)
	case err != nil:
		return nil, err
	}
	if d.Network, err = o.networkReconciler(networkDefaults).Describe(ctx, false); err != nil {
		return nil, err
	}

	kp := o.keypairs(p.App)
	keyFile := compute.KeyFile(p.App, p.KeyFile)
	if d.KeyPair, err = kp.Describe(ctx, keyFile); err != nil {
		return nil, err
	}
	if d.Firewall, err = o.firewall(p.App, d.Network.NetworkID).Describe(ctx); err != nil {
		return nil, err
	}
	if d.Instances, err = o.compute(p.App).Describe(ctx); err != nil {
		return nil, err
	}
	if len(d.Instances) == 0 {
		return d, nil
	}

	first := d.Instances[0]
	d.OS = compute.OSForImage(ctx, o.clients.EC2, first.ImageID, first.Windows)
	d.Connections = compute.ConnectionStrings(d.Instances, d.OS, keyFile)

	if p.ShowPasswords && compute.IsWindows(d.OS) {
		d.Passwords = make(map[string]string, len(d.Instances))
		for _, inst := range d.Instances {
			password, err := kp.WindowsPassword(ctx, inst.ID, keyFile)
			switch {
			case errors.Is(err, keypair.ErrPasswordNotReady):
				d.Passwords[inst.ID] = PasswordNotReady
			case err != nil:
				provisioning.LogWarning(o.observer, "describe", "password for %s: %v", inst.ID, err)
			default:
				d.Passwords[inst.ID] = password
			}
		}
	}
	return d, nil
}

// ListAll lists every app with running hosts in the region.
func (o *Orchestrator) ListAll(ctx context.Context) ([]string, error) {
	return compute.ListApps(ctx, o.clients.EC2)
}
