package orchestration

import (
	"context"
	"fmt"

	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/provisioning/compute"
	"github.com/imamik/quickhost/internal/provisioning/network"
)

// CreateResult is the outcome of Create.
type CreateResult struct {
	Report  *provisioning.Report
	App     string
	Network *network.Stack
	KeyFile string
	// FirewallID is the app's security group.
	FirewallID string
	Ports      []int32
	CIDRs      []string
	// Compute is nil when nothing was launched.
	Compute *compute.CreateResult
}

// Create launches one batch of hosts for an app inside the shared network.
// The key pair and firewall are created first; an app that already runs
// hosts gets no second batch.
func (o *Orchestrator) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	stack, err := o.readyNetwork(ctx)
	if err != nil {
		return nil, err
	}
	cidrs, err := o.ingressCIDRs(ctx, "firewall", p.CIDRs)
	if err != nil {
		return nil, err
	}

	res := &CreateResult{
		App:     p.App,
		Network: stack,
		KeyFile: compute.KeyFile(p.App, p.KeyFile),
		Ports:   p.Ports,
		CIDRs:   cidrs,
	}
	kp := o.keypairs(p.App)
	fw := o.firewall(p.App, stack.NetworkID)
	cr := o.compute(p.App)

	steps := []provisioning.Step{
		{
			Name: "keypair",
			Run: func(ctx context.Context) (bool, error) {
				return kp.Create(ctx, res.KeyFile)
			},
		},
		{
			Name: "firewall",
			Run: func(ctx context.Context) (bool, error) {
				if _, err := fw.Create(ctx, p.Ports, cidrs); err != nil {
					return false, err
				}
				rules, err := fw.Describe(ctx)
				if err != nil {
					return false, err
				}
				if rules == nil {
					return false, fmt.Errorf("security group %s vanished after create", fw.Name())
				}
				res.FirewallID = rules.PolicyID
				return true, nil
			},
		},
		{
			Name: "compute",
			Run: func(ctx context.Context) (bool, error) {
				out, err := cr.Create(ctx, compute.CreateParams{
					Count:        int32(p.HostCount),
					InstanceType: p.InstanceType,
					OS:           p.OS,
					FirewallID:   res.FirewallID,
					SubnetID:     stack.SubnetID,
					KeyName:      kp.Name(),
					KeyFile:      res.KeyFile,
					UserDataFile: p.UserDataFile,
					DiskSize:     p.DiskSize,
				})
				res.Compute = out
				if err != nil {
					return false, err
				}
				return out != nil, nil
			},
		},
	}
	if p.WaitForPort {
		steps = append(steps, provisioning.Step{
			Name: "connect",
			Run: func(ctx context.Context) (bool, error) {
				return o.waitForHosts(ctx, res.Compute, p.Ports[0])
			},
		})
	}

	res.Report = provisioning.RunSteps(ctx, o.observer, steps)
	return res, res.Report.Err()
}

func (o *Orchestrator) waitForHosts(ctx context.Context, launched *compute.CreateResult, port int32) (bool, error) {
	if launched == nil {
		return false, nil
	}
	for _, inst := range launched.Instances {
		if inst.PublicIP == "" {
			continue
		}
		o.observer.Printf("waiting for %s:%d", inst.PublicIP, port)
		if err := o.waitForPort(ctx, inst.PublicIP, port, o.timeouts.InstanceRunning, o.timeouts.PollInterval); err != nil {
			return false, fmt.Errorf("host %s: %w", inst.ID, err)
		}
	}
	return true, nil
}
