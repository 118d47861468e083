package orchestration

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/provisioning/compute"
	"github.com/imamik/quickhost/internal/util/tags"
)

// Destroy removes everything an app owns: key pair, hosts, firewall. Each
// step runs even when an earlier one failed, and absent resources count as
// destroyed, so Destroy can be rerun until it succeeds.
func (o *Orchestrator) Destroy(ctx context.Context, p DestroyParams) (*provisioning.Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	stack, err := o.networkReconciler(networkDefaults).Describe(ctx, false)
	if err != nil {
		return nil, err
	}

	kp := o.keypairs(p.App)
	cr := o.compute(p.App)
	fw := o.firewall(p.App, stack.NetworkID)

	report := provisioning.RunSteps(ctx, o.observer, []provisioning.Step{
		{
			Name:            "keypair",
			ContinueOnError: true,
			Run: func(ctx context.Context) (bool, error) {
				_, err := kp.Destroy(ctx, compute.KeyFile(p.App, p.KeyFile))
				return err == nil, err
			},
		},
		{
			Name:            "compute",
			ContinueOnError: true,
			Run: func(ctx context.Context) (bool, error) {
				_, err := cr.Destroy(ctx)
				return err == nil, err
			},
		},
		{
			Name:            "firewall",
			ContinueOnError: true,
			Run: func(ctx context.Context) (bool, error) {
				_, err := fw.Destroy(ctx)
				return err == nil, err
			},
		},
	})
	return report, report.Err()
}

// DestroyAllResult is the outcome of DestroyAll.
type DestroyAllResult struct {
	Report *provisioning.Report
	Apps   []string
}

// DestroyAll destroys every app in the region, then the shared network,
// then the identity principal unless asked to keep it.
func (o *Orchestrator) DestroyAll(ctx context.Context, p DestroyAllParams) (*DestroyAllResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	apps, err := o.apps(ctx)
	if err != nil {
		return nil, err
	}
	res := &DestroyAllResult{Report: &provisioning.Report{}, Apps: apps}

	for _, app := range apps {
		report, err := o.Destroy(ctx, DestroyParams{App: app, KeyFile: filepath.Join(p.KeyDir, app)})
		if report == nil {
			// refused before any step ran
			provisioning.LogPhaseFailed(o.observer.WithFields(map[string]string{"app": app}), "destroy", err)
			res.Report.Steps = append(res.Report.Steps, provisioning.StepResult{Name: app, Err: err})
			continue
		}
		res.Report.Merge(app, report)
	}

	steps := []provisioning.Step{{
		Name:            "network",
		ContinueOnError: true,
		Run: func(ctx context.Context) (bool, error) {
			_, err := o.networkReconciler(networkDefaults).Destroy(ctx)
			return err == nil, err
		},
	}}
	if !p.KeepIdentity {
		steps = append(steps, provisioning.Step{
			Name:            "identity",
			ContinueOnError: true,
			Run: func(ctx context.Context) (bool, error) {
				idr, err := o.identityReconciler()
				if err != nil {
					return false, err
				}
				_, err = idr.Destroy(ctx)
				return err == nil, err
			},
		})
	}
	tail := provisioning.RunSteps(ctx, o.observer, steps)
	res.Report.Steps = append(res.Report.Steps, tail.Steps...)
	return res, res.Report.Err()
}

// apps names every app that owns a live instance, a security group or a
// key pair in the region.
func (o *Orchestrator) apps(ctx context.Context) ([]string, error) {
	names, err := compute.LiveApps(ctx, o.clients.EC2)
	if err != nil {
		return nil, err
	}

	groups, err := o.clients.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{tags.AnyAppFilter()},
	})
	if err != nil {
		return nil, provisioning.Classify("describe security groups", err)
	}
	for _, g := range groups.SecurityGroups {
		names = append(names, tags.Value(g.Tags, tags.KeyApp))
	}

	keys, err := o.clients.EC2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		Filters: []ec2types.Filter{tags.AnyAppFilter()},
	})
	if err != nil {
		return nil, provisioning.Classify("describe key pairs", err)
	}
	for _, k := range keys.KeyPairs {
		names = append(names, tags.Value(k.Tags, tags.KeyApp))
	}

	names = slices.DeleteFunc(names, func(s string) bool { return s == "" })
	slices.Sort(names)
	return slices.Compact(names), nil
}
