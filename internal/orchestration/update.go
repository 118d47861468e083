package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/provisioning/firewall"
)

// UpdateResult is the outcome of Update.
type UpdateResult struct {
	Report *provisioning.Report
	Rules  *firewall.Rules
}

// Update authorizes additional ports and CIDRs on the app firewall.
// Existing rules are left alone.
func (o *Orchestrator) Update(ctx context.Context, p UpdateParams) (*UpdateResult, error) {
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

	fw := o.firewall(p.App, stack.NetworkID)
	res := &UpdateResult{}
	res.Report = provisioning.RunSteps(ctx, o.observer, []provisioning.Step{{
		Name: "firewall",
		Run: func(ctx context.Context) (bool, error) {
			if _, err := fw.Update(ctx, p.Ports, cidrs); err != nil {
				if errors.Is(err, firewall.ErrNotFound) {
					return false, fmt.Errorf("app %s has no firewall, run make first: %w", p.App, err)
				}
				return false, err
			}
			res.Rules, err = fw.Describe(ctx)
			return err == nil, err
		},
	}})
	return res, res.Report.Err()
}
