package network

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/quickhost/internal/config"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/memo"
	"github.com/imamik/quickhost/internal/util/tags"
)

const phase = "network"

// Reconciler ensures, describes and destroys the shared network stack.
type Reconciler struct {
	ec2      awsplatform.EC2API
	observer provisioning.Observer
	timeouts *config.Timeouts
	cache    *memo.Cache[*Stack]
	cfg      config.NetworkConfig
}

// NewReconciler returns a network reconciler. A nil cache gets a private
// one with the configured TTL.
func NewReconciler(client awsplatform.EC2API, observer provisioning.Observer, timeouts *config.Timeouts, cache *memo.Cache[*Stack], cfg config.NetworkConfig) *Reconciler {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	if cache == nil {
		cache = memo.New[*Stack](timeouts.NetworkCacheTTL)
	}
	if cfg.VPCCIDR == "" {
		cfg.VPCCIDR = config.DefaultVPCCIDR
	}
	return &Reconciler{
		ec2:      client,
		observer: observer,
		timeouts: timeouts,
		cache:    cache,
		cfg:      cfg,
	}
}

// Describe returns the network stack. A missing network is an empty Stack,
// not an error. Results are memoized unless fresh is set.
func (r *Reconciler) Describe(ctx context.Context, fresh bool) (*Stack, error) {
	return r.cache.Get(ctx, fresh, r.describe)
}

// Ensure creates missing network objects and repairs broken relationships.
// Existing objects are adopted, never recreated.
func (r *Reconciler) Ensure(ctx context.Context) (*Stack, error) {
	vpc, err := r.ensureVpc(ctx)
	if err != nil {
		return nil, err
	}
	vpcID := aws.ToString(vpc.VpcId)

	gatewayID, err := r.ensureGateway(ctx, vpcID)
	if err != nil {
		return nil, err
	}

	subnetID, err := r.ensureSubnet(ctx, vpcID)
	if err != nil {
		return nil, err
	}

	if err := r.ensureRouteTable(ctx, vpcID, gatewayID, subnetID); err != nil {
		return nil, err
	}

	st, err := r.describe(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Set(st)
	if !st.Ready() {
		return st, fmt.Errorf("network stack incomplete after ensure: %v", st.Problems())
	}
	return st, nil
}

func (r *Reconciler) ensureVpc(ctx context.Context) (*ec2types.Vpc, error) {
	res, err := (&awsplatform.EnsureOperation[*ec2types.Vpc]{
		Name:         tags.NetworkSentinel,
		ResourceType: "vpc",
		Describe:     r.lookupVpc,
		Create: func(ctx context.Context) (*ec2types.Vpc, error) {
			provisioning.LogResourceCreating(r.observer, phase, "vpc", r.cfg.VPCCIDR)
			out, err := r.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
				CidrBlock:         aws.String(r.cfg.VPCCIDR),
				TagSpecifications: tags.ForNetwork().Specs(ec2types.ResourceTypeVpc),
			})
			if err != nil {
				return nil, provisioning.Classify("create vpc", err)
			}
			return out.Vpc, nil
		},
	}).Execute(ctx)
	if err != nil {
		return nil, err
	}

	id := aws.ToString(res.Resource.VpcId)
	if !res.Created {
		provisioning.LogResourceExists(r.observer, phase, "vpc", tags.NetworkSentinel, id)
		if cidr := aws.ToString(res.Resource.CidrBlock); cidr != r.cfg.VPCCIDR {
			provisioning.LogWarning(r.observer, phase, "existing vpc %s uses %s, not the configured %s", id, cidr, r.cfg.VPCCIDR)
		}
		return res.Resource, nil
	}

	if err := r.waitVpcAvailable(ctx, id); err != nil {
		return nil, err
	}
	provisioning.LogResourceCreated(r.observer, phase, "vpc", tags.NetworkSentinel, id)
	return res.Resource, nil
}

func (r *Reconciler) waitVpcAvailable(ctx context.Context, vpcID string) error {
	minDelay := r.timeouts.PollInterval
	if minDelay <= 0 {
		minDelay = time.Second
	}
	waiter := ec2.NewVpcAvailableWaiter(r.ec2, func(o *ec2.VpcAvailableWaiterOptions) {
		o.MinDelay = minDelay
		o.MaxDelay = max(minDelay, 15*time.Second)
	})
	if err := waiter.Wait(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}}, r.timeouts.Network); err != nil {
		return fmt.Errorf("vpc %s did not become available: %w", vpcID, err)
	}
	return nil
}

func (r *Reconciler) ensureGateway(ctx context.Context, vpcID string) (string, error) {
	res, err := (&awsplatform.EnsureOperation[*ec2types.InternetGateway]{
		Name:         tags.NetworkSentinel,
		ResourceType: "internet gateway",
		Describe:     r.lookupGateway,
		Create: func(ctx context.Context) (*ec2types.InternetGateway, error) {
			provisioning.LogResourceCreating(r.observer, phase, "internet gateway", tags.NetworkSentinel)
			out, err := r.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
				TagSpecifications: tags.ForNetwork().Specs(ec2types.ResourceTypeInternetGateway),
			})
			if err != nil {
				return nil, provisioning.Classify("create internet gateway", err)
			}
			return out.InternetGateway, nil
		},
	}).Execute(ctx)
	if err != nil {
		return "", err
	}

	gw := res.Resource
	id := aws.ToString(gw.InternetGatewayId)
	if res.Created {
		provisioning.LogResourceCreated(r.observer, phase, "internet gateway", tags.NetworkSentinel, id)
	} else {
		provisioning.LogResourceExists(r.observer, phase, "internet gateway", tags.NetworkSentinel, id)
	}

	current := attachedTo(gw)
	if current == vpcID {
		return id, nil
	}
	if current != "" {
		if _, err := r.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(id),
			VpcId:             aws.String(current),
		}); err != nil && !awsplatform.IsNotFound(err) {
			return "", provisioning.Classify("detach internet gateway", err)
		}
	}
	if _, err := r.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(id),
		VpcId:             aws.String(vpcID),
	}); err != nil {
		return "", provisioning.Classify("attach internet gateway", err)
	}
	if !res.Created {
		what := "attached to " + vpcID
		if current != "" {
			what = fmt.Sprintf("moved from %s to %s", current, vpcID)
		}
		provisioning.LogResourceRepaired(r.observer, phase, "internet gateway", id, what)
	}
	return id, nil
}

func (r *Reconciler) ensureSubnet(ctx context.Context, vpcID string) (string, error) {
	cidr, err := r.cfg.SubnetCIDR()
	if err != nil {
		return "", err
	}
	res, err := (&awsplatform.EnsureOperation[*ec2types.Subnet]{
		Name:         tags.NetworkSentinel,
		ResourceType: "subnet",
		Describe: func(ctx context.Context) (*ec2types.Subnet, bool, error) {
			return r.lookupSubnet(ctx, vpcID)
		},
		Create: func(ctx context.Context) (*ec2types.Subnet, error) {
			provisioning.LogResourceCreating(r.observer, phase, "subnet", cidr)
			out, err := r.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
				VpcId:             aws.String(vpcID),
				CidrBlock:         aws.String(cidr),
				TagSpecifications: tags.ForNetwork().Specs(ec2types.ResourceTypeSubnet),
			})
			if err != nil {
				return nil, provisioning.Classify("create subnet", err)
			}
			return out.Subnet, nil
		},
	}).Execute(ctx)
	if err != nil {
		return "", err
	}

	id := aws.ToString(res.Resource.SubnetId)
	if res.Created {
		provisioning.LogResourceCreated(r.observer, phase, "subnet", tags.NetworkSentinel, id)
	} else {
		provisioning.LogResourceExists(r.observer, phase, "subnet", tags.NetworkSentinel, id)
	}
	return id, nil
}

func (r *Reconciler) ensureRouteTable(ctx context.Context, vpcID, gatewayID, subnetID string) error {
	res, err := (&awsplatform.EnsureOperation[*ec2types.RouteTable]{
		Name:         tags.NetworkSentinel,
		ResourceType: "route table",
		Describe: func(ctx context.Context) (*ec2types.RouteTable, bool, error) {
			return r.lookupRouteTable(ctx, vpcID)
		},
		Create: func(ctx context.Context) (*ec2types.RouteTable, error) {
			provisioning.LogResourceCreating(r.observer, phase, "route table", tags.NetworkSentinel)
			out, err := r.ec2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
				VpcId:             aws.String(vpcID),
				TagSpecifications: tags.ForNetwork().Specs(ec2types.ResourceTypeRouteTable),
			})
			if err != nil {
				return nil, provisioning.Classify("create route table", err)
			}
			return out.RouteTable, nil
		},
	}).Execute(ctx)
	if err != nil {
		return err
	}

	rt := res.Resource
	id := aws.ToString(rt.RouteTableId)
	if res.Created {
		provisioning.LogResourceCreated(r.observer, phase, "route table", tags.NetworkSentinel, id)
	} else {
		provisioning.LogResourceExists(r.observer, phase, "route table", tags.NetworkSentinel, id)
	}

	if !hasDefaultRoute(rt, gatewayID) {
		if err := r.ensureDefaultRoute(ctx, rt, gatewayID, res.Created); err != nil {
			return err
		}
	}

	if !associatedWith(rt, subnetID) {
		if _, err := r.ec2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: aws.String(id),
			SubnetId:     aws.String(subnetID),
		}); err != nil {
			return provisioning.Classify("associate route table", err)
		}
		if !res.Created {
			provisioning.LogResourceRepaired(r.observer, phase, "route table", id, "associated with "+subnetID)
		}
	}
	return nil
}

// ensureDefaultRoute points 0.0.0.0/0 at gatewayID. A route left behind by a
// deleted or foreign gateway (a blackhole) is replaced in place.
func (r *Reconciler) ensureDefaultRoute(ctx context.Context, rt *ec2types.RouteTable, gatewayID string, created bool) error {
	id := aws.ToString(rt.RouteTableId)
	stale := hasDefaultRoute(rt, "")
	if !stale {
		_, err := r.ec2.CreateRoute(ctx, &ec2.CreateRouteInput{
			RouteTableId:         aws.String(id),
			DestinationCidrBlock: aws.String(DefaultRouteCIDR),
			GatewayId:            aws.String(gatewayID),
		})
		switch {
		case err == nil:
			if !created {
				provisioning.LogResourceRepaired(r.observer, phase, "route table", id, "added default route via "+gatewayID)
			}
			return nil
		case !awsplatform.IsAlreadyExists(err):
			return provisioning.Classify("create default route", err)
		}
	}

	if _, err := r.ec2.ReplaceRoute(ctx, &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(id),
		DestinationCidrBlock: aws.String(DefaultRouteCIDR),
		GatewayId:            aws.String(gatewayID),
	}); err != nil {
		return provisioning.Classify("replace default route", err)
	}
	provisioning.LogResourceRepaired(r.observer, phase, "route table", id, "replaced default route via "+gatewayID)
	return nil
}

// Destroy removes the network stack. It reports false when nothing existed.
// Dependency violations (instances still shutting down) are retried.
func (r *Reconciler) Destroy(ctx context.Context) (bool, error) {
	st, err := r.describe(ctx)
	if err != nil {
		return false, err
	}
	defer r.cache.Invalidate()

	if st.Empty() {
		provisioning.LogResourceAbsent(r.observer, phase, "network", tags.NetworkSentinel)
		return false, nil
	}

	if st.RouteTableID != "" {
		for _, assoc := range st.AssociationIDs {
			if _, err := r.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: aws.String(assoc),
			}); err != nil && !awsplatform.IsNotFound(err) {
				return false, provisioning.Classify("disassociate route table", err)
			}
		}
		if err := r.delete(ctx, "route table", st.RouteTableID, func(ctx context.Context) error {
			_, err := r.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(st.RouteTableID)})
			return err
		}); err != nil {
			return false, err
		}
	}

	if st.GatewayID != "" {
		if err := r.detachGateway(ctx, st.GatewayID); err != nil {
			return false, err
		}
		if err := r.delete(ctx, "internet gateway", st.GatewayID, func(ctx context.Context) error {
			_, err := r.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: aws.String(st.GatewayID)})
			return err
		}); err != nil {
			return false, err
		}
	}

	if st.SubnetID != "" {
		if err := r.delete(ctx, "subnet", st.SubnetID, func(ctx context.Context) error {
			_, err := r.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(st.SubnetID)})
			return err
		}); err != nil {
			return false, err
		}
	}

	if st.NetworkID != "" {
		if err := r.delete(ctx, "vpc", st.NetworkID, func(ctx context.Context) error {
			_, err := r.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(st.NetworkID)})
			return err
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// detachGateway detaches the gateway from whatever VPC it is attached to.
func (r *Reconciler) detachGateway(ctx context.Context, gatewayID string) error {
	out, err := r.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		InternetGatewayIds: []string{gatewayID},
	})
	if err != nil {
		if awsplatform.IsNotFound(err) {
			return nil
		}
		return provisioning.Classify("describe internet gateway", err)
	}
	for _, gw := range out.InternetGateways {
		vpcID := attachedTo(&gw)
		if vpcID == "" {
			continue
		}
		if _, err := r.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(gatewayID),
			VpcId:             aws.String(vpcID),
		}); err != nil && !awsplatform.IsNotFound(err) && awsplatform.ErrorCode(err) != "Gateway.NotAttached" {
			return provisioning.Classify("detach internet gateway", err)
		}
	}
	return nil
}

func (r *Reconciler) delete(ctx context.Context, resourceType, id string, fn func(context.Context) error) error {
	provisioning.LogResourceDeleting(r.observer, phase, resourceType, id)
	deleted, err := (&awsplatform.DeleteOperation{
		Name:              id,
		ResourceType:      resourceType,
		Delete:            fn,
		Timeout:           r.timeouts.Delete,
		RetryMaxAttempts:  r.timeouts.RetryMaxAttempts,
		RetryInitialDelay: r.timeouts.RetryInitialDelay,
	}).Execute(ctx)
	if err != nil {
		return provisioning.Classify("delete "+resourceType, err)
	}
	if deleted {
		provisioning.LogResourceDeleted(r.observer, phase, resourceType, id)
	} else {
		provisioning.LogResourceAbsent(r.observer, phase, resourceType, id)
	}
	return nil
}
