package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/quickhost/internal/util/tags"
)

// DefaultRouteCIDR is the destination of the internet route.
const DefaultRouteCIDR = "0.0.0.0/0"

// ErrAmbiguous is returned when more than one object carries the network
// sentinel tag and quickhost cannot tell which one is its own.
var ErrAmbiguous = errors.New("more than one quickhost network object found")

// Stack identifies the shared network objects. Empty ids mean absent.
type Stack struct {
	NetworkID    string
	SubnetID     string
	GatewayID    string
	RouteTableID string

	CIDR       string
	SubnetCIDR string

	// GatewayAttached is true when the gateway is attached to NetworkID.
	GatewayAttached bool
	// DefaultRoute is true when the route table routes 0.0.0.0/0 via GatewayID.
	DefaultRoute bool
	// Associated is true when the route table is associated with SubnetID.
	Associated bool
	// AssociationIDs are the non-main associations of the route table.
	AssociationIDs []string
}

// Empty reports whether none of the four objects exist.
func (s *Stack) Empty() bool {
	return s == nil || (s.NetworkID == "" && s.SubnetID == "" && s.GatewayID == "" && s.RouteTableID == "")
}

// Ready reports whether every object exists and is wired together.
func (s *Stack) Ready() bool {
	return s != nil && s.NetworkID != "" && s.SubnetID != "" && s.GatewayID != "" && s.RouteTableID != "" &&
		s.GatewayAttached && s.DefaultRoute && s.Associated
}

// Problems lists what keeps the stack from being Ready.
func (s *Stack) Problems() []string {
	if s.Empty() {
		return []string{"network not found"}
	}
	var out []string
	for _, m := range []struct {
		id, what string
	}{
		{s.NetworkID, "vpc"},
		{s.SubnetID, "subnet"},
		{s.GatewayID, "internet gateway"},
		{s.RouteTableID, "route table"},
	} {
		if m.id == "" {
			out = append(out, m.what+" missing")
		}
	}
	if s.GatewayID != "" && s.NetworkID != "" && !s.GatewayAttached {
		out = append(out, "internet gateway not attached")
	}
	if s.RouteTableID != "" && !s.DefaultRoute {
		out = append(out, "default route missing")
	}
	if s.RouteTableID != "" && s.SubnetID != "" && !s.Associated {
		out = append(out, "route table not associated with subnet")
	}
	return out
}

func single[T any](kind string, items []T) (T, bool, error) {
	var zero T
	switch len(items) {
	case 0:
		return zero, false, nil
	case 1:
		return items[0], true, nil
	default:
		return zero, false, fmt.Errorf("%w: %d %ss tagged %s=%s", ErrAmbiguous, len(items), kind, tags.KeyName, tags.NetworkSentinel)
	}
}

func sentinelFilters(vpcID string) []ec2types.Filter {
	filters := []ec2types.Filter{tags.NetworkFilter()}
	if vpcID != "" {
		filters = append(filters, tags.Filter("vpc-id", vpcID))
	}
	return filters
}

func (r *Reconciler) lookupVpc(ctx context.Context) (*ec2types.Vpc, bool, error) {
	out, err := r.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: sentinelFilters("")})
	if err != nil {
		return nil, false, err
	}
	v, found, err := single("vpc", out.Vpcs)
	return &v, found, err
}

func (r *Reconciler) lookupGateway(ctx context.Context) (*ec2types.InternetGateway, bool, error) {
	out, err := r.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{Filters: sentinelFilters("")})
	if err != nil {
		return nil, false, err
	}
	g, found, err := single("internet gateway", out.InternetGateways)
	return &g, found, err
}

func (r *Reconciler) lookupSubnet(ctx context.Context, vpcID string) (*ec2types.Subnet, bool, error) {
	out, err := r.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: sentinelFilters(vpcID)})
	if err != nil {
		return nil, false, err
	}
	s, found, err := single("subnet", out.Subnets)
	return &s, found, err
}

func (r *Reconciler) lookupRouteTable(ctx context.Context, vpcID string) (*ec2types.RouteTable, bool, error) {
	out, err := r.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: sentinelFilters(vpcID)})
	if err != nil {
		return nil, false, err
	}
	rt, found, err := single("route table", out.RouteTables)
	return &rt, found, err
}

// attachedTo returns the VPC the gateway is attached to, or "".
func attachedTo(g *ec2types.InternetGateway) string {
	for _, a := range g.Attachments {
		// EC2 reports "available" for gateway attachments.
		if a.State == ec2types.AttachmentStatusAttached || a.State == "available" {
			return aws.ToString(a.VpcId)
		}
	}
	return ""
}

func hasDefaultRoute(rt *ec2types.RouteTable, gatewayID string) bool {
	for _, route := range rt.Routes {
		if aws.ToString(route.DestinationCidrBlock) == DefaultRouteCIDR &&
			(gatewayID == "" || aws.ToString(route.GatewayId) == gatewayID) {
			return true
		}
	}
	return false
}

func subnetAssociations(rt *ec2types.RouteTable) []ec2types.RouteTableAssociation {
	var out []ec2types.RouteTableAssociation
	for _, a := range rt.Associations {
		if !aws.ToBool(a.Main) {
			out = append(out, a)
		}
	}
	return out
}

func associatedWith(rt *ec2types.RouteTable, subnetID string) bool {
	for _, a := range subnetAssociations(rt) {
		if aws.ToString(a.SubnetId) == subnetID {
			return true
		}
	}
	return false
}

// describe reads the four objects and their relationships from EC2.
func (r *Reconciler) describe(ctx context.Context) (*Stack, error) {
	st := &Stack{}

	vpc, found, err := r.lookupVpc(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe vpc: %w", err)
	}
	if found {
		st.NetworkID = aws.ToString(vpc.VpcId)
		st.CIDR = aws.ToString(vpc.CidrBlock)
	}

	gw, found, err := r.lookupGateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe internet gateway: %w", err)
	}
	if found {
		st.GatewayID = aws.ToString(gw.InternetGatewayId)
		st.GatewayAttached = st.NetworkID != "" && attachedTo(gw) == st.NetworkID
	}

	if st.NetworkID == "" {
		return st, nil
	}

	subnet, found, err := r.lookupSubnet(ctx, st.NetworkID)
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnet: %w", err)
	}
	if found {
		st.SubnetID = aws.ToString(subnet.SubnetId)
		st.SubnetCIDR = aws.ToString(subnet.CidrBlock)
	}

	rt, found, err := r.lookupRouteTable(ctx, st.NetworkID)
	if err != nil {
		return nil, fmt.Errorf("failed to describe route table: %w", err)
	}
	if found {
		st.RouteTableID = aws.ToString(rt.RouteTableId)
		st.DefaultRoute = st.GatewayID != "" && hasDefaultRoute(rt, st.GatewayID)
		st.Associated = st.SubnetID != "" && associatedWith(rt, st.SubnetID)
		for _, a := range subnetAssociations(rt) {
			st.AssociationIDs = append(st.AssociationIDs, aws.ToString(a.RouteTableAssociationId))
		}
	}
	return st, nil
}
