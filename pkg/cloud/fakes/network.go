package fakes

import (
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

func cloneVpc(v *ec2types.Vpc) ec2types.Vpc {
	out := *v
	out.Tags = slices.Clone(v.Tags)
	return out
}

func cloneSubnet(s *ec2types.Subnet) ec2types.Subnet {
	out := *s
	out.Tags = slices.Clone(s.Tags)
	return out
}

func cloneGateway(g *ec2types.InternetGateway) ec2types.InternetGateway {
	out := *g
	out.Tags = slices.Clone(g.Tags)
	out.Attachments = slices.Clone(g.Attachments)
	return out
}

func cloneRouteTable(rt *ec2types.RouteTable) ec2types.RouteTable {
	out := *rt
	out.Tags = slices.Clone(rt.Tags)
	out.Routes = slices.Clone(rt.Routes)
	out.Associations = slices.Clone(rt.Associations)
	return out
}

func (c *Cloud) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeVpcs"); err != nil {
		return nil, err
	}
	for _, id := range in.VpcIds {
		if _, ok := c.vpcs[id]; !ok {
			return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", id)
		}
	}

	out := &ec2.DescribeVpcsOutput{}
	for _, id := range sortedKeys(c.vpcs) {
		v := c.vpcs[id]
		if len(in.VpcIds) > 0 && !slices.Contains(in.VpcIds, id) {
			continue
		}
		if !matches(in.Filters, v.Tags, func(name string) ([]string, bool) {
			switch name {
			case "vpc-id":
				return one(v.VpcId), true
			case "cidr", "cidr-block-association.cidr-block":
				return one(v.CidrBlock), true
			case "state":
				return []string{string(v.State)}, true
			}
			return nil, false
		}) {
			continue
		}
		out.Vpcs = append(out.Vpcs, cloneVpc(v))
	}
	return out, nil
}

func (c *Cloud) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:CreateVpc"); err != nil {
		return nil, err
	}
	id := c.nextID("vpc")
	v := &ec2types.Vpc{
		VpcId:     aws.String(id),
		CidrBlock: in.CidrBlock,
		State:     ec2types.VpcStateAvailable,
		OwnerId:   aws.String(c.AccountID),
		Tags:      tagSpec(in.TagSpecifications, ec2types.ResourceTypeVpc),
	}
	c.vpcs[id] = v

	// Every VPC comes with a main route table and a default security group.
	rtID := c.nextID("rtb")
	c.routeTables[rtID] = &ec2types.RouteTable{
		RouteTableId: aws.String(rtID),
		VpcId:        aws.String(id),
		Routes: []ec2types.Route{{
			DestinationCidrBlock: in.CidrBlock,
			GatewayId:            aws.String("local"),
			State:                ec2types.RouteStateActive,
		}},
		Associations: []ec2types.RouteTableAssociation{{
			RouteTableAssociationId: aws.String(c.nextID("rtbassoc")),
			RouteTableId:            aws.String(rtID),
			Main:                    aws.Bool(true),
			AssociationState:        &ec2types.RouteTableAssociationState{State: ec2types.RouteTableAssociationStateCodeAssociated},
		}},
	}
	sgID := c.nextID("sg")
	c.groups[sgID] = &ec2types.SecurityGroup{
		GroupId:     aws.String(sgID),
		GroupName:   aws.String("default"),
		Description: aws.String("default VPC security group"),
		VpcId:       aws.String(id),
	}

	cp := cloneVpc(v)
	return &ec2.CreateVpcOutput{Vpc: &cp}, nil
}

func (c *Cloud) DeleteVpc(_ context.Context, in *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DeleteVpc"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.VpcId)
	if _, ok := c.vpcs[id]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", id)
	}
	for _, s := range c.subnets {
		if aws.ToString(s.VpcId) == id {
			return nil, APIError("DependencyViolation", "The vpc '%s' has dependencies and cannot be deleted.", id)
		}
	}
	for _, g := range c.gateways {
		for _, a := range g.Attachments {
			if aws.ToString(a.VpcId) == id {
				return nil, APIError("DependencyViolation", "The vpc '%s' has dependencies and cannot be deleted.", id)
			}
		}
	}
	for _, rt := range c.routeTables {
		if aws.ToString(rt.VpcId) == id && !isMainTable(rt) {
			return nil, APIError("DependencyViolation", "The vpc '%s' has dependencies and cannot be deleted.", id)
		}
	}
	for _, g := range c.groups {
		if aws.ToString(g.VpcId) == id && aws.ToString(g.GroupName) != "default" {
			return nil, APIError("DependencyViolation", "The vpc '%s' has dependencies and cannot be deleted.", id)
		}
	}

	for rtID, rt := range c.routeTables {
		if aws.ToString(rt.VpcId) == id {
			delete(c.routeTables, rtID)
		}
	}
	for sgID, g := range c.groups {
		if aws.ToString(g.VpcId) == id {
			delete(c.groups, sgID)
		}
	}
	delete(c.vpcs, id)
	return &ec2.DeleteVpcOutput{}, nil
}

func isMainTable(rt *ec2types.RouteTable) bool {
	for _, a := range rt.Associations {
		if aws.ToBool(a.Main) {
			return true
		}
	}
	return false
}

func (c *Cloud) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeSubnets"); err != nil {
		return nil, err
	}
	for _, id := range in.SubnetIds {
		if _, ok := c.subnets[id]; !ok {
			return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", id)
		}
	}

	out := &ec2.DescribeSubnetsOutput{}
	for _, id := range sortedKeys(c.subnets) {
		s := c.subnets[id]
		if len(in.SubnetIds) > 0 && !slices.Contains(in.SubnetIds, id) {
			continue
		}
		if !matches(in.Filters, s.Tags, func(name string) ([]string, bool) {
			switch name {
			case "subnet-id":
				return one(s.SubnetId), true
			case "vpc-id":
				return one(s.VpcId), true
			case "cidr-block":
				return one(s.CidrBlock), true
			}
			return nil, false
		}) {
			continue
		}
		out.Subnets = append(out.Subnets, cloneSubnet(s))
	}
	return out, nil
}

func (c *Cloud) CreateSubnet(_ context.Context, in *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:CreateSubnet"); err != nil {
		return nil, err
	}
	vpcID := aws.ToString(in.VpcId)
	if _, ok := c.vpcs[vpcID]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", vpcID)
	}
	for _, s := range c.subnets {
		if aws.ToString(s.VpcId) == vpcID && aws.ToString(s.CidrBlock) == aws.ToString(in.CidrBlock) {
			return nil, APIError("InvalidSubnet.Conflict", "The CIDR '%s' conflicts with another subnet", aws.ToString(in.CidrBlock))
		}
	}
	id := c.nextID("subnet")
	s := &ec2types.Subnet{
		SubnetId:         aws.String(id),
		VpcId:            in.VpcId,
		CidrBlock:        in.CidrBlock,
		AvailabilityZone: aws.String(c.Region + "a"),
		State:            ec2types.SubnetStateAvailable,
		Tags:             tagSpec(in.TagSpecifications, ec2types.ResourceTypeSubnet),
	}
	c.subnets[id] = s
	cp := cloneSubnet(s)
	return &ec2.CreateSubnetOutput{Subnet: &cp}, nil
}

func (c *Cloud) DeleteSubnet(_ context.Context, in *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DeleteSubnet"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.SubnetId)
	if _, ok := c.subnets[id]; !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", id)
	}
	for _, inst := range c.instances {
		if inst.subnetID == id && inst.state != ec2types.InstanceStateNameTerminated {
			return nil, APIError("DependencyViolation", "The subnet '%s' has dependencies and cannot be deleted.", id)
		}
	}
	for _, rt := range c.routeTables {
		for _, a := range rt.Associations {
			if aws.ToString(a.SubnetId) == id {
				return nil, APIError("DependencyViolation", "The subnet '%s' has dependencies and cannot be deleted.", id)
			}
		}
	}
	delete(c.subnets, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

func (c *Cloud) DescribeInternetGateways(_ context.Context, in *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeInternetGateways"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, id := range sortedKeys(c.gateways) {
		g := c.gateways[id]
		if len(in.InternetGatewayIds) > 0 && !slices.Contains(in.InternetGatewayIds, id) {
			continue
		}
		if !matches(in.Filters, g.Tags, func(name string) ([]string, bool) {
			switch name {
			case "internet-gateway-id":
				return one(g.InternetGatewayId), true
			case "attachment.vpc-id":
				var ids []string
				for _, a := range g.Attachments {
					ids = append(ids, aws.ToString(a.VpcId))
				}
				return ids, true
			}
			return nil, false
		}) {
			continue
		}
		out.InternetGateways = append(out.InternetGateways, cloneGateway(g))
	}
	return out, nil
}

func (c *Cloud) CreateInternetGateway(_ context.Context, in *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:CreateInternetGateway"); err != nil {
		return nil, err
	}
	id := c.nextID("igw")
	g := &ec2types.InternetGateway{
		InternetGatewayId: aws.String(id),
		OwnerId:           aws.String(c.AccountID),
		Tags:              tagSpec(in.TagSpecifications, ec2types.ResourceTypeInternetGateway),
	}
	c.gateways[id] = g
	cp := cloneGateway(g)
	return &ec2.CreateInternetGatewayOutput{InternetGateway: &cp}, nil
}

func (c *Cloud) AttachInternetGateway(_ context.Context, in *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:AttachInternetGateway"); err != nil {
		return nil, err
	}
	id, vpcID := aws.ToString(in.InternetGatewayId), aws.ToString(in.VpcId)
	g, ok := c.gateways[id]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", id)
	}
	if _, ok := c.vpcs[vpcID]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", vpcID)
	}
	if len(g.Attachments) > 0 {
		return nil, APIError("Resource.AlreadyAssociated", "resource %s is already attached to network %s", id, aws.ToString(g.Attachments[0].VpcId))
	}
	g.Attachments = []ec2types.InternetGatewayAttachment{{VpcId: aws.String(vpcID), State: ec2types.AttachmentStatusAttached}}
	return &ec2.AttachInternetGatewayOutput{}, nil
}

func (c *Cloud) DetachInternetGateway(_ context.Context, in *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DetachInternetGateway"); err != nil {
		return nil, err
	}
	id, vpcID := aws.ToString(in.InternetGatewayId), aws.ToString(in.VpcId)
	g, ok := c.gateways[id]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", id)
	}
	if len(g.Attachments) == 0 || aws.ToString(g.Attachments[0].VpcId) != vpcID {
		return nil, APIError("Gateway.NotAttached", "resource %s is not attached to network %s", id, vpcID)
	}
	g.Attachments = nil
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (c *Cloud) DeleteInternetGateway(_ context.Context, in *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DeleteInternetGateway"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.InternetGatewayId)
	g, ok := c.gateways[id]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", id)
	}
	if len(g.Attachments) > 0 {
		return nil, APIError("DependencyViolation", "The internetGateway '%s' has dependencies and cannot be deleted.", id)
	}
	delete(c.gateways, id)
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

// DetachGateway breaks the gateway attachment behind the reconciler's back.
func (c *Cloud) DetachGateway(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gateways[id]; ok {
		g.Attachments = nil
	}
}

func (c *Cloud) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeRouteTables"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeRouteTablesOutput{}
	for _, id := range sortedKeys(c.routeTables) {
		rt := c.routeTables[id]
		if len(in.RouteTableIds) > 0 && !slices.Contains(in.RouteTableIds, id) {
			continue
		}
		if !matches(in.Filters, rt.Tags, func(name string) ([]string, bool) {
			switch name {
			case "route-table-id":
				return one(rt.RouteTableId), true
			case "vpc-id":
				return one(rt.VpcId), true
			case "association.main":
				if isMainTable(rt) {
					return []string{"true"}, true
				}
				return []string{"false"}, true
			}
			return nil, false
		}) {
			continue
		}
		out.RouteTables = append(out.RouteTables, cloneRouteTable(rt))
	}
	return out, nil
}

func (c *Cloud) CreateRouteTable(_ context.Context, in *ec2.CreateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:CreateRouteTable"); err != nil {
		return nil, err
	}
	vpcID := aws.ToString(in.VpcId)
	v, ok := c.vpcs[vpcID]
	if !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", vpcID)
	}
	id := c.nextID("rtb")
	rt := &ec2types.RouteTable{
		RouteTableId: aws.String(id),
		VpcId:        in.VpcId,
		OwnerId:      aws.String(c.AccountID),
		Routes: []ec2types.Route{{
			DestinationCidrBlock: v.CidrBlock,
			GatewayId:            aws.String("local"),
			State:                ec2types.RouteStateActive,
		}},
		Tags: tagSpec(in.TagSpecifications, ec2types.ResourceTypeRouteTable),
	}
	c.routeTables[id] = rt
	cp := cloneRouteTable(rt)
	return &ec2.CreateRouteTableOutput{RouteTable: &cp}, nil
}

func (c *Cloud) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:CreateRoute"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.RouteTableId)
	rt, ok := c.routeTables[id]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", id)
	}
	gw := aws.ToString(in.GatewayId)
	if _, ok := c.gateways[gw]; !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", gw)
	}
	dest := aws.ToString(in.DestinationCidrBlock)
	for _, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == dest {
			return nil, APIError("RouteAlreadyExists", "The route identified by %s already exists.", dest)
		}
	}
	rt.Routes = append(rt.Routes, ec2types.Route{
		DestinationCidrBlock: aws.String(dest),
		GatewayId:            aws.String(gw),
		State:                ec2types.RouteStateActive,
	})
	return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
}

func (c *Cloud) ReplaceRoute(_ context.Context, in *ec2.ReplaceRouteInput, _ ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:ReplaceRoute"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.RouteTableId)
	rt, ok := c.routeTables[id]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", id)
	}
	gw := aws.ToString(in.GatewayId)
	if _, ok := c.gateways[gw]; !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", gw)
	}
	dest := aws.ToString(in.DestinationCidrBlock)
	for i, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == dest {
			rt.Routes[i] = ec2types.Route{
				DestinationCidrBlock: aws.String(dest),
				GatewayId:            aws.String(gw),
				State:                ec2types.RouteStateActive,
			}
			return &ec2.ReplaceRouteOutput{}, nil
		}
	}
	return nil, APIError("InvalidRoute.NotFound", "no route with destination-cidr-block %s in route table %s", dest, id)
}

// DropGateway detaches and deletes a gateway behind the reconciler's back.
// Routes through it are left in place as blackholes, as EC2 does.
func (c *Cloud) DropGateway(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.gateways, id)
	for _, rt := range c.routeTables {
		for i, r := range rt.Routes {
			if aws.ToString(r.GatewayId) == id {
				rt.Routes[i].State = ec2types.RouteStateBlackhole
			}
		}
	}
}

// DeleteRoutes drops every non-local route of a table behind the reconciler's back.
func (c *Cloud) DeleteRoutes(routeTableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt, ok := c.routeTables[routeTableID]
	if !ok {
		return
	}
	rt.Routes = slices.DeleteFunc(rt.Routes, func(r ec2types.Route) bool {
		return aws.ToString(r.GatewayId) != "local"
	})
}

func (c *Cloud) AssociateRouteTable(_ context.Context, in *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:AssociateRouteTable"); err != nil {
		return nil, err
	}
	id, subnetID := aws.ToString(in.RouteTableId), aws.ToString(in.SubnetId)
	rt, ok := c.routeTables[id]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", id)
	}
	if _, ok := c.subnets[subnetID]; !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", subnetID)
	}
	for _, other := range c.routeTables {
		for _, a := range other.Associations {
			if aws.ToString(a.SubnetId) == subnetID {
				return nil, APIError("Resource.AlreadyAssociated", "the specified association for route table %s conflicts with an existing association", id)
			}
		}
	}
	assocID := c.nextID("rtbassoc")
	rt.Associations = append(rt.Associations, ec2types.RouteTableAssociation{
		RouteTableAssociationId: aws.String(assocID),
		RouteTableId:            aws.String(id),
		SubnetId:                aws.String(subnetID),
		Main:                    aws.Bool(false),
		AssociationState:        &ec2types.RouteTableAssociationState{State: ec2types.RouteTableAssociationStateCodeAssociated},
	})
	return &ec2.AssociateRouteTableOutput{
		AssociationId:    aws.String(assocID),
		AssociationState: &ec2types.RouteTableAssociationState{State: ec2types.RouteTableAssociationStateCodeAssociated},
	}, nil
}

func (c *Cloud) DisassociateRouteTable(_ context.Context, in *ec2.DisassociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DisassociateRouteTable"); err != nil {
		return nil, err
	}
	assocID := aws.ToString(in.AssociationId)
	for _, rt := range c.routeTables {
		for i, a := range rt.Associations {
			if aws.ToString(a.RouteTableAssociationId) == assocID {
				if aws.ToBool(a.Main) {
					return nil, APIError("InvalidParameterValue", "cannot disassociate the main route table association %s", assocID)
				}
				rt.Associations = slices.Delete(rt.Associations, i, i+1)
				return &ec2.DisassociateRouteTableOutput{}, nil
			}
		}
	}
	return nil, APIError("InvalidAssociationID.NotFound", "The association ID '%s' does not exist", assocID)
}

// DisassociateAll drops the subnet associations of a table behind the reconciler's back.
func (c *Cloud) DisassociateAll(routeTableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rt, ok := c.routeTables[routeTableID]; ok {
		rt.Associations = slices.DeleteFunc(rt.Associations, func(a ec2types.RouteTableAssociation) bool {
			return !aws.ToBool(a.Main)
		})
	}
}

func (c *Cloud) DeleteRouteTable(_ context.Context, in *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DeleteRouteTable"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.RouteTableId)
	rt, ok := c.routeTables[id]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", id)
	}
	if len(rt.Associations) > 0 {
		return nil, APIError("DependencyViolation", "The routeTable '%s' has dependencies and cannot be deleted.", id)
	}
	delete(c.routeTables, id)
	return &ec2.DeleteRouteTableOutput{}, nil
}

// ResourceCounts reports how many network objects exist, keyed by kind.
// Main route tables and default security groups are not counted.
func (c *Cloud) ResourceCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := map[string]int{
		"vpc":              len(c.vpcs),
		"subnet":           len(c.subnets),
		"internet-gateway": len(c.gateways),
		"key-pair":         len(c.keyPairs),
	}
	for _, rt := range c.routeTables {
		if !isMainTable(rt) {
			counts["route-table"]++
		}
	}
	for _, g := range c.groups {
		if aws.ToString(g.GroupName) != "default" {
			counts["security-group"]++
		}
	}
	for _, inst := range c.instances {
		if inst.state != ec2types.InstanceStateNameTerminated {
			counts["instance"]++
		}
	}
	return counts
}
