package fakes

import (
	"context"
	"crypto/rsa"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/quickhost/internal/util/keyfile"
)

type keyPair struct {
	info ec2types.KeyPairInfo
	key  *rsa.PrivateKey
}

func cloneGroup(g *ec2types.SecurityGroup) ec2types.SecurityGroup {
	out := *g
	out.Tags = slices.Clone(g.Tags)
	out.IpPermissions = make([]ec2types.IpPermission, len(g.IpPermissions))
	for i, p := range g.IpPermissions {
		p.IpRanges = slices.Clone(p.IpRanges)
		out.IpPermissions[i] = p
	}
	return out
}

func (c *Cloud) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeSecurityGroups"); err != nil {
		return nil, err
	}
	for _, id := range in.GroupIds {
		if _, ok := c.groups[id]; !ok {
			return nil, APIError("InvalidGroup.NotFound", "The security group '%s' does not exist", id)
		}
	}

	out := &ec2.DescribeSecurityGroupsOutput{}
	for _, id := range sortedKeys(c.groups) {
		g := c.groups[id]
		if len(in.GroupIds) > 0 && !slices.Contains(in.GroupIds, id) {
			continue
		}
		if len(in.GroupNames) > 0 && !slices.Contains(in.GroupNames, aws.ToString(g.GroupName)) {
			continue
		}
		if !matches(in.Filters, g.Tags, func(name string) ([]string, bool) {
			switch name {
			case "group-id":
				return one(g.GroupId), true
			case "group-name":
				return one(g.GroupName), true
			case "vpc-id":
				return one(g.VpcId), true
			}
			return nil, false
		}) {
			continue
		}
		out.SecurityGroups = append(out.SecurityGroups, cloneGroup(g))
	}
	return out, nil
}

func (c *Cloud) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:CreateSecurityGroup"); err != nil {
		return nil, err
	}
	vpcID, name := aws.ToString(in.VpcId), aws.ToString(in.GroupName)
	if _, ok := c.vpcs[vpcID]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", vpcID)
	}
	for _, g := range c.groups {
		if aws.ToString(g.VpcId) == vpcID && aws.ToString(g.GroupName) == name {
			return nil, APIError("InvalidGroup.Duplicate", "The security group '%s' already exists for VPC '%s'", name, vpcID)
		}
	}
	id := c.nextID("sg")
	c.groups[id] = &ec2types.SecurityGroup{
		GroupId:     aws.String(id),
		GroupName:   aws.String(name),
		Description: in.Description,
		VpcId:       aws.String(vpcID),
		OwnerId:     aws.String(c.AccountID),
		Tags:        tagSpec(in.TagSpecifications, ec2types.ResourceTypeSecurityGroup),
	}
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (c *Cloud) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:AuthorizeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.GroupId)
	g, ok := c.groups[id]
	if !ok {
		return nil, APIError("InvalidGroup.NotFound", "The security group '%s' does not exist", id)
	}

	// The whole request is rejected when any rule already exists.
	for _, p := range in.IpPermissions {
		for _, r := range p.IpRanges {
			if hasRule(g, p, aws.ToString(r.CidrIp)) {
				return nil, APIError("InvalidPermission.Duplicate",
					"the specified rule \"peer: %s, %s, from port: %d, to port: %d, ALLOW\" already exists",
					aws.ToString(r.CidrIp), aws.ToString(p.IpProtocol), aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort))
			}
		}
	}

	for _, p := range in.IpPermissions {
		idx := slices.IndexFunc(g.IpPermissions, func(e ec2types.IpPermission) bool {
			return samePortRange(e, p)
		})
		if idx < 0 {
			g.IpPermissions = append(g.IpPermissions, ec2types.IpPermission{
				IpProtocol: p.IpProtocol,
				FromPort:   p.FromPort,
				ToPort:     p.ToPort,
			})
			idx = len(g.IpPermissions) - 1
		}
		g.IpPermissions[idx].IpRanges = append(g.IpPermissions[idx].IpRanges, p.IpRanges...)
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func samePortRange(a, b ec2types.IpPermission) bool {
	return aws.ToString(a.IpProtocol) == aws.ToString(b.IpProtocol) &&
		aws.ToInt32(a.FromPort) == aws.ToInt32(b.FromPort) &&
		aws.ToInt32(a.ToPort) == aws.ToInt32(b.ToPort)
}

func hasRule(g *ec2types.SecurityGroup, p ec2types.IpPermission, cidr string) bool {
	for _, e := range g.IpPermissions {
		if !samePortRange(e, p) {
			continue
		}
		for _, r := range e.IpRanges {
			if aws.ToString(r.CidrIp) == cidr {
				return true
			}
		}
	}
	return false
}

func (c *Cloud) DeleteSecurityGroup(_ context.Context, in *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DeleteSecurityGroup"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.GroupId)
	g, ok := c.groups[id]
	if !ok {
		return nil, APIError("InvalidGroup.NotFound", "The security group '%s' does not exist", id)
	}
	if aws.ToString(g.GroupName) == "default" {
		return nil, APIError("CannotDelete", "the default security group cannot be deleted")
	}
	for _, inst := range c.instances {
		if inst.state != ec2types.InstanceStateNameTerminated && slices.Contains(inst.groupIDs, id) {
			return nil, APIError("DependencyViolation", "resource %s has a dependent object", id)
		}
	}
	delete(c.groups, id)
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (c *Cloud) DescribeKeyPairs(_ context.Context, in *ec2.DescribeKeyPairsInput, _ ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeKeyPairs"); err != nil {
		return nil, err
	}
	for _, name := range in.KeyNames {
		if _, ok := c.keyPairs[name]; !ok {
			return nil, APIError("InvalidKeyPair.NotFound", "The key pair '%s' does not exist", name)
		}
	}

	out := &ec2.DescribeKeyPairsOutput{}
	for _, name := range sortedKeys(c.keyPairs) {
		kp := c.keyPairs[name]
		if len(in.KeyNames) > 0 && !slices.Contains(in.KeyNames, name) {
			continue
		}
		if !matches(in.Filters, kp.info.Tags, func(filter string) ([]string, bool) {
			switch filter {
			case "key-name":
				return []string{name}, true
			case "key-pair-id":
				return one(kp.info.KeyPairId), true
			case "fingerprint":
				return one(kp.info.KeyFingerprint), true
			}
			return nil, false
		}) {
			continue
		}
		info := kp.info
		info.Tags = slices.Clone(kp.info.Tags)
		out.KeyPairs = append(out.KeyPairs, info)
	}
	return out, nil
}

func (c *Cloud) CreateKeyPair(_ context.Context, in *ec2.CreateKeyPairInput, _ ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:CreateKeyPair"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.KeyName)
	if _, ok := c.keyPairs[name]; ok {
		return nil, APIError("InvalidKeyPair.Duplicate", "The keypair '%s' already exists.", name)
	}

	material, err := keyfile.GenerateRSAKeyPair(c.KeyBits)
	if err != nil {
		return nil, err
	}
	key, err := keyfile.Parse(material.PrivateKey)
	if err != nil {
		return nil, err
	}
	fp, err := keyfile.AWSFingerprint(key)
	if err != nil {
		return nil, err
	}

	id := c.nextID("key")
	created := c.tick()
	c.keyPairs[name] = &keyPair{
		info: ec2types.KeyPairInfo{
			KeyPairId:      aws.String(id),
			KeyName:        aws.String(name),
			KeyFingerprint: aws.String(fp),
			KeyType:        ec2types.KeyTypeRsa,
			CreateTime:     &created,
			Tags:           tagSpec(in.TagSpecifications, ec2types.ResourceTypeKeyPair),
		},
		key: key,
	}
	return &ec2.CreateKeyPairOutput{
		KeyPairId:      aws.String(id),
		KeyName:        aws.String(name),
		KeyFingerprint: aws.String(fp),
		KeyMaterial:    aws.String(string(material.PrivateKey)),
	}, nil
}

// DeleteKeyPair succeeds for unknown names, as EC2 does.
func (c *Cloud) DeleteKeyPair(_ context.Context, in *ec2.DeleteKeyPairInput, _ ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DeleteKeyPair"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.KeyName)
	if name == "" && in.KeyPairId != nil {
		for n, kp := range c.keyPairs {
			if aws.ToString(kp.info.KeyPairId) == aws.ToString(in.KeyPairId) {
				name = n
			}
		}
	}
	delete(c.keyPairs, name)
	return &ec2.DeleteKeyPairOutput{Return: aws.Bool(true)}, nil
}
