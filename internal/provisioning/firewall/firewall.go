// Package firewall manages the per-app security group and its TCP
// ingress rules.
package firewall

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/quickhost/internal/config"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/naming"
	"github.com/imamik/quickhost/internal/util/tags"
)

const (
	phase       = "firewall"
	protocol    = "tcp"
	description = "Made by quickhost"
)

// ErrNotFound is returned by Update when the app has no security group.
var ErrNotFound = errors.New("security group not found")

// Rules is the observed ingress policy of an app.
type Rules struct {
	PolicyID string
	// Ports are formatted as "22/tcp" or "8000-8080/tcp", sorted by port.
	Ports []string
	// CIDRs are sorted and deduplicated across all ports.
	CIDRs []string
}

// Manager owns the security group of one app inside the network.
type Manager struct {
	ec2      awsplatform.EC2API
	observer provisioning.Observer
	timeouts *config.Timeouts
	app      string
	vpcID    string
}

// NewManager returns the firewall manager for app. vpcID scopes lookups
// and is required by Create.
func NewManager(client awsplatform.EC2API, observer provisioning.Observer, timeouts *config.Timeouts, app, vpcID string) *Manager {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	return &Manager{ec2: client, observer: observer, timeouts: timeouts, app: app, vpcID: vpcID}
}

// Name is the security group name.
func (m *Manager) Name() string {
	return naming.SecurityGroup(m.app)
}

func (m *Manager) lookup(ctx context.Context) (*ec2types.SecurityGroup, bool, error) {
	filters := []ec2types.Filter{tags.Filter("group-name", m.Name())}
	if m.vpcID != "" {
		filters = append(filters, tags.Filter("vpc-id", m.vpcID))
	} else {
		filters = append(filters, tags.AppFilter(m.app))
	}
	out, err := m.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: filters})
	if err != nil {
		return nil, false, provisioning.Classify("describe security groups", err)
	}
	switch len(out.SecurityGroups) {
	case 0:
		return nil, false, nil
	case 1:
		return &out.SecurityGroups[0], true, nil
	default:
		return nil, false, fmt.Errorf("%d security groups named %s found, pass a network to disambiguate", len(out.SecurityGroups), m.Name())
	}
}

// Create ensures the security group and authorizes TCP ingress for every
// port from every cidr. It reports false when an existing group was reused.
func (m *Manager) Create(ctx context.Context, ports []int32, cidrs []string) (bool, error) {
	if m.vpcID == "" {
		return false, errors.New("firewall create requires a network id")
	}
	res, err := (&awsplatform.EnsureOperation[*ec2types.SecurityGroup]{
		Name:         m.Name(),
		ResourceType: "security group",
		Describe:     m.lookup,
		Create: func(ctx context.Context) (*ec2types.SecurityGroup, error) {
			provisioning.LogResourceCreating(m.observer, phase, "security group", m.Name())
			out, err := m.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
				GroupName:         aws.String(m.Name()),
				Description:       aws.String(description),
				VpcId:             aws.String(m.vpcID),
				TagSpecifications: tags.ForApp(m.app).Specs(ec2types.ResourceTypeSecurityGroup),
			})
			if err != nil {
				return nil, provisioning.Classify("create security group", err)
			}
			return &ec2types.SecurityGroup{GroupId: out.GroupId, GroupName: aws.String(m.Name()), VpcId: aws.String(m.vpcID)}, nil
		},
	}).Execute(ctx)
	if err != nil {
		return false, err
	}

	id := aws.ToString(res.Resource.GroupId)
	if res.Created {
		provisioning.LogResourceCreated(m.observer, phase, "security group", m.Name(), id)
	} else {
		provisioning.LogResourceExists(m.observer, phase, "security group", m.Name(), id)
	}

	if _, err := m.authorize(ctx, res.Resource, ports, cidrs); err != nil {
		return false, err
	}
	return res.Created, nil
}

// Update authorizes additional ports and cidrs on the existing group. It
// reports whether any rule was added.
func (m *Manager) Update(ctx context.Context, ports []int32, cidrs []string) (bool, error) {
	group, found, err := m.lookup(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("%w: %s", ErrNotFound, m.Name())
	}
	return m.authorize(ctx, group, ports, cidrs)
}

// authorize adds the rules group does not have yet, one call per port.
func (m *Manager) authorize(ctx context.Context, group *ec2types.SecurityGroup, ports []int32, cidrs []string) (bool, error) {
	id := aws.ToString(group.GroupId)
	added := false
	for _, port := range ports {
		var ranges []ec2types.IpRange
		for _, cidr := range cidrs {
			if hasRule(group, port, cidr) {
				continue
			}
			ranges = append(ranges, ec2types.IpRange{CidrIp: aws.String(cidr)})
		}
		if len(ranges) == 0 {
			continue
		}
		_, err := m.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId: aws.String(id),
			IpPermissions: []ec2types.IpPermission{{
				IpProtocol: aws.String(protocol),
				FromPort:   aws.Int32(port),
				ToPort:     aws.Int32(port),
				IpRanges:   ranges,
			}},
		})
		switch {
		case err == nil:
			added = true
			m.observer.Printf("[%s] allowed %d/%s from %d cidr(s) on %s", phase, port, protocol, len(ranges), id)
		case awsplatform.IsDuplicatePermission(err):
			m.observer.Printf("[%s] %d/%s already allowed on %s", phase, port, protocol, id)
		default:
			return added, provisioning.Classify(fmt.Sprintf("authorize %d/%s", port, protocol), err)
		}
	}
	return added, nil
}

func hasRule(group *ec2types.SecurityGroup, port int32, cidr string) bool {
	for _, p := range group.IpPermissions {
		if aws.ToString(p.IpProtocol) != protocol || aws.ToInt32(p.FromPort) > port || aws.ToInt32(p.ToPort) < port {
			continue
		}
		for _, r := range p.IpRanges {
			if aws.ToString(r.CidrIp) == cidr {
				return true
			}
		}
	}
	return false
}

// Describe returns the group's rules, or nil when the app has no group.
func (m *Manager) Describe(ctx context.Context) (*Rules, error) {
	group, found, err := m.lookup(ctx)
	if err != nil || !found {
		return nil, err
	}
	return rulesOf(group), nil
}

func rulesOf(group *ec2types.SecurityGroup) *Rules {
	perms := slices.Clone(group.IpPermissions)
	slices.SortFunc(perms, func(a, b ec2types.IpPermission) int {
		return int(aws.ToInt32(a.FromPort) - aws.ToInt32(b.FromPort))
	})

	rules := &Rules{PolicyID: aws.ToString(group.GroupId)}
	for _, p := range perms {
		from, to := aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort)
		proto := aws.ToString(p.IpProtocol)
		port := fmt.Sprintf("%d/%s", from, proto)
		if from != to {
			port = fmt.Sprintf("%d-%d/%s", from, to, proto)
		}
		if !slices.Contains(rules.Ports, port) {
			rules.Ports = append(rules.Ports, port)
		}
		for _, r := range p.IpRanges {
			rules.CIDRs = append(rules.CIDRs, aws.ToString(r.CidrIp))
		}
	}
	slices.Sort(rules.CIDRs)
	rules.CIDRs = slices.Compact(rules.CIDRs)
	return rules
}

// Destroy deletes the group, retrying while terminating instances still
// reference it. It reports false when there was no group.
func (m *Manager) Destroy(ctx context.Context) (bool, error) {
	group, found, err := m.lookup(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		provisioning.LogResourceAbsent(m.observer, phase, "security group", m.Name())
		return false, nil
	}

	id := aws.ToString(group.GroupId)
	provisioning.LogResourceDeleting(m.observer, phase, "security group", m.Name())
	deleted, err := (&awsplatform.DeleteOperation{
		Name:         m.Name(),
		ResourceType: "security group",
		Delete: func(ctx context.Context) error {
			_, err := m.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
			return err
		},
		Timeout:           m.timeouts.Delete,
		RetryMaxAttempts:  m.timeouts.RetryMaxAttempts,
		RetryInitialDelay: m.timeouts.RetryInitialDelay,
	}).Execute(ctx)
	if err != nil {
		return false, provisioning.Classify("delete security group", err)
	}
	if deleted {
		provisioning.LogResourceDeleted(m.observer, phase, "security group", m.Name())
	}
	return deleted, nil
}
