package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/imamik/quickhost/internal/orchestration"
	"github.com/imamik/quickhost/internal/provisioning/identity"
	"github.com/imamik/quickhost/internal/provisioning/network"
	"github.com/imamik/quickhost/internal/util/naming"
)

// Init prints the outcome of quickhost init.
func (p *Printer) Init(res *orchestration.InitResult) {
	p.Report("init", res.Report)
	if res.Principal != nil {
		p.principal(res.Principal)
		if res.Principal.NewAccessKeyID != "" {
			p.field("new access key", res.Principal.NewAccessKeyID)
			p.field("verified", p.status(res.Verified, "yes", "not yet"))
		}
	}
	p.network(res.Network)
}

// Create prints the outcome of quickhost make.
func (p *Printer) Create(res *orchestration.CreateResult) {
	p.Report("make "+res.App, res.Report)
	p.section("App " + res.App)
	p.field("key file", res.KeyFile)
	p.field("security group", res.FirewallID)
	p.field("ports", joinPorts(res.Ports))
	p.field("cidrs", strings.Join(res.CIDRs, ", "))
	if res.Compute == nil {
		return
	}
	p.field("image", fmt.Sprintf("%s (%s)", res.Compute.ImageID, res.Compute.ImageName))
	p.field("disk", fmt.Sprintf("%dGiB", res.Compute.DiskSize))
	p.field("hosts", res.Compute.Tally.String())

	p.section("Connect")
	p.Lines(res.Compute.Connections, "no reachable hosts")
}

// Update prints the outcome of quickhost update.
func (p *Printer) Update(app string, res *orchestration.UpdateResult) {
	p.Report("update "+app, res.Report)
	if res.Rules == nil {
		return
	}
	p.section("Firewall")
	p.field("security group", res.Rules.PolicyID)
	p.field("ports", strings.Join(res.Rules.Ports, ", "))
	p.field("cidrs", strings.Join(res.Rules.CIDRs, ", "))
}

// DestroyAll prints the outcome of quickhost destroy-all.
func (p *Printer) DestroyAll(res *orchestration.DestroyAllResult) {
	if len(res.Apps) > 0 {
		p.printf("apps: %s\n", strings.Join(res.Apps, ", "))
	}
	p.Report("destroy-all", res.Report)
}

// Description prints quickhost describe.
func (p *Printer) Description(d *orchestration.Description) {
	p.Title("%s (%s)", d.App, d.Region)
	if d.Caller != nil {
		p.field("caller", d.Caller.ARN)
	}
	if !d.Exists() {
		p.Warn("app %s has no resources in %s", d.App, d.Region)
	}

	if d.Principal != nil {
		p.principal(d.Principal)
	}
	p.network(d.Network)

	p.section("Key pair")
	if d.KeyPair.Exists() {
		p.field("name", d.KeyPair.KeyName)
		p.field("id", d.KeyPair.KeyID)
		p.field("fingerprint", d.KeyPair.Fingerprint)
		local := "missing"
		if d.KeyPair.LocalFileExists {
			local = "does not match"
		}
		p.field("local key", d.KeyPair.LocalFile+" "+p.status(d.KeyPair.LocalMatches, "matches", local))
	} else {
		p.field("name", "")
	}

	p.section("Firewall")
	if d.Firewall != nil {
		p.field("security group", d.Firewall.PolicyID)
		p.field("ports", strings.Join(d.Firewall.Ports, ", "))
		p.field("cidrs", strings.Join(d.Firewall.CIDRs, ", "))
	} else {
		p.field("security group", "")
	}

	p.section("Hosts")
	if len(d.Instances) == 0 {
		p.Lines(nil, "no running hosts")
		return
	}
	header := []string{"Instance", "State", "Type", "Public IP", "Private IP", "Launched"}
	if d.Passwords != nil {
		header = append(header, "Password")
	}
	table := p.table(header...)
	for _, inst := range d.Instances {
		row := []string{
			inst.ID,
			string(inst.State),
			inst.InstanceType,
			inst.PublicIP,
			inst.PrivateIP,
			inst.LaunchTime.UTC().Format("2006-01-02 15:04"),
		}
		if d.Passwords != nil {
			row = append(row, d.Passwords[inst.ID])
		}
		table.Append(row)
	}
	table.Render()

	p.section("Connect (" + d.OS + ")")
	p.Lines(d.Connections, "no reachable hosts")
}

func (p *Printer) principal(pr *identity.Principal) {
	p.section("Identity")
	p.field("user", pr.UserARN)
	p.field("group", pr.GroupARN)
	attached := 0
	for _, action := range naming.Actions() {
		if arn := pr.PolicyARNs[action]; arn != "" && slices.Contains(pr.AttachedPolicyARNs, arn) {
			attached++
		}
	}
	p.field("policies", fmt.Sprintf("%d/%d attached", attached, len(naming.Actions())))
	p.field("access keys", strings.Join(pr.AccessKeyIDs, ", "))
	if pr.Profile != nil {
		profile := pr.Profile.Profile
		if pr.Profile.Region != "" {
			profile += " (" + pr.Profile.Region + ")"
		}
		p.field("profile", profile+" "+p.status(pr.Profile.HasCredentials, "has credentials", "no credentials"))
	}
	p.field("complete", p.status(pr.Complete(), "yes", "no"))
}

func (p *Printer) network(st *network.Stack) {
	p.section("Network")
	if st.Empty() {
		p.field("status", p.st.failed.Render("not initialized, run quickhost init"))
		return
	}
	p.field("vpc", st.NetworkID+" "+st.CIDR)
	p.field("subnet", st.SubnetID+" "+st.SubnetCIDR)
	p.field("gateway", st.GatewayID)
	p.field("route table", st.RouteTableID)
	status := "ready"
	if !st.Ready() {
		status = strings.Join(st.Problems(), "; ")
	}
	p.field("status", p.status(st.Ready(), status, status))
}

func joinPorts(ports []int32) string {
	s := make([]string, len(ports))
	for i, port := range ports {
		s[i] = fmt.Sprint(port)
	}
	return strings.Join(s, ", ")
}
