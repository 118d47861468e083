package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/quickhost/internal/orchestration"
)

// MakeOptions are the make flags. Zero values fall back to the config file.
type MakeOptions struct {
	App          string
	HostCount    int
	InstanceType string
	OS           string
	Ports        []int32
	CIDRs        []string
	UserData     string
	KeyFile      string
	DiskSize     int32
	WaitForPort  bool
}

// params merges the flags over the loaded defaults.
func (o MakeOptions) params(s *session) orchestration.CreateParams {
	p := orchestration.CreateParams{
		App:          o.App,
		HostCount:    o.HostCount,
		InstanceType: o.InstanceType,
		OS:           o.OS,
		Ports:        o.Ports,
		CIDRs:        o.CIDRs,
		UserDataFile: o.UserData,
		KeyFile:      o.KeyFile,
		DiskSize:     o.DiskSize,
		WaitForPort:  o.WaitForPort,
	}
	if p.HostCount == 0 {
		p.HostCount = s.cfg.HostCount
	}
	if p.InstanceType == "" {
		p.InstanceType = s.cfg.InstanceType
	}
	if p.OS == "" {
		p.OS = s.cfg.OS
	}
	if len(p.Ports) == 0 {
		p.Ports = s.cfg.Ports
	}
	if len(p.CIDRs) == 0 {
		p.CIDRs = s.cfg.CIDRs
	}
	if p.UserDataFile == "" {
		p.UserDataFile = s.cfg.UserData
	}
	if p.KeyFile == "" {
		p.KeyFile = s.cfg.KeyFile
	}
	if p.DiskSize == 0 {
		p.DiskSize = s.cfg.DiskSize
	}
	return p
}

// Make handles the make command.
func Make(ctx context.Context, g Globals, o MakeOptions) error {
	s, err := open(ctx, g, false)
	if err != nil {
		return err
	}
	p := o.params(s)

	prompt := fmt.Sprintf("launch %d %s host(s) running %s for %s in %s", p.HostCount, p.InstanceType, p.OS, p.App, s.region)
	if err := ask(ctx, g, prompt); err != nil {
		return err
	}

	res, err := s.orch.Create(ctx, p)
	if res == nil {
		return err
	}
	s.out.Create(res)
	return result(res.Report, err)
}

// DescribeOptions are the describe flags.
type DescribeOptions struct {
	App          string
	KeyFile      string
	ShowPassword bool
}

// Describe handles the describe command.
func Describe(ctx context.Context, g Globals, o DescribeOptions) error {
	s, err := open(ctx, g, false)
	if err != nil {
		return err
	}
	keyFile := o.KeyFile
	if keyFile == "" {
		keyFile = s.cfg.KeyFile
	}
	d, err := s.orch.Describe(ctx, orchestration.DescribeParams{App: o.App, KeyFile: keyFile, ShowPasswords: o.ShowPassword})
	if err != nil {
		return err
	}
	s.out.Description(d)
	return nil
}

// UpdateOptions are the update flags.
type UpdateOptions struct {
	App   string
	Ports []int32
	CIDRs []string
}

// Update handles the update command.
func Update(ctx context.Context, g Globals, o UpdateOptions) error {
	s, err := open(ctx, g, false)
	if err != nil {
		return err
	}
	cidrs := o.CIDRs
	if len(cidrs) == 0 {
		cidrs = s.cfg.CIDRs
	}
	res, err := s.orch.Update(ctx, orchestration.UpdateParams{App: o.App, Ports: o.Ports, CIDRs: cidrs})
	if res == nil {
		return err
	}
	s.out.Update(o.App, res)
	return result(res.Report, err)
}

// DestroyOptions are the destroy flags.
type DestroyOptions struct {
	App     string
	KeyFile string
}

// Destroy handles the destroy command.
func Destroy(ctx context.Context, g Globals, o DestroyOptions) error {
	s, err := open(ctx, g, false)
	if err != nil {
		return err
	}
	if err := ask(ctx, g, fmt.Sprintf("destroy every host, the key pair and the firewall of %s in %s", o.App, s.region)); err != nil {
		return err
	}
	keyFile := o.KeyFile
	if keyFile == "" {
		keyFile = s.cfg.KeyFile
	}
	report, err := s.orch.Destroy(ctx, orchestration.DestroyParams{App: o.App, KeyFile: keyFile})
	s.out.Report("destroy "+o.App, report)
	return result(report, err)
}

// ListAll handles the list-all command.
func ListAll(ctx context.Context, g Globals) error {
	s, err := open(ctx, g, false)
	if err != nil {
		return err
	}
	apps, err := s.orch.ListAll(ctx)
	if err != nil {
		return err
	}
	s.out.Apps(s.region, apps)
	return nil
}
