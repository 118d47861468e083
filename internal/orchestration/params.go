package orchestration

import (
	"errors"
	"fmt"
	"net/netip"
	"os"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/provisioning/compute"
)

// InitParams configures Init.
type InitParams struct {
	// VPCCIDR overrides the network range; empty uses the default /16.
	VPCCIDR string
	// SkipVerify skips authenticating with a freshly minted access key.
	SkipVerify bool
}

// Validate checks the parameters.
func (p InitParams) Validate() error {
	if p.VPCCIDR == "" {
		return nil
	}
	prefix, err := netip.ParsePrefix(p.VPCCIDR)
	if err != nil || !prefix.Addr().Is4() {
		return fmt.Errorf("invalid network CIDR %q", p.VPCCIDR)
	}
	if prefix.Bits() < 16 || prefix.Bits() > 24 {
		return fmt.Errorf("network CIDR %s must be between /16 and /24", p.VPCCIDR)
	}
	return nil
}

// CreateParams configures Create.
type CreateParams struct {
	App          string
	HostCount    int
	InstanceType string
	OS           string
	// Ports replaces the OS default port when set.
	Ports []int32
	// CIDRs are added to the caller's own /32.
	CIDRs        []string
	UserDataFile string
	KeyFile      string
	DiskSize     int32
	// WaitForPort blocks until every host accepts connections on its first port.
	WaitForPort bool
}

func (p *CreateParams) applyDefaults() {
	if p.HostCount == 0 {
		p.HostCount = config.DefaultHostCount
	}
	if p.InstanceType == "" {
		p.InstanceType = config.DefaultInstanceType
	}
	if p.OS == "" {
		p.OS = config.DefaultOS
	}
	if len(p.Ports) == 0 {
		p.Ports = []int32{compute.DefaultPort(p.OS)}
	}
}

// Validate checks the parameters after defaults are applied.
func (p CreateParams) Validate() error {
	var errs []error
	errs = append(errs,
		config.ValidateAppName(p.App),
		config.ValidateHostCount(p.HostCount),
		config.ValidateDiskSize(p.DiskSize),
		config.ValidatePorts(p.Ports),
		compute.ValidateOS(p.OS),
		validateCIDRs(p.CIDRs),
	)
	if p.UserDataFile != "" {
		if _, err := os.Stat(p.UserDataFile); err != nil {
			errs = append(errs, fmt.Errorf("userdata file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// DescribeParams configures Describe.
type DescribeParams struct {
	App     string
	KeyFile string
	// ShowPasswords decrypts the administrator password of Windows hosts.
	ShowPasswords bool
}

// Validate checks the parameters.
func (p DescribeParams) Validate() error {
	return config.ValidateAppName(p.App)
}

// UpdateParams configures Update.
type UpdateParams struct {
	App   string
	Ports []int32
	// CIDRs default to the caller's own /32.
	CIDRs []string
}

// Validate checks the parameters.
func (p UpdateParams) Validate() error {
	var errs []error
	errs = append(errs, config.ValidateAppName(p.App))
	if len(p.Ports) == 0 {
		errs = append(errs, errors.New("at least one port is required"))
	}
	errs = append(errs, config.ValidatePorts(p.Ports), validateCIDRs(p.CIDRs))
	return errors.Join(errs...)
}

// DestroyParams configures Destroy.
type DestroyParams struct {
	App     string
	KeyFile string
}

// Validate checks the parameters.
func (p DestroyParams) Validate() error {
	return config.ValidateAppName(p.App)
}

// DestroyAllParams configures DestroyAll.
type DestroyAllParams struct {
	// KeyDir holds the <app>.pem files to remove; empty is the working directory.
	KeyDir string
	// KeepIdentity leaves the IAM principal and local profile in place.
	KeepIdentity bool
}

// Validate checks the parameters.
func (p DestroyAllParams) Validate() error {
	if p.KeyDir == "" {
		return nil
	}
	info, err := os.Stat(p.KeyDir)
	if err != nil {
		return fmt.Errorf("key directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("key directory %s is not a directory", p.KeyDir)
	}
	return nil
}

func validateCIDRs(cidrs []string) error {
	for _, c := range cidrs {
		if _, _, err := config.NormalizeIngressCIDR(c); err != nil {
			return err
		}
	}
	return nil
}
