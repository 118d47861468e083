package config

import (
	"fmt"
	"regexp"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
)

var appNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,62}$`)

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if !awsplatform.IsSupportedRegion(c.Region) {
		return fmt.Errorf("unsupported region %q", c.Region)
	}
	if err := ValidateHostCount(c.HostCount); err != nil {
		return err
	}
	if err := ValidateDiskSize(c.DiskSize); err != nil {
		return err
	}
	if err := ValidatePorts(c.Ports); err != nil {
		return err
	}
	for _, cidr := range c.CIDRs {
		if _, _, err := NormalizeIngressCIDR(cidr); err != nil {
			return err
		}
	}
	if _, err := c.Network.SubnetCIDR(); err != nil {
		return fmt.Errorf("network.vpc_cidr: %w", err)
	}
	return nil
}

// ValidateAppName checks that name can be used as a key pair, security
// group and tag value.
func ValidateAppName(name string) error {
	if name == "" {
		return fmt.Errorf("app name is required")
	}
	if !appNamePattern.MatchString(name) {
		return fmt.Errorf("invalid app name %q: use up to 63 letters, digits, '.', '_' or '-', starting with a letter or digit", name)
	}
	return nil
}

// ValidateHostCount checks the number of hosts in one batch.
func ValidateHostCount(n int) error {
	if n < 1 || n > MaxHostCount {
		return fmt.Errorf("host count must be between 1 and %d, got %d", MaxHostCount, n)
	}
	return nil
}

// ValidateDiskSize accepts 0 (image default) or a size in GiB.
func ValidateDiskSize(size int32) error {
	if size == 0 {
		return nil
	}
	if size < MinDiskSize || size > MaxDiskSize {
		return fmt.Errorf("disk size must be between %d and %d GiB, got %d", MinDiskSize, MaxDiskSize, size)
	}
	return nil
}

// ValidatePorts checks that every port is a valid TCP port.
func ValidatePorts(ports []int32) error {
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("invalid port %d", p)
		}
	}
	return nil
}
