package config

import awsplatform "github.com/imamik/quickhost/internal/platform/aws"

// Built-in defaults used when neither flags nor the config file set a value.
const (
	DefaultProfile      = "quickhost-user"
	DefaultInstanceType = "t2.micro"
	DefaultHostCount    = 1
	DefaultOS           = "amazon-linux-2"
	DefaultVPCCIDR      = "172.16.0.0/16"

	// DefaultConfigFile is picked up from the working directory when present.
	DefaultConfigFile = "quickhost.yaml"

	MaxHostCount = 20
	MinDiskSize  = 8
	MaxDiskSize  = 16384
)

// Config holds user defaults for quickhost commands.
type Config struct {
	Profile      string        `yaml:"profile"`
	Region       string        `yaml:"region"`
	InstanceType string        `yaml:"instance_type"`
	HostCount    int           `yaml:"host_count"`
	OS           string        `yaml:"os"`
	DiskSize     int32         `yaml:"disk_size"`
	Ports        []int32       `yaml:"ports"`
	CIDRs        []string      `yaml:"cidrs"`
	UserData     string        `yaml:"userdata"`
	KeyFile      string        `yaml:"key_file"`
	Network      NetworkConfig `yaml:"network"`
}

// NetworkConfig configures the shared quickhost network stack.
type NetworkConfig struct {
	VPCCIDR string `yaml:"vpc_cidr"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with built-in defaults.
func (c *Config) ApplyDefaults() {
	if c.Profile == "" {
		c.Profile = DefaultProfile
	}
	if c.Region == "" {
		c.Region = awsplatform.DefaultRegion
	}
	if c.InstanceType == "" {
		c.InstanceType = DefaultInstanceType
	}
	if c.HostCount == 0 {
		c.HostCount = DefaultHostCount
	}
	if c.OS == "" {
		c.OS = DefaultOS
	}
	if c.Network.VPCCIDR == "" {
		c.Network.VPCCIDR = DefaultVPCCIDR
	}
}

// SubnetCIDR returns the CIDR of the single public subnet carved out of the VPC.
func (n NetworkConfig) SubnetCIDR() (string, error) {
	return CIDRSubnet(n.VPCCIDR, 8, 0)
}
