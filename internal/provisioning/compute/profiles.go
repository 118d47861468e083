package compute

import (
	"fmt"
	"slices"
	"strings"

	"github.com/imamik/quickhost/internal/util/keyfile"
)

// Supported operating systems.
const (
	OSAmazonLinux2 = "amazon-linux-2"
	OSUbuntu       = "ubuntu"
	OSWindows      = "windows"
	OSWindowsCore  = "windows-core"
)

const (
	ownerAmazon    = "amazon"
	ownerCanonical = "099720109477"

	portSSH = 22
	portRDP = 3389
)

type osProfile struct {
	imagePattern string
	owner        string
	loginUser    string
	defaultPort  int32
	windows      bool
}

var osProfiles = map[string]osProfile{
	OSAmazonLinux2: {
		imagePattern: "amzn2-ami-hvm-2.0.*-x86_64-gp2",
		owner:        ownerAmazon,
		loginUser:    "ec2-user",
		defaultPort:  portSSH,
	},
	OSUbuntu: {
		imagePattern: "*ubuntu*22.04*",
		owner:        ownerCanonical,
		loginUser:    "ubuntu",
		defaultPort:  portSSH,
	},
	OSWindows: {
		imagePattern: "Windows_Server-2022-English-Full-Base*",
		owner:        ownerAmazon,
		defaultPort:  portRDP,
		windows:      true,
	},
	OSWindowsCore: {
		imagePattern: "Windows_Server-2022-English-Core-Base*",
		owner:        ownerAmazon,
		defaultPort:  portRDP,
		windows:      true,
	},
}

// OSNames lists the supported OS selectors, sorted.
func OSNames() []string {
	names := make([]string, 0, len(osProfiles))
	for name := range osProfiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookupOS(name string) (osProfile, error) {
	p, ok := osProfiles[name]
	if !ok {
		return osProfile{}, fmt.Errorf("unsupported os %q (supported: %s)", name, strings.Join(OSNames(), ", "))
	}
	return p, nil
}

// ValidateOS checks that name is a supported OS selector.
func ValidateOS(name string) error {
	_, err := lookupOS(name)
	return err
}

// IsWindows reports whether os boots a Windows image.
func IsWindows(os string) bool {
	return osProfiles[os].windows
}

// DefaultPort is the port opened when none is requested: 22 for Linux,
// 3389 for Windows.
func DefaultPort(os string) int32 {
	if p, ok := osProfiles[os]; ok {
		return p.defaultPort
	}
	return portSSH
}

// ConnectionStrings renders one connection hint per instance with a public
// address: an ssh command line for Linux, "*<ip>" for Windows (connect over
// RDP with the password from describe).
func ConnectionStrings(instances []Instance, os, keyFile string) []string {
	p, ok := osProfiles[os]
	if !ok {
		return nil
	}
	var out []string
	for _, inst := range instances {
		if inst.PublicIP == "" {
			continue
		}
		if p.windows {
			out = append(out, "*"+inst.PublicIP)
			continue
		}
		out = append(out, fmt.Sprintf("ssh -i %s %s@%s", keyFile, p.loginUser, inst.PublicIP))
	}
	return out
}

// KeyFile is the private key path used in connection strings.
func KeyFile(app, target string) string {
	return keyfile.Path(app, target)
}
