package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/credstore"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/util/prerequisites"
)

// DoctorCheck is one line of the doctor report.
type DoctorCheck struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Required bool   `json:"required"`
	Detail   string `json:"detail,omitempty"`
}

// DoctorStatus is the local readiness report.
type DoctorStatus struct {
	Profile string        `json:"profile"`
	Region  string        `json:"region"`
	Checks  []DoctorCheck `json:"checks"`
}

// Healthy reports whether every required check passed.
func (s *DoctorStatus) Healthy() bool {
	for _, c := range s.Checks {
		if c.Required && !c.OK {
			return false
		}
	}
	return true
}

var (
	newCredStore = credstore.NewDefault
	checkTools   = prerequisites.CheckAll
	stdoutIsTTY  = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
)

// Doctor handles the doctor command. It only looks at the local machine.
func Doctor(_ context.Context, g Globals, jsonOutput bool) error {
	status, err := diagnose(g)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			return err
		}
	} else {
		printDoctor(status)
	}

	if !status.Healthy() {
		return errors.New("required checks failed")
	}
	return nil
}

func diagnose(g Globals) (*DoctorStatus, error) {
	cfg, err := loadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	status := &DoctorStatus{Profile: cfg.Profile, Region: cfg.Region}
	if g.Profile != "" {
		status.Profile = g.Profile
	}
	if g.Region != "" {
		status.Region = g.Region
	}

	regionOK := awsplatform.IsSupportedRegion(status.Region)
	regionDetail := ""
	if !regionOK {
		regionDetail = fmt.Sprintf("supported: %v", awsplatform.Regions())
	}
	status.Checks = append(status.Checks, DoctorCheck{Name: "region " + status.Region, OK: regionOK, Required: true, Detail: regionDetail})

	status.Checks = append(status.Checks, profileCheck(status.Profile))

	for _, r := range checkTools().Results {
		detail := r.Version
		if !r.Found {
			detail = "install: " + r.Tool.InstallURL
		}
		status.Checks = append(status.Checks, DoctorCheck{Name: r.Tool.Name, OK: r.Found, Required: r.Tool.Required, Detail: detail})
	}

	tty := stdoutIsTTY()
	ttyDetail := ""
	if !tty {
		ttyDetail = "plain output; prompts need --yes"
	}
	status.Checks = append(status.Checks, DoctorCheck{Name: "terminal", OK: tty, Detail: ttyDetail})
	return status, nil
}

func profileCheck(profile string) DoctorCheck {
	check := DoctorCheck{Name: "profile " + profile, Required: true}
	store, err := newCredStore()
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	st, err := store.Status(profile)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	switch {
	case st.HasCredentials:
		check.OK = true
		check.Detail = st.AccessKeyID
	case profile == config.DefaultProfile:
		check.Detail = "not found, run quickhost init with an administrator profile"
	default:
		check.Detail = "no credentials in " + store.CredentialsPath
	}
	return check
}

func printDoctor(s *DoctorStatus) {
	fmt.Fprintf(stdout, "quickhost doctor (%s)\n\n", s.Region)
	for _, c := range s.Checks {
		mark := "[OK]"
		switch {
		case !c.OK && c.Required:
			mark = "[!!]"
		case !c.OK:
			mark = "[??]"
		}
		if c.Detail != "" {
			fmt.Fprintf(stdout, "  %s %-28s %s\n", mark, c.Name, c.Detail)
		} else {
			fmt.Fprintf(stdout, "  %s %s\n", mark, c.Name)
		}
	}
}
