// Package handlers implements the business logic for CLI commands.
//
// Each handler loads defaults, builds the AWS clients for the selected
// profile and region, runs one orchestrator operation and prints the
// summary to stdout. Progress and detail go to stderr through the logger.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/logging"
	"github.com/imamik/quickhost/internal/orchestration"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/ui"
)

// Globals are the flags shared by every command.
type Globals struct {
	Profile    string
	Region     string
	ConfigPath string
	Verbosity  int
	// Yes skips confirmation prompts.
	Yes bool
}

// Factory function variables - can be replaced in tests.
var (
	loadConfig = config.Load
	newClients = awsplatform.NewClients
	newLogger  = func(verbosity int) logr.Logger {
		return logging.New(logging.Options{Verbosity: verbosity})
	}
	newOrchestrator = func(clients *awsplatform.Clients, observer provisioning.Observer) *orchestration.Orchestrator {
		return orchestration.New(clients, observer, config.LoadTimeouts())
	}
	confirm = promptConfirm

	stdout     io.Writer = os.Stdout
	isTerminal           = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}
)

// session is what every handler needs after flag resolution.
type session struct {
	cfg    *config.Config
	orch   *orchestration.Orchestrator
	log    logr.Logger
	out    *ui.Printer
	region string
}

// open resolves configuration and connects. admin selects the profile
// rules for init and destroy-all: the --profile flag or the SDK default
// chain, never the quickhost user profile from the config file.
func open(ctx context.Context, g Globals, admin bool) (*session, error) {
	cfg, err := loadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	pc := awsplatform.ProviderContext{Profile: cfg.Profile, Region: cfg.Region}
	if admin {
		pc.Profile = ""
	}
	if g.Profile != "" {
		pc.Profile = g.Profile
	}
	if g.Region != "" {
		pc.Region = g.Region
	}

	log := newLogger(g.Verbosity)
	clients, err := newClients(ctx, pc)
	if err != nil {
		return nil, err
	}
	log.V(1).Info("connected", "provider", pc.String())

	observer := provisioning.NewLogObserver(log)
	return &session{
		cfg:    cfg,
		orch:   newOrchestrator(clients, observer),
		log:    log,
		out:    ui.NewPrinter(stdout),
		region: pc.Region,
	}, nil
}

// ask confirms a destructive or billable operation. Without a terminal
// the user must pass --yes.
func ask(ctx context.Context, g Globals, prompt string) error {
	if g.Yes {
		return nil
	}
	if !isTerminal() {
		return fmt.Errorf("%w: %s, pass --yes to proceed without a terminal", ErrAborted, prompt)
	}
	ok, err := confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

func promptConfirm(ctx context.Context, prompt string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Description("proceed?").
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}
