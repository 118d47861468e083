package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/quickhost/internal/orchestration"
)

// InitOptions are the init flags.
type InitOptions struct {
	VPCCIDR    string
	SkipVerify bool
}

// Init handles the init command. It runs with the administrator profile
// given by --profile (or the SDK default chain) and creates the quickhost
// user profile used by every other command.
func Init(ctx context.Context, g Globals, o InitOptions) error {
	s, err := open(ctx, g, true)
	if err != nil {
		return err
	}
	cidr := o.VPCCIDR
	if cidr == "" {
		cidr = s.cfg.Network.VPCCIDR
	}
	res, err := s.orch.Init(ctx, orchestration.InitParams{VPCCIDR: cidr, SkipVerify: o.SkipVerify})
	if res == nil {
		return err
	}
	s.out.Init(res)
	return result(res.Report, err)
}

// DestroyAllOptions are the destroy-all flags.
type DestroyAllOptions struct {
	KeyDir       string
	KeepIdentity bool
}

// DestroyAll handles the destroy-all command. Like init it needs the
// administrator profile, since it removes the quickhost user too.
func DestroyAll(ctx context.Context, g Globals, o DestroyAllOptions) error {
	s, err := open(ctx, g, !o.KeepIdentity)
	if err != nil {
		return err
	}
	what := "every app, the network and the quickhost user"
	if o.KeepIdentity {
		what = "every app and the network"
	}
	if err := ask(ctx, g, fmt.Sprintf("destroy %s in %s", what, s.region)); err != nil {
		return err
	}
	res, err := s.orch.DestroyAll(ctx, orchestration.DestroyAllParams{KeyDir: o.KeyDir, KeepIdentity: o.KeepIdentity})
	if res == nil {
		return err
	}
	s.out.DestroyAll(res)
	return result(res.Report, err)
}
