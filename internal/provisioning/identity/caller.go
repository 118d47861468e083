package identity

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/naming"
)

// Caller is the authenticated principal behind the active credentials.
type Caller struct {
	ARN     string
	Account string
	UserID  string
	// Kind is the ARN resource type: user, assumed-role, root, federated-user.
	Kind string
	// Name is the last path segment for users and the role name for
	// assumed roles. Empty for root.
	Name string
}

// IsPrincipal reports whether the caller is the quickhost user itself.
func (c *Caller) IsPrincipal() bool {
	return c.Kind == "user" && c.Name == naming.User()
}

// ParseCallerARN splits an STS caller ARN such as
// arn:aws:iam::123456789012:user/quickhost/quickhost-user or
// arn:aws:sts::123456789012:assumed-role/admin/session.
func ParseCallerARN(arn string) *Caller {
	c := &Caller{ARN: arn}
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return c
	}
	c.Account = parts[4]
	resource := parts[5]
	if resource == "root" {
		c.Kind = "root"
		return c
	}
	kind, rest, _ := strings.Cut(resource, "/")
	c.Kind = kind
	switch kind {
	case "assumed-role":
		c.Name, _, _ = strings.Cut(rest, "/")
	default:
		if i := strings.LastIndex(rest, "/"); i >= 0 {
			rest = rest[i+1:]
		}
		c.Name = rest
	}
	return c
}

// Caller resolves the identity of the active credentials.
func (r *Reconciler) Caller(ctx context.Context) (*Caller, error) {
	out, err := r.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, provisioning.Classify("get caller identity", err)
	}
	c := ParseCallerARN(aws.ToString(out.Arn))
	if acct := aws.ToString(out.Account); acct != "" {
		c.Account = acct
	}
	c.UserID = aws.ToString(out.UserId)
	return c, nil
}

// guard refuses to manage the principal with the principal's own credentials.
func (r *Reconciler) guard(ctx context.Context, operation string) (*Caller, error) {
	c, err := r.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if c.IsPrincipal() {
		return nil, &provisioning.UnauthorizedError{
			Operation:     operation,
			Principal:     c.Name,
			SelfBootstrap: true,
		}
	}
	return c, nil
}
