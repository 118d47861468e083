package identity

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/credstore"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/naming"
	"github.com/imamik/quickhost/internal/util/tags"
)

const (
	phase         = "identity"
	profileOutput = "json"
)

// Principal is the observed state of the quickhost identity objects.
// Missing pieces are left empty.
type Principal struct {
	UserName string
	UserARN  string

	GroupName string
	GroupARN  string
	// InGroup is true when the user is a member of the group.
	InGroup bool

	// PolicyARNs maps each action to its policy ARN ("" when absent).
	PolicyARNs map[string]string
	// AttachedPolicyARNs lists the policies attached to the group.
	AttachedPolicyARNs []string

	AccessKeyIDs []string
	// NewAccessKeyID is set when Create minted a key during this call.
	NewAccessKeyID string

	Profile *credstore.Status
}

// Exists reports whether any remote identity object was found.
func (p *Principal) Exists() bool {
	if p.UserARN != "" || p.GroupARN != "" {
		return true
	}
	for _, arn := range p.PolicyARNs {
		if arn != "" {
			return true
		}
	}
	return false
}

// Complete reports whether every object exists and is wired together.
func (p *Principal) Complete() bool {
	if p.UserARN == "" || p.GroupARN == "" || !p.InGroup {
		return false
	}
	for _, action := range naming.Actions() {
		arn := p.PolicyARNs[action]
		if arn == "" || !slices.Contains(p.AttachedPolicyARNs, arn) {
			return false
		}
	}
	return true
}

// Reconciler creates, describes and destroys the quickhost principal.
type Reconciler struct {
	iam      awsplatform.IAMAPI
	sts      awsplatform.STSAPI
	store    *credstore.Store
	observer provisioning.Observer
	timeouts *config.Timeouts
	region   string
}

// NewReconciler returns an identity reconciler. region is written to the
// local profile created for the principal.
func NewReconciler(iamClient awsplatform.IAMAPI, stsClient awsplatform.STSAPI, store *credstore.Store, observer provisioning.Observer, timeouts *config.Timeouts, region string) *Reconciler {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	if region == "" {
		region = awsplatform.DefaultRegion
	}
	return &Reconciler{
		iam:      iamClient,
		sts:      stsClient,
		store:    store,
		observer: observer,
		timeouts: timeouts,
		region:   region,
	}
}

// Create ensures every identity object and the local profile. The caller
// must not be the principal itself; that is checked before any change.
func (r *Reconciler) Create(ctx context.Context) (*Principal, error) {
	caller, err := r.guard(ctx, "identity create")
	if err != nil {
		return nil, err
	}

	if err := r.ensureUser(ctx); err != nil {
		return nil, err
	}
	if err := r.ensureGroup(ctx); err != nil {
		return nil, err
	}
	if err := r.ensureProfile(); err != nil {
		return nil, err
	}
	keyID, err := r.ensureAccessKey(ctx)
	if err != nil {
		return nil, err
	}

	arns, err := r.ensurePolicies(ctx, caller.Account)
	if err != nil {
		return nil, err
	}
	for _, action := range naming.Actions() {
		if _, err := r.iam.AttachGroupPolicy(ctx, &iam.AttachGroupPolicyInput{
			GroupName: aws.String(naming.Group()),
			PolicyArn: aws.String(arns[action]),
		}); err != nil {
			return nil, provisioning.Classify("attach policy "+naming.Policy(action), err)
		}
	}
	if _, err := r.iam.AddUserToGroup(ctx, &iam.AddUserToGroupInput{
		GroupName: aws.String(naming.Group()),
		UserName:  aws.String(naming.User()),
	}); err != nil {
		return nil, provisioning.Classify("add user to group", err)
	}

	p, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}
	p.NewAccessKeyID = keyID
	return p, nil
}

func (r *Reconciler) ensureUser(ctx context.Context) error {
	name := naming.User()
	res, err := (&awsplatform.EnsureOperation[*iamtypes.User]{
		Name:         name,
		ResourceType: "iam user",
		Describe: func(ctx context.Context) (*iamtypes.User, bool, error) {
			out, err := r.iam.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(name)})
			if awsplatform.IsNotFound(err) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, provisioning.Classify("get user", err)
			}
			return out.User, true, nil
		},
		Create: func(ctx context.Context) (*iamtypes.User, error) {
			provisioning.LogResourceCreating(r.observer, phase, "iam user", name)
			out, err := r.iam.CreateUser(ctx, &iam.CreateUserInput{
				UserName: aws.String(name),
				Path:     aws.String(naming.Path),
				Tags:     tags.ForNetwork().IAM(),
			})
			if err != nil {
				return nil, provisioning.Classify("create user", err)
			}
			return out.User, nil
		},
	}).Execute(ctx)
	if err != nil {
		return err
	}
	if res.Created {
		provisioning.LogResourceCreated(r.observer, phase, "iam user", name, aws.ToString(res.Resource.Arn))
	} else {
		provisioning.LogWarning(r.observer, phase, "iam user %s already exists, reusing it", name)
	}
	return nil
}

func (r *Reconciler) ensureGroup(ctx context.Context) error {
	name := naming.Group()
	res, err := (&awsplatform.EnsureOperation[*iamtypes.Group]{
		Name:         name,
		ResourceType: "iam group",
		Describe: func(ctx context.Context) (*iamtypes.Group, bool, error) {
			out, err := r.iam.GetGroup(ctx, &iam.GetGroupInput{GroupName: aws.String(name)})
			if awsplatform.IsNotFound(err) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, provisioning.Classify("get group", err)
			}
			return out.Group, true, nil
		},
		Create: func(ctx context.Context) (*iamtypes.Group, error) {
			provisioning.LogResourceCreating(r.observer, phase, "iam group", name)
			out, err := r.iam.CreateGroup(ctx, &iam.CreateGroupInput{
				GroupName: aws.String(name),
				Path:      aws.String(naming.Path),
			})
			if err != nil {
				return nil, provisioning.Classify("create group", err)
			}
			return out.Group, nil
		},
	}).Execute(ctx)
	if err != nil {
		return err
	}
	if res.Created {
		provisioning.LogResourceCreated(r.observer, phase, "iam group", name, aws.ToString(res.Resource.Arn))
	} else {
		provisioning.LogResourceExists(r.observer, phase, "iam group", name, aws.ToString(res.Resource.Arn))
	}
	return nil
}

func (r *Reconciler) ensureProfile() error {
	profile := naming.Profile()
	written, err := r.store.PutConfig(profile, r.region, profileOutput)
	if err != nil {
		return fmt.Errorf("failed to write profile %s: %w", profile, err)
	}
	if written {
		provisioning.LogResourceCreated(r.observer, phase, "profile", profile, r.store.ConfigPath)
	} else {
		provisioning.LogWarning(r.observer, phase, "profile %s already exists in %s, leaving it unchanged", profile, r.store.ConfigPath)
	}
	return nil
}

// ensureAccessKey mints a key only when none is recorded locally, since the
// secret cannot be fetched again later. It returns the new key id or "".
func (r *Reconciler) ensureAccessKey(ctx context.Context) (string, error) {
	profile := naming.Profile()
	st, err := r.store.Status(profile)
	if err != nil {
		return "", err
	}
	if st.HasCredentials {
		provisioning.LogResourceExists(r.observer, phase, "access key", profile, st.AccessKeyID)
		return "", nil
	}

	provisioning.LogResourceCreating(r.observer, phase, "access key", naming.User())
	out, err := r.iam.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String(naming.User())})
	if err != nil {
		if awsplatform.ErrorCode(err) == "LimitExceeded" {
			return "", fmt.Errorf("user %s already has the maximum number of access keys and none is stored locally; run 'quickhost destroy-all' or delete a key: %w", naming.User(), err)
		}
		return "", provisioning.Classify("create access key", err)
	}
	id := aws.ToString(out.AccessKey.AccessKeyId)
	if err := r.store.PutCredentials(profile, id, aws.ToString(out.AccessKey.SecretAccessKey)); err != nil {
		return "", fmt.Errorf("access key %s was created but could not be stored: %w", id, err)
	}
	provisioning.LogResourceCreated(r.observer, phase, "access key", profile, id)
	return id, nil
}

// listPolicies returns the ARNs of the quickhost policies keyed by action.
// Policies under the quickhost path with other names are reported and skipped.
func (r *Reconciler) listPolicies(ctx context.Context) (map[string]string, error) {
	known := make(map[string]string, len(naming.Actions()))
	for _, action := range naming.Actions() {
		known[naming.Policy(action)] = action
	}

	arns := make(map[string]string, len(known))
	pager := iam.NewListPoliciesPaginator(r.iam, &iam.ListPoliciesInput{
		PathPrefix: aws.String(naming.Path),
		Scope:      iamtypes.PolicyScopeTypeLocal,
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, provisioning.Classify("list policies", err)
		}
		for _, p := range page.Policies {
			name := aws.ToString(p.PolicyName)
			action, ok := known[name]
			if !ok {
				provisioning.LogWarning(r.observer, phase, "found unknown quickhost policy %s", name)
				continue
			}
			arns[action] = aws.ToString(p.Arn)
		}
	}
	return arns, nil
}

func (r *Reconciler) ensurePolicies(ctx context.Context, account string) (map[string]string, error) {
	arns := make(map[string]string)
	for _, action := range naming.Actions() {
		name := naming.Policy(action)
		res, err := (&awsplatform.EnsureOperation[string]{
			Name:         name,
			ResourceType: "iam policy",
			Describe: func(ctx context.Context) (string, bool, error) {
				existing, err := r.listPolicies(ctx)
				if err != nil {
					return "", false, err
				}
				arn, ok := existing[action]
				return arn, ok, nil
			},
			Create: func(ctx context.Context) (string, error) {
				doc, err := PolicyDocument(action, account)
				if err != nil {
					return "", err
				}
				provisioning.LogResourceCreating(r.observer, phase, "iam policy", name)
				out, err := r.iam.CreatePolicy(ctx, &iam.CreatePolicyInput{
					PolicyName:     aws.String(name),
					Path:           aws.String(naming.Path),
					PolicyDocument: aws.String(doc),
					Description:    aws.String(fmt.Sprintf("Allow %s to %s apps", naming.Group(), action)),
					Tags:           tags.ForNetwork().IAM(),
				})
				if err != nil {
					return "", provisioning.Classify("create policy "+name, err)
				}
				return aws.ToString(out.Policy.Arn), nil
			},
		}).Execute(ctx)
		if err != nil {
			return nil, err
		}
		if res.Created {
			provisioning.LogResourceCreated(r.observer, phase, "iam policy", name, res.Resource)
		} else {
			provisioning.LogResourceExists(r.observer, phase, "iam policy", name, res.Resource)
		}
		arns[action] = res.Resource
	}
	return arns, nil
}

// Describe reads the identity objects and the local profile.
func (r *Reconciler) Describe(ctx context.Context) (*Principal, error) {
	p := &Principal{
		UserName:   naming.User(),
		GroupName:  naming.Group(),
		PolicyARNs: make(map[string]string),
	}

	user, err := r.iam.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(p.UserName)})
	switch {
	case err == nil:
		p.UserARN = aws.ToString(user.User.Arn)
		keys, err := r.accessKeyIDs(ctx)
		if err != nil {
			return nil, err
		}
		p.AccessKeyIDs = keys
	case !awsplatform.IsNotFound(err):
		return nil, provisioning.Classify("get user", err)
	}

	group, err := r.iam.GetGroup(ctx, &iam.GetGroupInput{GroupName: aws.String(p.GroupName)})
	switch {
	case err == nil:
		p.GroupARN = aws.ToString(group.Group.Arn)
		p.InGroup = slices.ContainsFunc(group.Users, func(u iamtypes.User) bool {
			return aws.ToString(u.UserName) == p.UserName
		})
		attached, err := r.attachedPolicies(ctx)
		if err != nil {
			return nil, err
		}
		p.AttachedPolicyARNs = attached
	case !awsplatform.IsNotFound(err):
		return nil, provisioning.Classify("get group", err)
	}

	arns, err := r.listPolicies(ctx)
	if err != nil {
		return nil, err
	}
	for _, action := range naming.Actions() {
		p.PolicyARNs[action] = arns[action]
	}

	if r.store != nil {
		st, err := r.store.Status(naming.Profile())
		if err != nil {
			return nil, err
		}
		p.Profile = st
	}
	return p, nil
}

func (r *Reconciler) accessKeyIDs(ctx context.Context) ([]string, error) {
	var ids []string
	pager := iam.NewListAccessKeysPaginator(r.iam, &iam.ListAccessKeysInput{UserName: aws.String(naming.User())})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if awsplatform.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, provisioning.Classify("list access keys", err)
		}
		for _, k := range page.AccessKeyMetadata {
			ids = append(ids, aws.ToString(k.AccessKeyId))
		}
	}
	return ids, nil
}

func (r *Reconciler) attachedPolicies(ctx context.Context) ([]string, error) {
	var arns []string
	pager := iam.NewListAttachedGroupPoliciesPaginator(r.iam, &iam.ListAttachedGroupPoliciesInput{GroupName: aws.String(naming.Group())})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if awsplatform.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, provisioning.Classify("list attached group policies", err)
		}
		for _, p := range page.AttachedPolicies {
			arns = append(arns, aws.ToString(p.PolicyArn))
		}
	}
	return arns, nil
}

// Destroy removes the principal, its policies, access keys and local
// profile. It reports false when no remote object existed.
func (r *Reconciler) Destroy(ctx context.Context) (bool, error) {
	if _, err := r.guard(ctx, "identity destroy"); err != nil {
		return false, err
	}

	p, err := r.Describe(ctx)
	if err != nil {
		return false, err
	}

	if p.InGroup {
		if _, err := r.iam.RemoveUserFromGroup(ctx, &iam.RemoveUserFromGroupInput{
			GroupName: aws.String(p.GroupName),
			UserName:  aws.String(p.UserName),
		}); err != nil && !awsplatform.IsNotFound(err) {
			return false, provisioning.Classify("remove user from group", err)
		}
	}

	for _, action := range naming.Actions() {
		arn := p.PolicyARNs[action]
		if arn == "" {
			provisioning.LogResourceAbsent(r.observer, phase, "iam policy", naming.Policy(action))
			continue
		}
		if slices.Contains(p.AttachedPolicyARNs, arn) {
			if _, err := r.iam.DetachGroupPolicy(ctx, &iam.DetachGroupPolicyInput{
				GroupName: aws.String(p.GroupName),
				PolicyArn: aws.String(arn),
			}); err != nil && !awsplatform.IsNotFound(err) {
				return false, provisioning.Classify("detach policy "+naming.Policy(action), err)
			}
		}
		if err := r.delete(ctx, "iam policy", naming.Policy(action), func(ctx context.Context) error {
			_, err := r.iam.DeletePolicy(ctx, &iam.DeletePolicyInput{PolicyArn: aws.String(arn)})
			return err
		}); err != nil {
			return false, err
		}
	}

	if p.GroupARN != "" {
		if err := r.delete(ctx, "iam group", p.GroupName, func(ctx context.Context) error {
			_, err := r.iam.DeleteGroup(ctx, &iam.DeleteGroupInput{GroupName: aws.String(p.GroupName)})
			return err
		}); err != nil {
			return false, err
		}
	}

	if r.store != nil {
		cfg, creds, err := r.store.DeleteProfile(naming.Profile())
		if err != nil {
			return false, fmt.Errorf("failed to remove profile %s: %w", naming.Profile(), err)
		}
		if cfg || creds {
			provisioning.LogResourceDeleted(r.observer, phase, "profile", naming.Profile())
		} else {
			provisioning.LogWarning(r.observer, phase, "no local profile %s found to remove", naming.Profile())
		}
	}

	for _, id := range p.AccessKeyIDs {
		if err := r.delete(ctx, "access key", id, func(ctx context.Context) error {
			_, err := r.iam.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
				UserName:    aws.String(p.UserName),
				AccessKeyId: aws.String(id),
			})
			return err
		}); err != nil {
			return false, err
		}
	}

	if p.UserARN != "" {
		if err := r.delete(ctx, "iam user", p.UserName, func(ctx context.Context) error {
			_, err := r.iam.DeleteUser(ctx, &iam.DeleteUserInput{UserName: aws.String(p.UserName)})
			return err
		}); err != nil {
			return false, err
		}
	}

	if !p.Exists() {
		provisioning.LogResourceAbsent(r.observer, phase, "identity", p.UserName)
		return false, nil
	}
	return true, nil
}

func (r *Reconciler) delete(ctx context.Context, resourceType, name string, fn func(context.Context) error) error {
	provisioning.LogResourceDeleting(r.observer, phase, resourceType, name)
	deleted, err := (&awsplatform.DeleteOperation{
		Name:              name,
		ResourceType:      resourceType,
		Delete:            fn,
		Timeout:           r.timeouts.Delete,
		RetryMaxAttempts:  r.timeouts.RetryMaxAttempts,
		RetryInitialDelay: r.timeouts.RetryInitialDelay,
	}).Execute(ctx)
	if err != nil {
		return provisioning.Classify("delete "+resourceType, err)
	}
	if deleted {
		provisioning.LogResourceDeleted(r.observer, phase, resourceType, name)
	} else {
		provisioning.LogResourceAbsent(r.observer, phase, resourceType, name)
	}
	return nil
}
