package fakes

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type user struct {
	info   iamtypes.User
	groups []string
}

type iamGroup struct {
	info     iamtypes.Group
	users    []string
	policies []string // ARNs
}

type policy struct {
	info     iamtypes.Policy
	document string
}

type accessKey struct {
	meta   iamtypes.AccessKeyMetadata
	secret string
}

func noSuchEntity(kind, name string) error {
	return APIError("NoSuchEntity", "The %s with name %s cannot be found.", kind, name)
}

func (c *Cloud) arn(kind, path, name string) string {
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("arn:aws:iam::%s:%s%s%s", c.AccountID, kind, path, name)
}

func (c *Cloud) GetUser(_ context.Context, in *iam.GetUserInput, _ ...func(*iam.Options)) (*iam.GetUserOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:GetUser"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.UserName)
	u, ok := c.users[name]
	if !ok {
		return nil, noSuchEntity("user", name)
	}
	info := u.info
	return &iam.GetUserOutput{User: &info}, nil
}

func (c *Cloud) CreateUser(_ context.Context, in *iam.CreateUserInput, _ ...func(*iam.Options)) (*iam.CreateUserOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:CreateUser"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.UserName)
	if _, ok := c.users[name]; ok {
		return nil, APIError("EntityAlreadyExists", "User with name %s already exists.", name)
	}
	created := c.tick()
	path := aws.ToString(in.Path)
	u := &user{info: iamtypes.User{
		UserName:   aws.String(name),
		UserId:     aws.String(strings.ToUpper(c.nextID("aida"))),
		Arn:        aws.String(c.arn("user", path, name)),
		Path:       aws.String(path),
		CreateDate: &created,
		Tags:       slices.Clone(in.Tags),
	}}
	c.users[name] = u
	info := u.info
	return &iam.CreateUserOutput{User: &info}, nil
}

func (c *Cloud) DeleteUser(_ context.Context, in *iam.DeleteUserInput, _ ...func(*iam.Options)) (*iam.DeleteUserOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:DeleteUser"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.UserName)
	u, ok := c.users[name]
	if !ok {
		return nil, noSuchEntity("user", name)
	}
	if len(u.groups) > 0 {
		return nil, APIError("DeleteConflict", "Cannot delete entity, must remove users from group first.")
	}
	for _, k := range c.accessKeys {
		if aws.ToString(k.meta.UserName) == name {
			return nil, APIError("DeleteConflict", "Cannot delete entity, must delete access keys first.")
		}
	}
	delete(c.users, name)
	return &iam.DeleteUserOutput{}, nil
}

func (c *Cloud) GetGroup(_ context.Context, in *iam.GetGroupInput, _ ...func(*iam.Options)) (*iam.GetGroupOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:GetGroup"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.GroupName)
	g, ok := c.iamGroups[name]
	if !ok {
		return nil, noSuchEntity("group", name)
	}
	info := g.info
	out := &iam.GetGroupOutput{Group: &info}
	for _, un := range g.users {
		if u, ok := c.users[un]; ok {
			out.Users = append(out.Users, u.info)
		}
	}
	return out, nil
}

func (c *Cloud) CreateGroup(_ context.Context, in *iam.CreateGroupInput, _ ...func(*iam.Options)) (*iam.CreateGroupOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:CreateGroup"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.GroupName)
	if _, ok := c.iamGroups[name]; ok {
		return nil, APIError("EntityAlreadyExists", "Group with name %s already exists.", name)
	}
	created := c.tick()
	path := aws.ToString(in.Path)
	g := &iamGroup{info: iamtypes.Group{
		GroupName:  aws.String(name),
		GroupId:    aws.String(strings.ToUpper(c.nextID("agpa"))),
		Arn:        aws.String(c.arn("group", path, name)),
		Path:       aws.String(path),
		CreateDate: &created,
	}}
	c.iamGroups[name] = g
	info := g.info
	return &iam.CreateGroupOutput{Group: &info}, nil
}

func (c *Cloud) DeleteGroup(_ context.Context, in *iam.DeleteGroupInput, _ ...func(*iam.Options)) (*iam.DeleteGroupOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:DeleteGroup"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.GroupName)
	g, ok := c.iamGroups[name]
	if !ok {
		return nil, noSuchEntity("group", name)
	}
	if len(g.users) > 0 || len(g.policies) > 0 {
		return nil, APIError("DeleteConflict", "Cannot delete entity, must remove users and detach policies first.")
	}
	delete(c.iamGroups, name)
	return &iam.DeleteGroupOutput{}, nil
}

func (c *Cloud) AddUserToGroup(_ context.Context, in *iam.AddUserToGroupInput, _ ...func(*iam.Options)) (*iam.AddUserToGroupOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:AddUserToGroup"); err != nil {
		return nil, err
	}
	gn, un := aws.ToString(in.GroupName), aws.ToString(in.UserName)
	g, ok := c.iamGroups[gn]
	if !ok {
		return nil, noSuchEntity("group", gn)
	}
	u, ok := c.users[un]
	if !ok {
		return nil, noSuchEntity("user", un)
	}
	if !slices.Contains(g.users, un) {
		g.users = append(g.users, un)
		u.groups = append(u.groups, gn)
	}
	return &iam.AddUserToGroupOutput{}, nil
}

func (c *Cloud) RemoveUserFromGroup(_ context.Context, in *iam.RemoveUserFromGroupInput, _ ...func(*iam.Options)) (*iam.RemoveUserFromGroupOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:RemoveUserFromGroup"); err != nil {
		return nil, err
	}
	gn, un := aws.ToString(in.GroupName), aws.ToString(in.UserName)
	g, ok := c.iamGroups[gn]
	if !ok {
		return nil, noSuchEntity("group", gn)
	}
	u, ok := c.users[un]
	if !ok || !slices.Contains(g.users, un) {
		return nil, noSuchEntity("user", un)
	}
	g.users = slices.DeleteFunc(g.users, func(s string) bool { return s == un })
	u.groups = slices.DeleteFunc(u.groups, func(s string) bool { return s == gn })
	return &iam.RemoveUserFromGroupOutput{}, nil
}

func (c *Cloud) ListPolicies(_ context.Context, in *iam.ListPoliciesInput, _ ...func(*iam.Options)) (*iam.ListPoliciesOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:ListPolicies"); err != nil {
		return nil, err
	}
	prefix := aws.ToString(in.PathPrefix)
	out := &iam.ListPoliciesOutput{}
	for _, arn := range sortedKeys(c.policies) {
		p := c.policies[arn]
		if prefix != "" && !strings.HasPrefix(aws.ToString(p.info.Path), prefix) {
			continue
		}
		info := p.info
		info.AttachmentCount = aws.Int32(c.attachments(arn))
		out.Policies = append(out.Policies, info)
	}
	return out, nil
}

func (c *Cloud) attachments(arn string) int32 {
	var n int32
	for _, g := range c.iamGroups {
		if slices.Contains(g.policies, arn) {
			n++
		}
	}
	return n
}

func (c *Cloud) CreatePolicy(_ context.Context, in *iam.CreatePolicyInput, _ ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:CreatePolicy"); err != nil {
		return nil, err
	}
	name, path := aws.ToString(in.PolicyName), aws.ToString(in.Path)
	arn := c.arn("policy", path, name)
	if _, ok := c.policies[arn]; ok {
		return nil, APIError("EntityAlreadyExists", "A policy called %s already exists. Duplicate names are not allowed.", name)
	}
	if aws.ToString(in.PolicyDocument) == "" {
		return nil, APIError("MalformedPolicyDocument", "policy document is empty")
	}
	created := c.tick()
	p := &policy{
		info: iamtypes.Policy{
			PolicyName:       aws.String(name),
			PolicyId:         aws.String(strings.ToUpper(c.nextID("anpa"))),
			Arn:              aws.String(arn),
			Path:             aws.String(path),
			Description:      in.Description,
			DefaultVersionId: aws.String("v1"),
			CreateDate:       &created,
			Tags:             slices.Clone(in.Tags),
		},
		document: aws.ToString(in.PolicyDocument),
	}
	c.policies[arn] = p
	info := p.info
	return &iam.CreatePolicyOutput{Policy: &info}, nil
}

func (c *Cloud) DeletePolicy(_ context.Context, in *iam.DeletePolicyInput, _ ...func(*iam.Options)) (*iam.DeletePolicyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:DeletePolicy"); err != nil {
		return nil, err
	}
	arn := aws.ToString(in.PolicyArn)
	if _, ok := c.policies[arn]; !ok {
		return nil, APIError("NoSuchEntity", "Policy %s does not exist or is not attachable.", arn)
	}
	if c.attachments(arn) > 0 {
		return nil, APIError("DeleteConflict", "Cannot delete a policy attached to entities.")
	}
	delete(c.policies, arn)
	return &iam.DeletePolicyOutput{}, nil
}

func (c *Cloud) AttachGroupPolicy(_ context.Context, in *iam.AttachGroupPolicyInput, _ ...func(*iam.Options)) (*iam.AttachGroupPolicyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:AttachGroupPolicy"); err != nil {
		return nil, err
	}
	gn, arn := aws.ToString(in.GroupName), aws.ToString(in.PolicyArn)
	g, ok := c.iamGroups[gn]
	if !ok {
		return nil, noSuchEntity("group", gn)
	}
	if _, ok := c.policies[arn]; !ok {
		return nil, APIError("NoSuchEntity", "Policy %s does not exist or is not attachable.", arn)
	}
	if !slices.Contains(g.policies, arn) {
		g.policies = append(g.policies, arn)
	}
	return &iam.AttachGroupPolicyOutput{}, nil
}

func (c *Cloud) DetachGroupPolicy(_ context.Context, in *iam.DetachGroupPolicyInput, _ ...func(*iam.Options)) (*iam.DetachGroupPolicyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:DetachGroupPolicy"); err != nil {
		return nil, err
	}
	gn, arn := aws.ToString(in.GroupName), aws.ToString(in.PolicyArn)
	g, ok := c.iamGroups[gn]
	if !ok {
		return nil, noSuchEntity("group", gn)
	}
	if !slices.Contains(g.policies, arn) {
		return nil, APIError("NoSuchEntity", "Policy %s was not found.", arn)
	}
	g.policies = slices.DeleteFunc(g.policies, func(s string) bool { return s == arn })
	return &iam.DetachGroupPolicyOutput{}, nil
}

func (c *Cloud) ListAttachedGroupPolicies(_ context.Context, in *iam.ListAttachedGroupPoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedGroupPoliciesOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:ListAttachedGroupPolicies"); err != nil {
		return nil, err
	}
	gn := aws.ToString(in.GroupName)
	g, ok := c.iamGroups[gn]
	if !ok {
		return nil, noSuchEntity("group", gn)
	}
	out := &iam.ListAttachedGroupPoliciesOutput{}
	for _, arn := range g.policies {
		if p, ok := c.policies[arn]; ok {
			out.AttachedPolicies = append(out.AttachedPolicies, iamtypes.AttachedPolicy{
				PolicyArn:  aws.String(arn),
				PolicyName: p.info.PolicyName,
			})
		}
	}
	return out, nil
}

func (c *Cloud) CreateAccessKey(_ context.Context, in *iam.CreateAccessKeyInput, _ ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:CreateAccessKey"); err != nil {
		return nil, err
	}
	un := aws.ToString(in.UserName)
	if _, ok := c.users[un]; !ok {
		return nil, noSuchEntity("user", un)
	}
	n := 0
	for _, k := range c.accessKeys {
		if aws.ToString(k.meta.UserName) == un {
			n++
		}
	}
	if n >= 2 {
		return nil, APIError("LimitExceeded", "Cannot exceed quota for AccessKeysPerUser: 2")
	}
	c.seq++
	id := fmt.Sprintf("AKIAFAKE%012d", c.seq)
	created := c.tick()
	k := &accessKey{
		meta: iamtypes.AccessKeyMetadata{
			AccessKeyId: aws.String(id),
			UserName:    aws.String(un),
			Status:      iamtypes.StatusTypeActive,
			CreateDate:  &created,
		},
		secret: fmt.Sprintf("secret-%s", id),
	}
	c.accessKeys[id] = k
	return &iam.CreateAccessKeyOutput{AccessKey: &iamtypes.AccessKey{
		AccessKeyId:     aws.String(id),
		SecretAccessKey: aws.String(k.secret),
		UserName:        aws.String(un),
		Status:          iamtypes.StatusTypeActive,
		CreateDate:      &created,
	}}, nil
}

func (c *Cloud) ListAccessKeys(_ context.Context, in *iam.ListAccessKeysInput, _ ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:ListAccessKeys"); err != nil {
		return nil, err
	}
	un := aws.ToString(in.UserName)
	if _, ok := c.users[un]; !ok {
		return nil, noSuchEntity("user", un)
	}
	out := &iam.ListAccessKeysOutput{}
	for _, id := range sortedKeys(c.accessKeys) {
		if k := c.accessKeys[id]; aws.ToString(k.meta.UserName) == un {
			out.AccessKeyMetadata = append(out.AccessKeyMetadata, k.meta)
		}
	}
	return out, nil
}

func (c *Cloud) DeleteAccessKey(_ context.Context, in *iam.DeleteAccessKeyInput, _ ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("iam:DeleteAccessKey"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.AccessKeyId)
	k, ok := c.accessKeys[id]
	if !ok || (in.UserName != nil && aws.ToString(k.meta.UserName) != aws.ToString(in.UserName)) {
		return nil, APIError("NoSuchEntity", "The Access Key with id %s cannot be found.", id)
	}
	delete(c.accessKeys, id)
	return &iam.DeleteAccessKeyOutput{}, nil
}

// PolicyDocument returns the JSON document of the named policy, or "".
func (c *Cloud) PolicyDocument(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.policies {
		if aws.ToString(p.info.PolicyName) == name {
			return p.document
		}
	}
	return ""
}

// IAMCounts reports how many identity objects exist, keyed by kind.
func (c *Cloud) IAMCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{
		"user":       len(c.users),
		"group":      len(c.iamGroups),
		"policy":     len(c.policies),
		"access-key": len(c.accessKeys),
	}
}
