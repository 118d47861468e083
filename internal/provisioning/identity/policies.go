package identity

import (
	"encoding/json"
	"fmt"

	"github.com/imamik/quickhost/internal/util/naming"
)

const policyVersion = "2012-10-17"

type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Sid      string   `json:"Sid"`
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

func allow(sid string, resources []string, actions ...string) statement {
	return statement{Sid: sid, Effect: "Allow", Action: actions, Resource: resources}
}

var anyResource = []string{"*"}

func policyStatements(action, account string) ([]statement, error) {
	switch action {
	case naming.ActionCreate:
		return []statement{
			allow("quickhostCreate", anyResource,
				"ec2:CreateKeyPair",
				"ec2:CreateTags",
				"ec2:RunInstances",
				"ec2:CreateSecurityGroup",
				"ec2:AuthorizeSecurityGroupIngress",
			),
		}, nil
	case naming.ActionDescribe:
		return []statement{
			allow("quickhostDescribeUserActions", []string{
				fmt.Sprintf("arn:aws:iam::%s:user%s*", account, naming.Path),
				fmt.Sprintf("arn:aws:iam::%s:group%s*", account, naming.Path),
			},
				"iam:GetUser",
				"iam:GetGroup",
				"iam:ListUsers",
				"iam:ListAccessKeys",
				"iam:ListAttachedGroupPolicies",
			),
			allow("quickhostDescribePolicies", []string{
				fmt.Sprintf("arn:aws:iam::%s:policy%s*", account, naming.Path),
			},
				"iam:ListPolicies",
			),
			allow("quickhostDescribe", anyResource,
				"ec2:DescribeInstances",
				"ec2:DescribeVpcs",
				"ec2:DescribeSubnets",
				"ec2:DescribeInternetGateways",
				"ec2:DescribeRouteTables",
				"ec2:DescribeSecurityGroups",
				"ec2:DescribeKeyPairs",
				"ec2:DescribeImages",
				"ec2:GetPasswordData",
			),
		}, nil
	case naming.ActionUpdate:
		return []statement{
			allow("quickhostUpdate", anyResource,
				"ec2:DescribeSecurityGroups",
				"ec2:AuthorizeSecurityGroupIngress",
			),
		}, nil
	case naming.ActionDestroy:
		return []statement{
			allow("quickhostDelete", anyResource,
				"ec2:DescribeInstances",
				"ec2:DescribeSecurityGroups",
				"ec2:DeleteSecurityGroup",
				"ec2:DescribeKeyPairs",
				"ec2:DeleteKeyPair",
				"ec2:TerminateInstances",
			),
		}, nil
	default:
		return nil, fmt.Errorf("unknown policy action %q", action)
	}
}

// PolicyDocument renders the IAM policy JSON granting action to the
// quickhost group in account.
func PolicyDocument(action, account string) (string, error) {
	stmts, err := policyStatements(action, account)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(policyDocument{Version: policyVersion, Statement: stmts})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
