package fakes

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SetCaller changes the identity GetCallerIdentity reports.
func (c *Cloud) SetCaller(arn string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callerARN = arn
}

func (c *Cloud) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("sts:GetCallerIdentity"); err != nil {
		return nil, err
	}
	account := c.AccountID
	if parts := strings.Split(c.callerARN, ":"); len(parts) > 4 && parts[4] != "" {
		account = parts[4]
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(account),
		Arn:     aws.String(c.callerARN),
		UserId:  aws.String("AIDAFAKECALLER"),
	}, nil
}
