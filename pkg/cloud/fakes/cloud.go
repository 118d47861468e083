package fakes

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/smithy-go"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
)

const (
	DefaultAccountID = "123456789012"
	DefaultRegion    = "us-east-1"
	DefaultCallerARN = "arn:aws:iam::123456789012:user/admin"
)

// Cloud is an in-memory AWS account scoped to one region.
type Cloud struct {
	mu sync.Mutex

	AccountID string
	Region    string

	// PendingPolls is how many DescribeInstances calls a new instance
	// reports pending before it turns running. -1 keeps it pending forever.
	PendingPolls int
	// ShutdownPolls is the same for shutting-down → terminated.
	ShutdownPolls int
	// PasswordPolls is how many GetPasswordData calls return an empty
	// blob for a running Windows instance.
	PasswordPolls int
	// KeyBits sizes generated key pairs.
	KeyBits int

	callerARN string
	seq       int
	now       time.Time

	calls    map[string]int
	failures map[string][]error

	vpcs        map[string]*ec2types.Vpc
	subnets     map[string]*ec2types.Subnet
	gateways    map[string]*ec2types.InternetGateway
	routeTables map[string]*ec2types.RouteTable
	groups      map[string]*ec2types.SecurityGroup
	keyPairs    map[string]*keyPair
	images      map[string]*ec2types.Image
	instances   map[string]*instance
	tokens      map[string][]string
	runRequests []*ec2.RunInstancesInput
	schedule    []int

	users      map[string]*user
	iamGroups  map[string]*iamGroup
	policies   map[string]*policy
	accessKeys map[string]*accessKey
}

// New returns an empty account with default settings.
func New() *Cloud {
	return &Cloud{
		AccountID:     DefaultAccountID,
		Region:        DefaultRegion,
		PendingPolls:  1,
		ShutdownPolls: 1,
		KeyBits:       1024,
		callerARN:     DefaultCallerARN,
		now:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		calls:         make(map[string]int),
		failures:      make(map[string][]error),
		vpcs:          make(map[string]*ec2types.Vpc),
		subnets:       make(map[string]*ec2types.Subnet),
		gateways:      make(map[string]*ec2types.InternetGateway),
		routeTables:   make(map[string]*ec2types.RouteTable),
		groups:        make(map[string]*ec2types.SecurityGroup),
		keyPairs:      make(map[string]*keyPair),
		images:        make(map[string]*ec2types.Image),
		instances:     make(map[string]*instance),
		tokens:        make(map[string][]string),
		users:         make(map[string]*user),
		iamGroups:     make(map[string]*iamGroup),
		policies:      make(map[string]*policy),
		accessKeys:    make(map[string]*accessKey),
	}
}

// Clients wraps the fake as the client bundle reconcilers expect.
func (c *Cloud) Clients() *awsplatform.Clients {
	return &awsplatform.Clients{
		Provider: awsplatform.ProviderContext{Profile: "test", Region: c.Region},
		EC2:      c,
		IAM:      c,
		STS:      c,
	}
}

// APIError builds the error an AWS service returns for code.
func APIError(code, format string, v ...any) error {
	return &smithy.GenericAPIError{Code: code, Message: fmt.Sprintf(format, v...)}
}

// FailNext makes the next call of op return err. Calls queue up in order.
func (c *Cloud) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], err)
}

// Calls returns how many times op was called.
func (c *Cloud) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// ResetCalls clears every call counter.
func (c *Cloud) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = make(map[string]int)
}

var mutatingPrefixes = []string{
	"Create", "Delete", "Attach", "Detach", "Associate", "Disassociate",
	"Authorize", "Run", "Terminate", "Add", "Remove", "Replace",
}

// MutatingCalls counts calls that change state, across all services.
func (c *Cloud) MutatingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for op, count := range c.calls {
		if isMutating(op) {
			n += count
		}
	}
	return n
}

// MutatingIAMCalls counts state-changing IAM calls.
func (c *Cloud) MutatingIAMCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for op, count := range c.calls {
		if strings.HasPrefix(op, "iam:") && isMutating(op) {
			n += count
		}
	}
	return n
}

func isMutating(op string) bool {
	_, name, _ := strings.Cut(op, ":")
	for _, p := range mutatingPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// call records op and pops an injected failure. Callers hold c.mu.
func (c *Cloud) call(op string) error {
	c.calls[op]++
	if q := c.failures[op]; len(q) > 0 {
		c.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (c *Cloud) nextID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s-%08x", prefix, c.seq)
}

func (c *Cloud) tick() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var (
	_ awsplatform.EC2API = (*Cloud)(nil)
	_ awsplatform.IAMAPI = (*Cloud)(nil)
	_ awsplatform.STSAPI = (*Cloud)(nil)
)
