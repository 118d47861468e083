package orchestration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/imamik/quickhost/internal/config"
	"github.com/imamik/quickhost/internal/credstore"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/provisioning/compute"
	"github.com/imamik/quickhost/internal/provisioning/firewall"
	"github.com/imamik/quickhost/internal/provisioning/identity"
	"github.com/imamik/quickhost/internal/provisioning/keypair"
	"github.com/imamik/quickhost/internal/provisioning/network"
	"github.com/imamik/quickhost/internal/util/memo"
	"github.com/imamik/quickhost/internal/util/netutil"
)

// networkDefaults is used by every verb that only reads or deletes the network.
var networkDefaults = config.NetworkConfig{}

// ClientFactory builds API clients; Init uses it to authenticate as the
// new principal.
type ClientFactory func(ctx context.Context, pc awsplatform.ProviderContext, opts ...awsplatform.ClientOption) (*awsplatform.Clients, error)

// PortWaiter blocks until ip accepts TCP connections on port.
type PortWaiter func(ctx context.Context, ip string, port int32, timeout, interval time.Duration) error

// Orchestrator runs the quickhost verbs against one account and region.
type Orchestrator struct {
	clients  *awsplatform.Clients
	observer provisioning.Observer
	timeouts *config.Timeouts
	network  *memo.Cache[*network.Stack]

	store       *credstore.Store
	publicIP    func(ctx context.Context) (string, error)
	waitForPort PortWaiter
	newClients  ClientFactory
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCredentialStore sets the local AWS config store used by Init and DestroyAll.
func WithCredentialStore(store *credstore.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithPublicIPLookup replaces the caller address lookup.
func WithPublicIPLookup(fn func(ctx context.Context) (string, error)) Option {
	return func(o *Orchestrator) { o.publicIP = fn }
}

// WithPortWaiter replaces the TCP readiness probe.
func WithPortWaiter(fn PortWaiter) Option {
	return func(o *Orchestrator) { o.waitForPort = fn }
}

// WithClientFactory replaces the SDK client constructor.
func WithClientFactory(fn ClientFactory) Option {
	return func(o *Orchestrator) { o.newClients = fn }
}

// WithNetworkCache shares a network memo cache between orchestrators.
func WithNetworkCache(cache *memo.Cache[*network.Stack]) Option {
	return func(o *Orchestrator) { o.network = cache }
}

// New returns an orchestrator over clients.
func New(clients *awsplatform.Clients, observer provisioning.Observer, timeouts *config.Timeouts, opts ...Option) *Orchestrator {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	o := &Orchestrator{
		clients:  clients,
		observer: observer,
		timeouts: timeouts,
		publicIP: func(ctx context.Context) (string, error) {
			return netutil.GetPublicIP(ctx, &http.Client{Timeout: 10 * time.Second}, "")
		},
		waitForPort: netutil.WaitForPort,
		newClients:  awsplatform.NewClients,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.network == nil {
		o.network = memo.New[*network.Stack](timeouts.NetworkCacheTTL)
	}
	return o
}

// Region is the region every verb runs in.
func (o *Orchestrator) Region() string {
	return o.clients.Provider.Region
}

func (o *Orchestrator) credentialStore() (*credstore.Store, error) {
	if o.store != nil {
		return o.store, nil
	}
	store, err := credstore.NewDefault()
	if err != nil {
		return nil, err
	}
	o.store = store
	return store, nil
}

func (o *Orchestrator) networkReconciler(cfg config.NetworkConfig) *network.Reconciler {
	return network.NewReconciler(o.clients.EC2, o.observer, o.timeouts, o.network, cfg)
}

func (o *Orchestrator) identityReconciler() (*identity.Reconciler, error) {
	store, err := o.credentialStore()
	if err != nil {
		return nil, err
	}
	return identity.NewReconciler(o.clients.IAM, o.clients.STS, store, o.observer, o.timeouts, o.Region()), nil
}

func (o *Orchestrator) keypairs(app string) *keypair.Manager {
	return keypair.NewManager(o.clients.EC2, o.observer.WithFields(map[string]string{"app": app}), app)
}

func (o *Orchestrator) firewall(app, vpcID string) *firewall.Manager {
	return firewall.NewManager(o.clients.EC2, o.observer.WithFields(map[string]string{"app": app}), o.timeouts, app, vpcID)
}

// compute returns the app's compute reconciler. Every polling tally is
// printed; a WithTickFunc in opts replaces that.
func (o *Orchestrator) compute(app string, opts ...compute.Option) *compute.Reconciler {
	obs := o.observer.WithFields(map[string]string{"app": app})
	printTally := compute.WithTickFunc(func(t provisioning.Tally) {
		obs.Printf("[compute] %s", t)
	})
	return compute.NewReconciler(o.clients.EC2, obs, o.timeouts, app, append([]compute.Option{printTally}, opts...)...)
}

// readyNetwork returns the cached network stack, or ErrNotInitialized when
// init has not run or left the stack incomplete.
func (o *Orchestrator) readyNetwork(ctx context.Context) (*network.Stack, error) {
	stack, err := o.networkReconciler(networkDefaults).Describe(ctx, false)
	if err != nil {
		return nil, err
	}
	if stack.Empty() {
		return nil, provisioning.ErrNotInitialized
	}
	if !stack.Ready() {
		return nil, fmt.Errorf("%w (%v)", provisioning.ErrNotInitialized, stack.Problems())
	}
	return stack, nil
}

// ingressCIDRs normalizes cidrs and appends the caller's own /32. A failed
// lookup is only fatal when nothing else would be allowed in.
func (o *Orchestrator) ingressCIDRs(ctx context.Context, phase string, cidrs []string) ([]string, error) {
	var out []string
	for _, c := range cidrs {
		cidr, assumed, err := config.NormalizeIngressCIDR(c)
		if err != nil {
			return nil, err
		}
		if assumed {
			provisioning.LogWarning(o.observer, phase, "%s has no prefix length, assuming %s", c, cidr)
		}
		out = append(out, cidr)
	}

	ip, err := o.publicIP(ctx)
	if err != nil {
		if len(out) == 0 {
			return nil, fmt.Errorf("%w; pass --cidr to choose who may connect", err)
		}
		provisioning.LogWarning(o.observer, phase, "%v, only the given CIDRs are allowed", err)
		return out, nil
	}
	self, _, err := config.NormalizeIngressCIDR(ip)
	if err != nil {
		return nil, err
	}
	return append(out, self), nil
}
