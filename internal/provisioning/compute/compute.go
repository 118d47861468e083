package compute

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/uuid"

	"github.com/imamik/quickhost/internal/config"
	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/tags"
)

const phase = "compute"

// Instance is the observed state of one EC2 instance.
type Instance struct {
	ID             string
	App            string
	State          ec2types.InstanceStateName
	ImageID        string
	InstanceType   string
	KeyName        string
	PublicIP       string
	PrivateIP      string
	SubnetID       string
	VpcID          string
	SecurityGroups []string
	Windows        bool
	LaunchTime     time.Time
}

// CreateParams describes one batch launch.
type CreateParams struct {
	Count        int32
	InstanceType string
	OS           string
	FirewallID   string
	SubnetID     string
	KeyName      string
	// KeyFile is the local private key path used in connection strings.
	KeyFile string
	// UserDataFile is optional; when set the file must exist.
	UserDataFile string
	// DiskSize is the requested root volume size in GiB; zero keeps the
	// image default.
	DiskSize int32
}

// Validate checks the parameters that do not need AWS.
func (p CreateParams) Validate() error {
	var errs []error
	if p.Count < 1 {
		errs = append(errs, fmt.Errorf("host count must be at least 1, got %d", p.Count))
	}
	if p.InstanceType == "" {
		errs = append(errs, errors.New("instance type is required"))
	}
	if err := ValidateOS(p.OS); err != nil {
		errs = append(errs, err)
	}
	if p.FirewallID == "" {
		errs = append(errs, errors.New("security group is required"))
	}
	if p.SubnetID == "" {
		errs = append(errs, errors.New("subnet is required"))
	}
	if p.UserDataFile != "" {
		if _, err := os.Stat(p.UserDataFile); err != nil {
			errs = append(errs, fmt.Errorf("userdata file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CreateResult reports a launched batch.
type CreateResult struct {
	ImageID     string
	ImageName   string
	DiskSize    int32
	DiskClamped bool
	Instances   []Instance
	Connections []string
	Tally       provisioning.Tally
}

// Reconciler launches and terminates the instances of one app.
type Reconciler struct {
	ec2      awsplatform.EC2API
	observer provisioning.Observer
	timeouts *config.Timeouts
	app      string
	onTick   TickFunc
	newToken func() string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTickFunc reports every polling tally to fn.
func WithTickFunc(fn TickFunc) Option {
	return func(r *Reconciler) { r.onTick = fn }
}

// NewReconciler returns the compute reconciler for app.
func NewReconciler(client awsplatform.EC2API, observer provisioning.Observer, timeouts *config.Timeouts, app string, opts ...Option) *Reconciler {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	r := &Reconciler{
		ec2:      client,
		observer: observer,
		timeouts: timeouts,
		app:      app,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create launches p.Count instances and waits until they all run. When the
// app already has live instances nothing is launched and Create returns
// nil, nil after reporting the conflict.
func (r *Reconciler) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	existing, err := r.instances(ctx,
		ec2types.InstanceStateNamePending,
		ec2types.InstanceStateNameRunning,
		ec2types.InstanceStateNameStopping,
		ec2types.InstanceStateNameStopped,
	)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		r.observer.Event(provisioning.Event{
			Type:     provisioning.EventResourceFailed,
			Phase:    phase,
			Resource: r.app,
			Message:  fmt.Sprintf("app %s already has %d host(s), destroy them before making new ones", r.app, len(existing)),
		})
		return nil, nil
	}

	img, err := ResolveImage(ctx, r.ec2, p.OS)
	if err != nil {
		return nil, err
	}
	size, clamped := ClampDiskSize(p.DiskSize, img.RootSizeGiB)
	if clamped {
		provisioning.LogWarning(r.observer, phase, "disk size %dGiB is smaller than image %s needs, using %dGiB", p.DiskSize, img.ID, size)
	}

	in, err := r.runInput(p, img, size)
	if err != nil {
		return nil, err
	}
	provisioning.LogResourceCreating(r.observer, phase, "instances", fmt.Sprintf("%d x %s (%s)", p.Count, p.InstanceType, img.Name))
	out, err := r.ec2.RunInstances(ctx, in)
	if err != nil {
		return nil, provisioning.Classify("run instances", err)
	}
	for _, inst := range out.Instances {
		provisioning.LogResourceCreated(r.observer, phase, "instance", r.app, aws.ToString(inst.InstanceId))
	}

	result := &CreateResult{ImageID: img.ID, ImageName: img.Name, DiskSize: size, DiskClamped: clamped}
	result.Tally, err = r.WaitForRunning(ctx, int(p.Count))
	if err != nil {
		return result, err
	}
	result.Instances, err = r.Describe(ctx)
	if err != nil {
		return result, err
	}
	result.Connections = ConnectionStrings(result.Instances, p.OS, p.KeyFile)
	return result, nil
}

func (r *Reconciler) runInput(p CreateParams, img *Image, size int32) (*ec2.RunInstancesInput, error) {
	in := &ec2.RunInstancesInput{
		ImageId:                           aws.String(img.ID),
		InstanceType:                      ec2types.InstanceType(p.InstanceType),
		MinCount:                          aws.Int32(p.Count),
		MaxCount:                          aws.Int32(p.Count),
		ClientToken:                       aws.String(r.newToken()),
		Monitoring:                        &ec2types.RunInstancesMonitoringEnabled{Enabled: aws.Bool(false)},
		DisableApiTermination:             aws.Bool(false),
		InstanceInitiatedShutdownBehavior: ec2types.ShutdownBehaviorTerminate,
		NetworkInterfaces: []ec2types.InstanceNetworkInterfaceSpecification{{
			AssociatePublicIpAddress: aws.Bool(true),
			DeleteOnTermination:      aws.Bool(true),
			DeviceIndex:              aws.Int32(0),
			SubnetId:                 aws.String(p.SubnetID),
			Groups:                   []string{p.FirewallID},
		}},
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String(img.RootDevice),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize:          aws.Int32(size),
				DeleteOnTermination: aws.Bool(true),
			},
		}},
		TagSpecifications: tags.ForApp(r.app).Specs(ec2types.ResourceTypeInstance, ec2types.ResourceTypeVolume),
	}
	if p.KeyName != "" {
		in.KeyName = aws.String(p.KeyName)
	}
	if p.UserDataFile != "" {
		data, err := os.ReadFile(p.UserDataFile)
		if err != nil {
			return nil, fmt.Errorf("read userdata: %w", err)
		}
		in.UserData = aws.String(base64.StdEncoding.EncodeToString(data))
	}
	return in, nil
}

// Describe returns the app's pending and running instances, oldest first.
func (r *Reconciler) Describe(ctx context.Context) ([]Instance, error) {
	return r.instances(ctx, ec2types.InstanceStateNamePending, ec2types.InstanceStateNameRunning)
}

// Destroy terminates every live instance of the app and waits until they
// are gone. It reports false when there was nothing to terminate.
func (r *Reconciler) Destroy(ctx context.Context) (bool, error) {
	live, err := r.instances(ctx, liveStates...)
	if err != nil {
		return false, err
	}
	if len(live) == 0 {
		provisioning.LogResourceAbsent(r.observer, phase, "instances", r.app)
		return false, nil
	}

	ids := make([]string, 0, len(live))
	var terminate []string
	for _, inst := range live {
		ids = append(ids, inst.ID)
		if inst.State != ec2types.InstanceStateNameShuttingDown {
			terminate = append(terminate, inst.ID)
		}
	}
	if len(terminate) > 0 {
		provisioning.LogResourceDeleting(r.observer, phase, "instances", fmt.Sprintf("%s (%d)", r.app, len(terminate)))
		if _, err := r.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: terminate}); err != nil {
			return false, provisioning.Classify("terminate instances", err)
		}
	}
	if _, err := r.WaitForTerminated(ctx, ids); err != nil {
		return false, err
	}
	for _, id := range ids {
		provisioning.LogResourceDeleted(r.observer, phase, "instance", id)
	}
	return true, nil
}
