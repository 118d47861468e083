package fakes

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/quickhost/internal/util/keyfile"
)

// Image describes an AMI to seed with AddImage.
type Image struct {
	Name         string
	OwnerID      string
	CreationDate string
	RootSizeGiB  int32
	Windows      bool
	// Architecture defaults to x86_64.
	Architecture ec2types.ArchitectureValues
	// State defaults to available.
	State ec2types.ImageState
}

type instance struct {
	id            string
	reservationID string
	imageID       string
	instanceType  ec2types.InstanceType
	keyName       string
	subnetID      string
	vpcID         string
	groupIDs      []string
	platform      ec2types.PlatformValues
	state         ec2types.InstanceStateName
	pendingLeft   int
	shutdownLeft  int
	passwordLeft  int
	publicIP      string
	privateIP     string
	launched      time.Time
	tags          []ec2types.Tag
	password      string
}

var stateCodes = map[ec2types.InstanceStateName]int32{
	ec2types.InstanceStateNamePending:      0,
	ec2types.InstanceStateNameRunning:      16,
	ec2types.InstanceStateNameShuttingDown: 32,
	ec2types.InstanceStateNameTerminated:   48,
	ec2types.InstanceStateNameStopping:     64,
	ec2types.InstanceStateNameStopped:      80,
}

func (i *instance) view(c *Cloud) ec2types.Instance {
	launched := i.launched
	out := ec2types.Instance{
		InstanceId:   aws.String(i.id),
		ImageId:      aws.String(i.imageID),
		InstanceType: i.instanceType,
		LaunchTime:   &launched,
		Platform:     i.platform,
		State:        &ec2types.InstanceState{Name: i.state, Code: aws.Int32(stateCodes[i.state])},
		Tags:         slices.Clone(i.tags),
	}
	if i.keyName != "" {
		out.KeyName = aws.String(i.keyName)
	}
	if i.state != ec2types.InstanceStateNameTerminated {
		out.SubnetId = aws.String(i.subnetID)
		out.VpcId = aws.String(i.vpcID)
		out.PrivateIpAddress = aws.String(i.privateIP)
		for _, gid := range i.groupIDs {
			gi := ec2types.GroupIdentifier{GroupId: aws.String(gid)}
			if g, ok := c.groups[gid]; ok {
				gi.GroupName = g.GroupName
			}
			out.SecurityGroups = append(out.SecurityGroups, gi)
		}
	}
	if i.publicIP != "" {
		out.PublicIpAddress = aws.String(i.publicIP)
	}
	return out
}

// AddImage seeds an AMI and returns its id.
func (c *Cloud) AddImage(img Image) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID("ami")
	arch := img.Architecture
	if arch == "" {
		arch = ec2types.ArchitectureValuesX8664
	}
	state := img.State
	if state == "" {
		state = ec2types.ImageStateAvailable
	}
	size := img.RootSizeGiB
	if size == 0 {
		size = 8
	}
	out := &ec2types.Image{
		ImageId:        aws.String(id),
		Name:           aws.String(img.Name),
		OwnerId:        aws.String(img.OwnerID),
		CreationDate:   aws.String(img.CreationDate),
		Architecture:   arch,
		State:          state,
		RootDeviceName: aws.String("/dev/xvda"),
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/xvda"),
			Ebs:        &ec2types.EbsBlockDevice{VolumeSize: aws.Int32(size)},
		}},
	}
	if img.Windows {
		out.Platform = ec2types.PlatformValuesWindows
		out.PlatformDetails = aws.String("Windows")
		out.RootDeviceName = aws.String("/dev/sda1")
		out.BlockDeviceMappings[0].DeviceName = aws.String("/dev/sda1")
	} else {
		out.PlatformDetails = aws.String("Linux/UNIX")
	}
	c.images[id] = out
	return id
}

func (c *Cloud) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeImages"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeImagesOutput{}
	for _, id := range sortedKeys(c.images) {
		img := c.images[id]
		if len(in.ImageIds) > 0 && !slices.Contains(in.ImageIds, id) {
			continue
		}
		if len(in.Owners) > 0 && !slices.Contains(in.Owners, aws.ToString(img.OwnerId)) {
			continue
		}
		if !matches(in.Filters, img.Tags, func(name string) ([]string, bool) {
			switch name {
			case "name":
				return one(img.Name), true
			case "image-id":
				return one(img.ImageId), true
			case "state":
				return []string{string(img.State)}, true
			case "architecture":
				return []string{string(img.Architecture)}, true
			case "platform":
				return []string{string(img.Platform)}, true
			case "owner-id":
				return one(img.OwnerId), true
			}
			return nil, false
		}) {
			continue
		}
		cp := *img
		cp.BlockDeviceMappings = slices.Clone(img.BlockDeviceMappings)
		out.Images = append(out.Images, cp)
	}
	return out, nil
}

// SetLaunchSchedule sets the pending poll count of each instance in the
// next RunInstances call, in launch order. Missing entries use PendingPolls.
func (c *Cloud) SetLaunchSchedule(pendingPolls ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = slices.Clone(pendingPolls)
}

// RunRequests returns every RunInstances input received, in order.
func (c *Cloud) RunRequests() []*ec2.RunInstancesInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.runRequests)
}

func (c *Cloud) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:RunInstances"); err != nil {
		return nil, err
	}
	c.runRequests = append(c.runRequests, in)

	if token := aws.ToString(in.ClientToken); token != "" {
		if ids, ok := c.tokens[token]; ok {
			return c.reservation(ids), nil
		}
	}

	img, ok := c.images[aws.ToString(in.ImageId)]
	if !ok {
		return nil, APIError("InvalidAMIID.NotFound", "The image id '[%s]' does not exist", aws.ToString(in.ImageId))
	}
	count := aws.ToInt32(in.MaxCount)
	if count < 1 || aws.ToInt32(in.MinCount) < 1 || aws.ToInt32(in.MinCount) > count {
		return nil, APIError("InvalidParameterValue", "invalid instance count min=%d max=%d", aws.ToInt32(in.MinCount), count)
	}
	if name := aws.ToString(in.KeyName); name != "" {
		if _, ok := c.keyPairs[name]; !ok {
			return nil, APIError("InvalidKeyPair.NotFound", "The key pair '%s' does not exist", name)
		}
	}

	var subnetID string
	var groupIDs []string
	if len(in.NetworkInterfaces) > 0 {
		subnetID = aws.ToString(in.NetworkInterfaces[0].SubnetId)
		groupIDs = in.NetworkInterfaces[0].Groups
	} else {
		subnetID = aws.ToString(in.SubnetId)
		groupIDs = in.SecurityGroupIds
	}
	subnet, ok := c.subnets[subnetID]
	if !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", subnetID)
	}
	for _, gid := range groupIDs {
		if _, ok := c.groups[gid]; !ok {
			return nil, APIError("InvalidGroup.NotFound", "The security group '%s' does not exist", gid)
		}
	}

	reservationID := c.nextID("r")
	launched := c.tick()
	ids := make([]string, 0, count)
	for n := range int(count) {
		pending := c.PendingPolls
		if n < len(c.schedule) {
			pending = c.schedule[n]
		}
		id := c.nextID("i")
		c.instances[id] = &instance{
			id:            id,
			reservationID: reservationID,
			imageID:       aws.ToString(img.ImageId),
			instanceType:  in.InstanceType,
			keyName:       aws.ToString(in.KeyName),
			subnetID:      subnetID,
			vpcID:         aws.ToString(subnet.VpcId),
			groupIDs:      slices.Clone(groupIDs),
			platform:      img.Platform,
			state:         ec2types.InstanceStateNamePending,
			pendingLeft:   pending,
			passwordLeft:  c.PasswordPolls,
			privateIP:     fmt.Sprintf("172.16.0.%d", 10+c.seq%240),
			launched:      launched,
			tags:          tagSpec(in.TagSpecifications, ec2types.ResourceTypeInstance),
			password:      "Qh-" + id,
		}
		ids = append(ids, id)
	}
	c.schedule = nil
	if token := aws.ToString(in.ClientToken); token != "" {
		c.tokens[token] = ids
	}
	return c.reservation(ids), nil
}

func (c *Cloud) reservation(ids []string) *ec2.RunInstancesOutput {
	out := &ec2.RunInstancesOutput{OwnerId: aws.String(c.AccountID)}
	for _, id := range ids {
		inst := c.instances[id]
		out.ReservationId = aws.String(inst.reservationID)
		out.Instances = append(out.Instances, inst.view(c))
	}
	return out
}

// advance moves every instance one step along its schedule.
func (c *Cloud) advance() {
	for _, id := range sortedKeys(c.instances) {
		inst := c.instances[id]
		switch inst.state {
		case ec2types.InstanceStateNamePending:
			switch {
			case inst.pendingLeft > 0:
				inst.pendingLeft--
			case inst.pendingLeft == 0:
				inst.state = ec2types.InstanceStateNameRunning
				c.seq++
				inst.publicIP = fmt.Sprintf("203.0.113.%d", 1+c.seq%250)
			}
		case ec2types.InstanceStateNameShuttingDown:
			switch {
			case inst.shutdownLeft > 0:
				inst.shutdownLeft--
			case inst.shutdownLeft == 0:
				inst.state = ec2types.InstanceStateNameTerminated
				inst.publicIP = ""
			}
		}
	}
}

func (c *Cloud) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:DescribeInstances"); err != nil {
		return nil, err
	}
	for _, id := range in.InstanceIds {
		if _, ok := c.instances[id]; !ok {
			return nil, APIError("InvalidInstanceID.NotFound", "The instance ID '%s' does not exist", id)
		}
	}
	c.advance()

	byReservation := make(map[string]*ec2types.Reservation)
	var order []string
	for _, id := range sortedKeys(c.instances) {
		inst := c.instances[id]
		if len(in.InstanceIds) > 0 && !slices.Contains(in.InstanceIds, id) {
			continue
		}
		if !matches(in.Filters, inst.tags, func(name string) ([]string, bool) {
			switch name {
			case "instance-id":
				return []string{inst.id}, true
			case "instance-state-name":
				return []string{string(inst.state)}, true
			case "vpc-id":
				return []string{inst.vpcID}, true
			case "subnet-id":
				return []string{inst.subnetID}, true
			case "image-id":
				return []string{inst.imageID}, true
			case "key-name":
				return []string{inst.keyName}, true
			case "instance.group-id":
				return inst.groupIDs, true
			}
			return nil, false
		}) {
			continue
		}
		r, ok := byReservation[inst.reservationID]
		if !ok {
			r = &ec2types.Reservation{ReservationId: aws.String(inst.reservationID), OwnerId: aws.String(c.AccountID)}
			byReservation[inst.reservationID] = r
			order = append(order, inst.reservationID)
		}
		r.Instances = append(r.Instances, inst.view(c))
	}

	out := &ec2.DescribeInstancesOutput{}
	for _, rid := range order {
		out.Reservations = append(out.Reservations, *byReservation[rid])
	}
	return out, nil
}

func (c *Cloud) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:TerminateInstances"); err != nil {
		return nil, err
	}
	for _, id := range in.InstanceIds {
		if _, ok := c.instances[id]; !ok {
			return nil, APIError("InvalidInstanceID.NotFound", "The instance ID '%s' does not exist", id)
		}
	}
	out := &ec2.TerminateInstancesOutput{}
	for _, id := range in.InstanceIds {
		inst := c.instances[id]
		prev := inst.state
		if inst.state != ec2types.InstanceStateNameTerminated {
			inst.state = ec2types.InstanceStateNameShuttingDown
			inst.shutdownLeft = c.ShutdownPolls
		}
		out.TerminatingInstances = append(out.TerminatingInstances, ec2types.InstanceStateChange{
			InstanceId:    aws.String(id),
			PreviousState: &ec2types.InstanceState{Name: prev, Code: aws.Int32(stateCodes[prev])},
			CurrentState:  &ec2types.InstanceState{Name: inst.state, Code: aws.Int32(stateCodes[inst.state])},
		})
	}
	return out, nil
}

func (c *Cloud) GetPasswordData(_ context.Context, in *ec2.GetPasswordDataInput, _ ...func(*ec2.Options)) (*ec2.GetPasswordDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ec2:GetPasswordData"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.InstanceId)
	inst, ok := c.instances[id]
	if !ok {
		return nil, APIError("InvalidInstanceID.NotFound", "The instance ID '%s' does not exist", id)
	}
	out := &ec2.GetPasswordDataOutput{InstanceId: aws.String(id), PasswordData: aws.String("")}
	if inst.platform != ec2types.PlatformValuesWindows || inst.state != ec2types.InstanceStateNameRunning {
		return out, nil
	}
	if inst.passwordLeft > 0 {
		inst.passwordLeft--
		return out, nil
	}
	kp, ok := c.keyPairs[inst.keyName]
	if !ok {
		return out, nil
	}
	blob, err := keyfile.EncryptPassword(&kp.key.PublicKey, inst.password)
	if err != nil {
		return nil, err
	}
	out.PasswordData = aws.String(blob)
	return out, nil
}

// SetInstanceState forces an instance into state.
func (c *Cloud) SetInstanceState(id string, state ec2types.InstanceStateName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inst, ok := c.instances[id]; ok {
		inst.state = state
	}
}

// InstanceIDs returns the ids of instances in any of states (all when empty).
func (c *Cloud) InstanceIDs(states ...ec2types.InstanceStateName) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, id := range sortedKeys(c.instances) {
		if len(states) == 0 || slices.Contains(states, c.instances[id].state) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Password returns the administrator password of a Windows instance.
func (c *Cloud) Password(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inst, ok := c.instances[id]; ok {
		return inst.password
	}
	return ""
}
