package compute

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/tags"
)

// TickFunc receives the tally of every polling tick.
type TickFunc func(provisioning.Tally)

// liveStates are the states of an instance that still counts towards its app.
var liveStates = []ec2types.InstanceStateName{
	ec2types.InstanceStateNamePending,
	ec2types.InstanceStateNameRunning,
	ec2types.InstanceStateNameShuttingDown,
	ec2types.InstanceStateNameStopping,
	ec2types.InstanceStateNameStopped,
}

// WaitForRunning polls until at least target tagged instances of the app
// are running. Each tick recomputes the tally from scratch: running ids
// are ready, pending ids are waiting and anything else is reported once
// as a warning.
func (r *Reconciler) WaitForRunning(ctx context.Context, target int) (provisioning.Tally, error) {
	warned := make(map[string]bool)
	return r.poll(ctx, "wait for instances to run", r.timeouts.InstanceRunning, func(ctx context.Context) (provisioning.Tally, error) {
		instances, err := r.instances(ctx, liveStates...)
		if err != nil {
			return provisioning.Tally{}, err
		}
		t := provisioning.Tally{Target: target}
		for _, inst := range instances {
			switch inst.State {
			case ec2types.InstanceStateNameRunning:
				t.Ready = append(t.Ready, inst.ID)
			case ec2types.InstanceStateNamePending:
				t.Waiting = append(t.Waiting, inst.ID)
			default:
				t.Other = append(t.Other, inst.ID)
				if !warned[inst.ID] {
					warned[inst.ID] = true
					provisioning.LogWarning(r.observer, phase, "instance %s is %s, not counted towards %s", inst.ID, inst.State, r.app)
				}
			}
		}
		return t, nil
	})
}

// WaitForTerminated polls until every id in ids is terminated. Ids no
// longer returned by EC2 count as terminated.
func (r *Reconciler) WaitForTerminated(ctx context.Context, ids []string) (provisioning.Tally, error) {
	return r.poll(ctx, "wait for instances to terminate", r.timeouts.InstanceTerminated, func(ctx context.Context) (provisioning.Tally, error) {
		instances, err := r.describe(ctx, []ec2types.Filter{tags.Filter("instance-id", ids...)})
		if err != nil {
			return provisioning.Tally{}, err
		}
		seen := make(map[string]ec2types.InstanceStateName, len(instances))
		for _, inst := range instances {
			seen[inst.ID] = inst.State
		}
		t := provisioning.Tally{Target: len(ids)}
		for _, id := range ids {
			state, ok := seen[id]
			switch {
			case !ok, state == ec2types.InstanceStateNameTerminated:
				t.Ready = append(t.Ready, id)
			case state == ec2types.InstanceStateNameShuttingDown:
				t.Waiting = append(t.Waiting, id)
			default:
				t.Other = append(t.Other, id)
			}
		}
		return t, nil
	})
}

// poll runs check immediately and then on every interval tick until the
// tally is done or the deadline passes.
func (r *Reconciler) poll(ctx context.Context, operation string, timeout time.Duration, check func(context.Context) (provisioning.Tally, error)) (provisioning.Tally, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := r.timeouts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last provisioning.Tally
	for {
		t, err := check(ctx)
		switch {
		case err == nil:
			last = t
			r.observer.Progress(phase, len(t.Ready), t.Target)
			if r.onTick != nil {
				r.onTick(t)
			}
			if t.Done() {
				return t, nil
			}
		case !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled):
			return last, err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, &provisioning.TimeoutError{Operation: operation, Waited: time.Since(start), Tally: last}
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// instances lists the app's instances in any of states.
func (r *Reconciler) instances(ctx context.Context, states ...ec2types.InstanceStateName) ([]Instance, error) {
	filters := []ec2types.Filter{tags.AppFilter(r.app)}
	if len(states) > 0 {
		values := make([]string, 0, len(states))
		for _, s := range states {
			values = append(values, string(s))
		}
		filters = append(filters, tags.Filter("instance-state-name", values...))
	}
	return r.describe(ctx, filters)
}

func (r *Reconciler) describe(ctx context.Context, filters []ec2types.Filter) ([]Instance, error) {
	return describeInstances(ctx, r.ec2, filters)
}

func describeInstances(ctx context.Context, client ec2.DescribeInstancesAPIClient, filters []ec2types.Filter) ([]Instance, error) {
	var out []Instance
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{Filters: filters})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, provisioning.Classify("describe instances", err)
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				out = append(out, instanceOf(inst))
			}
		}
	}
	slices.SortFunc(out, func(a, b Instance) int {
		if c := a.LaunchTime.Compare(b.LaunchTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func instanceOf(inst ec2types.Instance) Instance {
	out := Instance{
		ID:           aws.ToString(inst.InstanceId),
		App:          tags.Value(inst.Tags, tags.KeyApp),
		ImageID:      aws.ToString(inst.ImageId),
		InstanceType: string(inst.InstanceType),
		KeyName:      aws.ToString(inst.KeyName),
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		PrivateIP:    aws.ToString(inst.PrivateIpAddress),
		SubnetID:     aws.ToString(inst.SubnetId),
		VpcID:        aws.ToString(inst.VpcId),
		Windows:      inst.Platform == ec2types.PlatformValuesWindows,
		LaunchTime:   aws.ToTime(inst.LaunchTime),
	}
	if inst.State != nil {
		out.State = inst.State.Name
	}
	for _, g := range inst.SecurityGroups {
		out.SecurityGroups = append(out.SecurityGroups, aws.ToString(g.GroupId))
	}
	return out
}
