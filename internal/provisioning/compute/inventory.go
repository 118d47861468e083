package compute

import (
	"context"
	"fmt"
	"slices"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/util/tags"
)

// ListApps lists every app with running instances in the region, sorted by
// name. Apps running more than one host are rendered as "name (n)".
func ListApps(ctx context.Context, client awsplatform.EC2API) ([]string, error) {
	counts, err := AppCounts(ctx, client)
	if err != nil {
		return nil, err
	}
	var apps []string
	for _, name := range sortedApps(counts) {
		if n := counts[name]; n > 1 {
			apps = append(apps, fmt.Sprintf("%s (%d)", name, n))
		} else {
			apps = append(apps, name)
		}
	}
	return apps, nil
}

// AppCounts maps app name to its number of running instances.
func AppCounts(ctx context.Context, client awsplatform.EC2API) (map[string]int, error) {
	instances, err := describeInstances(ctx, client, []ec2types.Filter{
		tags.AnyAppFilter(),
		tags.Filter("instance-state-name", string(ec2types.InstanceStateNameRunning)),
	})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, inst := range instances {
		if inst.App == "" {
			continue
		}
		counts[inst.App]++
	}
	return counts, nil
}

// LiveApps names every app owning an instance that is not yet terminated.
func LiveApps(ctx context.Context, client awsplatform.EC2API) ([]string, error) {
	values := make([]string, 0, len(liveStates))
	for _, s := range liveStates {
		values = append(values, string(s))
	}
	instances, err := describeInstances(ctx, client, []ec2types.Filter{
		tags.AnyAppFilter(),
		tags.Filter("instance-state-name", values...),
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]int)
	for _, inst := range instances {
		if inst.App != "" {
			seen[inst.App]++
		}
	}
	return sortedApps(seen), nil
}

func sortedApps(m map[string]int) []string {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
