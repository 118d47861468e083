package tags

import (
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// Standard tag keys.
const (
	// KeyApp identifies which app a resource belongs to.
	KeyApp = "quickhost"

	// KeyName is the console display name.
	KeyName = "Name"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "managed-by"
)

const (
	// ManagedByQuickhost is the KeyManagedBy value.
	ManagedByQuickhost = "quickhost"

	// NetworkSentinel is the Name tag of the shared network stack.
	NetworkSentinel = "quickhost"
)

// Builder provides a fluent interface for building resource tags.
type Builder struct {
	tags map[string]string
}

// ForApp creates a builder for a resource owned by app.
func ForApp(app string) *Builder {
	return &Builder{tags: map[string]string{
		KeyApp:       app,
		KeyName:      app,
		KeyManagedBy: ManagedByQuickhost,
	}}
}

// ForNetwork creates a builder for a shared network stack resource.
func ForNetwork() *Builder {
	return &Builder{tags: map[string]string{
		KeyName:      NetworkSentinel,
		KeyManagedBy: ManagedByQuickhost,
	}}
}

// With adds or replaces a tag.
func (b *Builder) With(key, value string) *Builder {
	b.tags[key] = value
	return b
}

// Build returns a copy of the tag map.
func (b *Builder) Build() map[string]string {
	return maps.Clone(b.tags)
}

// EC2 returns the tags as EC2 tags sorted by key.
func (b *Builder) EC2() []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(b.tags))
	for _, k := range slices.Sorted(maps.Keys(b.tags)) {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(b.tags[k])})
	}
	return out
}

// IAM returns the tags as IAM tags sorted by key.
func (b *Builder) IAM() []iamtypes.Tag {
	out := make([]iamtypes.Tag, 0, len(b.tags))
	for _, k := range slices.Sorted(maps.Keys(b.tags)) {
		out = append(out, iamtypes.Tag{Key: aws.String(k), Value: aws.String(b.tags[k])})
	}
	return out
}

// Specs returns one tag specification per resource type, for create calls
// that tag on creation.
func (b *Builder) Specs(resourceTypes ...ec2types.ResourceType) []ec2types.TagSpecification {
	out := make([]ec2types.TagSpecification, 0, len(resourceTypes))
	for _, rt := range resourceTypes {
		out = append(out, ec2types.TagSpecification{ResourceType: rt, Tags: b.EC2()})
	}
	return out
}

// Filter builds an EC2 describe filter.
func Filter(name string, values ...string) ec2types.Filter {
	return ec2types.Filter{Name: aws.String(name), Values: values}
}

// AppFilter matches resources tagged for app.
func AppFilter(app string) ec2types.Filter {
	return Filter("tag:"+KeyApp, app)
}

// AnyAppFilter matches resources tagged for any app.
func AnyAppFilter() ec2types.Filter {
	return Filter("tag-key", KeyApp)
}

// NetworkFilter matches the shared network stack resources.
func NetworkFilter() ec2types.Filter {
	return Filter("tag:"+KeyName, NetworkSentinel)
}

// Value returns the value of key in an EC2 tag list, or "".
func Value(tags []ec2types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
