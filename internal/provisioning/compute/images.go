package compute

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/tags"
)

// Image is the machine image chosen for a launch.
type Image struct {
	ID           string
	Name         string
	CreationDate string
	RootDevice   string
	RootSizeGiB  int32
}

// ResolveImage picks the newest available x86_64 image matching os.
func ResolveImage(ctx context.Context, client awsplatform.EC2API, os string) (*Image, error) {
	profile, err := lookupOS(os)
	if err != nil {
		return nil, err
	}
	out, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{profile.owner},
		Filters: []ec2types.Filter{
			tags.Filter("name", profile.imagePattern),
			tags.Filter("state", string(ec2types.ImageStateAvailable)),
			tags.Filter("architecture", string(ec2types.ArchitectureValuesX8664)),
		},
	})
	if err != nil {
		return nil, provisioning.Classify("describe images", err)
	}

	var newest *ec2types.Image
	for i := range out.Images {
		img := &out.Images[i]
		if newest == nil || newer(aws.ToString(img.CreationDate), aws.ToString(newest.CreationDate)) {
			newest = img
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("no %s image matching %q found in this region", os, profile.imagePattern)
	}
	return imageOf(newest), nil
}

// newer compares RFC 3339 creation dates, falling back to string order.
func newer(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA != nil || errB != nil {
		return a > b
	}
	return ta.After(tb)
}

func imageOf(img *ec2types.Image) *Image {
	out := &Image{
		ID:           aws.ToString(img.ImageId),
		Name:         aws.ToString(img.Name),
		CreationDate: aws.ToString(img.CreationDate),
		RootDevice:   aws.ToString(img.RootDeviceName),
	}
	for _, bdm := range img.BlockDeviceMappings {
		if bdm.Ebs == nil {
			continue
		}
		if out.RootDevice == "" || aws.ToString(bdm.DeviceName) == out.RootDevice {
			out.RootDevice = aws.ToString(bdm.DeviceName)
			out.RootSizeGiB = aws.ToInt32(bdm.Ebs.VolumeSize)
			break
		}
	}
	return out
}

// ClampDiskSize returns the root volume size to request. A request of zero
// takes the image size; a request smaller than the image is raised to it
// and reported as clamped.
func ClampDiskSize(requested, imageSize int32) (size int32, clamped bool) {
	switch {
	case requested <= 0:
		return imageSize, false
	case requested < imageSize:
		return imageSize, true
	default:
		return requested, false
	}
}

// OSForImage maps a launched image back to its OS selector by matching the
// image name against the known patterns. Images that match nothing are
// treated as Amazon Linux, or Windows when the platform says so.
func OSForImage(ctx context.Context, client awsplatform.EC2API, imageID string, windows bool) string {
	fallback := OSAmazonLinux2
	if windows {
		fallback = OSWindows
	}
	out, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{imageID}})
	if err != nil || len(out.Images) == 0 {
		return fallback
	}
	name := aws.ToString(out.Images[0].Name)
	for _, os := range OSNames() {
		p := osProfiles[os]
		if p.windows != windows {
			continue
		}
		if globMatch(p.imagePattern, name) {
			return os
		}
	}
	return fallback
}

// globMatch applies an EC2 name filter pattern, where * matches any run of
// characters including slashes.
func globMatch(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	ok, _ := regexp.MatchString("^"+strings.Join(parts, ".*")+"$", name)
	return ok
}
