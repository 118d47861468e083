package aws

import "slices"

// DefaultRegion is used when neither flags nor the config file name one.
const DefaultRegion = "us-east-1"

var supportedRegions = []string{
	"ap-northeast-1",
	"ap-northeast-2",
	"ap-northeast-3",
	"ap-south-1",
	"ap-southeast-1",
	"ap-southeast-2",
	"ca-central-1",
	"eu-central-1",
	"eu-north-1",
	"eu-west-1",
	"eu-west-2",
	"eu-west-3",
	"sa-east-1",
	"us-east-1",
	"us-east-2",
	"us-west-1",
	"us-west-2",
}

// Regions returns the supported regions in sorted order.
func Regions() []string {
	return slices.Clone(supportedRegions)
}

// IsSupportedRegion reports whether quickhost can operate in region.
func IsSupportedRegion(region string) bool {
	_, found := slices.BinarySearch(supportedRegions, region)
	return found
}
