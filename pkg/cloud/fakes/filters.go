package fakes

import (
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// attrFunc returns the values a resource holds for a filter name.
// ok is false for names the resource does not support.
type attrFunc func(name string) (values []string, ok bool)

// matches reports whether a resource satisfies every filter. Values inside
// one filter are ORed, filters are ANDed, as in EC2.
func matches(filters []ec2types.Filter, tags []ec2types.Tag, attr attrFunc) bool {
	for _, f := range filters {
		name := aws.ToString(f.Name)
		var have []string
		switch {
		case strings.HasPrefix(name, "tag:"):
			key := strings.TrimPrefix(name, "tag:")
			for _, t := range tags {
				if aws.ToString(t.Key) == key {
					have = append(have, aws.ToString(t.Value))
				}
			}
		case name == "tag-key":
			for _, t := range tags {
				have = append(have, aws.ToString(t.Key))
			}
		default:
			v, ok := attr(name)
			if !ok {
				return false
			}
			have = v
		}
		if !anyMatch(f.Values, have) {
			return false
		}
	}
	return true
}

func anyMatch(patterns, values []string) bool {
	for _, p := range patterns {
		re := wildcard(p)
		for _, v := range values {
			if re.MatchString(v) {
				return true
			}
		}
	}
	return false
}

// wildcard compiles an EC2 filter value: * matches any run, ? one character.
func wildcard(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

func one(s *string) []string {
	return []string{aws.ToString(s)}
}

func tagSpec(specs []ec2types.TagSpecification, rt ec2types.ResourceType) []ec2types.Tag {
	for _, s := range specs {
		if s.ResourceType == rt {
			return append([]ec2types.Tag(nil), s.Tags...)
		}
	}
	return nil
}
