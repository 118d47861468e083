// Package fakes provides an in-memory AWS account for tests.
//
// Cloud implements the EC2, IAM and STS interfaces from
// internal/platform/aws. It keeps resources in maps guarded by one mutex,
// answers describe filters the way EC2 does (tag:, tag-key, wildcards),
// enforces delete ordering with DependencyViolation / DeleteConflict, and
// counts every call so tests can assert idempotency. Instance state
// advances one step per DescribeInstances call according to a schedule.
package fakes
