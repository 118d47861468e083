// Package aws wraps the AWS SDK clients used by quickhost.
//
// Clients are always built from an explicit ProviderContext so every
// reconciler knows which profile and region it talks to. The EC2API,
// IAMAPI and STSAPI interfaces list exactly the calls the reconcilers
// make, which lets tests substitute the in-memory fake in pkg/cloud/fakes.
//
// Error classification helpers (IsNotFound, IsAlreadyExists, ...) match
// AWS error codes via smithy.APIError, and EnsureOperation/DeleteOperation
// provide the describe-or-create and tolerant-delete building blocks.
package aws
