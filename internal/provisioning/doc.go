// Package provisioning provides the shared types used by the quickhost reconcilers.
//
// # Subpackages
//
//   - network/: VPC, subnet, internet gateway, route table
//   - identity/: IAM user, group, policies, access key, local profile
//   - keypair/: per-app key pair and local private key file
//   - firewall/: per-app security group and ingress rules
//   - compute/: image resolution, batch launch, convergence polling
//
// # Core Types
//
// Observer receives structured events from every reconciler.
// Step and RunSteps sequence reconciler calls and collect a Report.
// UnauthorizedError and TimeoutError are the error classes callers branch on;
// Tally is the ready/waiting/other snapshot reported while polling.
package provisioning
