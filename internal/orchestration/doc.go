// Package orchestration coordinates the resource reconcilers into the
// quickhost verbs.
//
// The Orchestrator decides the order and hands each reconciler the outputs
// of the previous one; the reconcilers in internal/provisioning do the
// actual work.
//
// # Workflows
//
//   - Init: identity principal, then the shared network.
//   - Create: network lookup, key pair, firewall, one batch of instances.
//   - Describe: read-only view of everything an app owns.
//   - Update: extra ingress rules on the app firewall.
//   - Destroy: key pair, instances, firewall. Absent resources count as done.
//   - DestroyAll: every app in the region, then the network, then the identity.
//
// # Usage
//
//	o := orchestration.New(clients, observer, timeouts)
//	res, err := o.Create(ctx, orchestration.CreateParams{App: "web", HostCount: 2})
//
// Every verb records one provisioning.StepResult per reconciler call and
// returns the combined step errors, so a caller can still print what
// succeeded when a later step failed.
package orchestration
