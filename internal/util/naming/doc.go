// Package naming provides consistent names for quickhost-managed AWS resources.
//
// Account-wide identity objects share the quickhost- prefix and live under
// the /quickhost/ IAM path. App-scoped objects (key pair, security group)
// are named after the app itself so they are recognisable in the console.
package naming
