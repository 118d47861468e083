// Package tags provides consistent tagging for quickhost's AWS resources.
//
// App-scoped resources carry the app tag (quickhost=<app>) plus Name=<app>;
// the account-scoped network stack carries Name=quickhost. Every lookup
// derives membership from these tags, so the builders and filters here are
// the single source of the convention.
package tags
