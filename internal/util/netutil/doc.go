// Package netutil provides small network helpers: discovering the caller's
// public IPv4 address and waiting for a TCP port on a new host.
package netutil
