// Package keyfile manages the local private key files of app key pairs.
//
// AWS returns private key material exactly once, when the key pair is
// created. This package writes it to disk with owner-only permissions,
// loads it back to decrypt Windows administrator passwords, and computes
// the fingerprints used to check a local file against the remote key.
package keyfile
