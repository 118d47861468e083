// Package config holds quickhost's user-facing defaults and runtime tuning.
//
// [Config] is read from an optional YAML file and supplies defaults for
// region, profile and the make/update parameters; CLI flags override it.
// [Timeouts] bounds every polling loop and delete retry and is read from
// QUICKHOST_* environment variables.
package config
