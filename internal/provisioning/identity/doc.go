// Package identity manages the account-wide quickhost principal: an IAM
// user and group under /quickhost/, four managed policies (create,
// describe, update, destroy) attached to the group, one access key, and the
// local credential profile the key is stored under.
//
// Create and Destroy refuse to run as the principal they manage.
package identity
