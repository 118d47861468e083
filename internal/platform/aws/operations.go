package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/quickhost/internal/util/retry"
)

// EnsureResult wraps the outcome of an EnsureOperation.
type EnsureResult[T any] struct {
	Resource T
	// Created is false when an existing resource was adopted.
	Created bool
}

// EnsureOperation encapsulates describe-or-create logic for any AWS resource.
// An existing resource is adopted rather than recreated, and a create that
// loses a race to a concurrent creator (AlreadyExists) falls back to adopting
// whatever the second describe finds.
//
// Usage example:
//
//	res, err := (&EnsureOperation[string]{
//	    Name:         app,
//	    ResourceType: "security group",
//	    Describe:     m.lookupID,
//	    Create:       m.createGroup,
//	}).Execute(ctx)
type EnsureOperation[T any] struct {
	Name         string
	ResourceType string

	// Describe returns the existing resource and whether it was found.
	Describe func(ctx context.Context) (T, bool, error)

	// Create creates the resource.
	Create func(ctx context.Context) (T, error)

	// Validate checks that an existing resource is usable (optional).
	Validate func(resource T) error
}

// Execute performs the ensure operation.
func (op *EnsureOperation[T]) Execute(ctx context.Context) (*EnsureResult[T], error) {
	existing, found, err := op.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s %s: %w", op.ResourceType, op.Name, err)
	}
	if found {
		if op.Validate != nil {
			if err := op.Validate(existing); err != nil {
				return nil, fmt.Errorf("%s %s exists but does not match: %w", op.ResourceType, op.Name, err)
			}
		}
		return &EnsureResult[T]{Resource: existing}, nil
	}

	created, err := op.Create(ctx)
	if err != nil {
		if IsAlreadyExists(err) {
			existing, found, derr := op.Describe(ctx)
			if derr == nil && found {
				return &EnsureResult[T]{Resource: existing}, nil
			}
		}
		return nil, fmt.Errorf("failed to create %s %s: %w", op.ResourceType, op.Name, err)
	}
	return &EnsureResult[T]{Resource: created, Created: true}, nil
}

// DeleteOperation encapsulates deletion logic for any AWS resource.
// The operation is idempotent: a NotFound answer counts as already deleted.
// Dependency violations (for example a security group still referenced by
// instances that are shutting down) are retried with exponential backoff.
type DeleteOperation struct {
	Name         string
	ResourceType string

	// Delete removes the resource.
	Delete func(ctx context.Context) error

	Timeout           time.Duration
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
}

// Execute runs the delete. It reports false when the resource was already gone.
func (op *DeleteOperation) Execute(ctx context.Context) (bool, error) {
	if op.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, op.Timeout)
		defer cancel()
	}

	var opts []retry.Option
	if op.RetryMaxAttempts > 0 {
		opts = append(opts, retry.WithMaxRetries(op.RetryMaxAttempts))
	}
	if op.RetryInitialDelay > 0 {
		opts = append(opts, retry.WithInitialDelay(op.RetryInitialDelay))
	}

	deleted := true
	err := retry.WithExponentialBackoff(ctx, func() error {
		err := op.Delete(ctx)
		switch {
		case err == nil:
			return nil
		case IsNotFound(err):
			deleted = false
			return nil
		case IsDependencyViolation(err):
			return err
		default:
			return retry.Fatal(err)
		}
	}, opts...)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.Name, err)
	}
	return deleted, nil
}
