package sync

import (
	"context"
	"errors"
)

// Runner executes a single reconciliation pass.
type Runner interface {
	RunOnce(context.Context) error
}

var (
	// ErrReentrantReconcile is returned when a reconciliation pass tries to build or
	// reconcile the manager it is already part of.
	ErrReentrantReconcile = errors.New("reconcile called from inside a reconciliation pass")

	ErrManagerNotConfigured = errors.New("manager is not configured")

	// ErrReconcileAlreadyRunning is returned by a try-lock runner when another pass
	// holds the manager lock.
	ErrReconcileAlreadyRunning = errors.New("reconcile is already running")

	// ErrReconcileQueued is returned when a reconcile request is accepted but will be
	// processed asynchronously by the worker.
	ErrReconcileQueued = errors.New("reconcile queued")

	errManagerLockLost = errors.New("manager lock lost")
)
