package sync

import "context"

type reconcileContextKey int

const reconcileContextKeyActive reconcileContextKey = iota

// withReconcileMarker marks ctx as belonging to a running reconciliation pass.
func withReconcileMarker(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, reconcileContextKeyActive, true)
}

// InReconcile reports whether ctx was derived from a running reconciliation pass.
// Code reached from Runtime.Start uses it to avoid waiting on the manager lock it
// already holds.
func InReconcile(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(reconcileContextKeyActive).(bool)
	return ok && v
}
