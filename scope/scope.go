// Package scope implements the cache-enable dynamic scope as ordinary
// context.Context propagation: a cached call only reads and writes the
// cache tiers when it executes inside a context an ancestor has marked
// enabled, and a nested explicit disable can locally turn caching back
// off without requiring every leaf call to opt in individually.
package scope

import "context"

// State distinguishes a context that never passed through Enable from
// one explicitly enabled or explicitly disabled. The zero value, Unset,
// is what an ordinary context with no scope marker reports.
type State int

const (
	StateUnset State = iota
	StateEnabled
	StateDisabled
)

type enabledKey struct{}
type bridgeKey struct{}

// Guard is returned by Enable so the caller has a concrete handle to
// defer Release on, mirroring an enter/exit scope pair even though a
// context's values naturally fall out of scope once the call tree that
// derived them unwinds.
type Guard struct{}

// Release is a no-op. It exists purely for call-site symmetry with
// Enable.
func (Guard) Release() {}

// Enable returns a context carrying the given scope state: active=true
// marks it enabled, active=false marks it explicitly disabled (distinct
// from a context that never called Enable at all, which Get reports as
// StateUnset).
func Enable(ctx context.Context, active bool) (context.Context, Guard) {
	s := StateDisabled
	if active {
		s = StateEnabled
	}
	return context.WithValue(ctx, enabledKey{}, s), Guard{}
}

// Get reports ctx's current scope state.
func Get(ctx context.Context) State {
	s, ok := ctx.Value(enabledKey{}).(State)
	if !ok {
		return StateUnset
	}
	return s
}

// Enabled reports whether ctx currently carries an enabled cache scope.
// Both an unset scope and an explicitly disabled one report false;
// callers that need to tell them apart use Get.
func Enabled(ctx context.Context) bool {
	return Get(ctx) == StateEnabled
}

// WithBridgeWorker marks ctx as already executing on a bridge worker
// goroutine, so a nested sync-routed call on the same goroutine can be
// rejected as reentrant instead of deadlocking the worker pool.
func WithBridgeWorker(ctx context.Context, workerID int) context.Context {
	return context.WithValue(ctx, bridgeKey{}, workerID)
}

// BridgeWorker reports the worker id ctx is running on, if any.
func BridgeWorker(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(bridgeKey{}).(int)
	return id, ok
}
