package gcache

import (
	"context"

	"github.com/cachekit/gcache/scope"
)

// ScopeGuard is returned by Enable for the caller to defer Release on.
type ScopeGuard = scope.Guard

// Enable returns a context marked enabled (active=true) or explicitly
// disabled (active=false), along with a ScopeGuard to release when the
// scope ends:
//
//	ctx, guard := gcache.Enable(ctx, true)
//	defer guard.Release()
//
// Wrap a request's context near its entry point; every cached call
// reachable from it, directly or through further derived contexts, is
// subject to the chosen state until a descendant calls Enable again.
func Enable(ctx context.Context, active bool) (context.Context, ScopeGuard) {
	return scope.Enable(ctx, active)
}

// Enabled reports whether ctx currently carries an enabled cache scope.
func Enabled(ctx context.Context) bool { return scope.Enabled(ctx) }
