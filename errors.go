package gcache

import (
	"errors"

	"github.com/cachekit/gcache/bridge"
)

// ErrReentrantSyncCall is returned when a sync cached call's fallback
// invokes another sync cached call through the same bridge worker. It is
// the facade-level name for bridge.ErrReentrant.
var ErrReentrantSyncCall = bridge.ErrReentrant

// ErrSingletonViolation is returned by Register (and so by Open) when a
// Facade is already registered as the process-wide instance. New never
// returns it, and Replace installs a facade without this check.
var ErrSingletonViolation = errors.New("gcache: a facade instance is already registered")

// ErrReservedUseCase is returned when a descriptor is registered with the
// use_case reserved for watermark keys.
var ErrReservedUseCase = errors.New("gcache: use_case \"watermark\" is reserved")

// ErrDuplicateDescriptor is returned when two descriptors register the
// same (key_type, use_case) pair.
var ErrDuplicateDescriptor = errors.New("gcache: a descriptor is already registered for this key_type and use_case")

// ErrNoRemoteClient is returned when a Facade is constructed without a
// shared-tier transport and no local-only mode was requested explicitly.
var ErrNoRemoteClient = errors.New("gcache: no shared-tier transport configured; pick WithRedisURL, WithRedisClient, WithRemoteClient, WithRemoteClientFactory, or WithLocalOnly")
