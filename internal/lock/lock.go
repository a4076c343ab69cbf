// Package lock serializes read-modify-write cycles on a single cart.
package lock

import "context"

// Locker grants exclusive ownership of key until the returned unlock
// function is called. Lock blocks until the key is free or ctx is done;
// in the latter case the error wraps domain.ErrLockTimeout.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
