package lock

import "errors"

var (
	// ErrLocked is returned when acquire fails because another owner already
	// holds a non-expired entry for the key.
	ErrLocked = errors.New("lock: another owner holds the key")

	// ErrNotFound names a key that has no entry at all. No operation in
	// this package currently returns it.
	ErrNotFound = errors.New("lock: key not found")

	// ErrNotOwner is returned by ReleaseOrFail/RefreshOrFail whenever the
	// adapter reports that the operation did not apply: the entry is held
	// by a different owner, has expired, or does not exist.
	ErrNotOwner = errors.New("lock: caller is not the current owner")

	// ErrLockWaitTimeout is returned by acquireBlocking when the configured
	// wait duration elapses without successfully acquiring the lock.
	ErrLockWaitTimeout = errors.New("lock: exceeded wait duration acquiring lock")
)
