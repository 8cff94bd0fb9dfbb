// Package lock provides keyed mutual exclusion with a bounded wait.
//
// LocalLocker serializes work inside one process. RedisLocker extends the
// same contract across instances using SET NX PX and a token-checked release.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/subledger/backend/internal/domain/shared"
)

// Release frees a held lock. Calling it more than once is harmless.
type Release func()

// Locker grants exclusive ownership of a key
type Locker interface {
	// Acquire waits up to wait for key. A zero wait makes a single attempt.
	// Timing out yields a retryable ConflictError.
	Acquire(ctx context.Context, key string, wait time.Duration) (Release, error)
}

// CustomerKey is the lock key serializing writes to one customer's ledger
func CustomerKey(customerID fmt.Stringer) string {
	return "ledger:customer:" + customerID.String()
}

// JobKey is the lock key preventing overlapping runs of a periodic job
func JobKey(name string) string {
	return "ledger:job:" + name
}

func timeoutError(key string, wait time.Duration) error {
	return shared.NewConflictError(fmt.Sprintf("lock %s busy after %s", key, wait), nil)
}
