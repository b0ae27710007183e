// Package subscribe implements the four strand-bound subscriber shapes
// spec.md §4.3 specifies: Subscriber (ordered FIFO), Unsubscriber
// (self-desubscribing), Resubscriber (keyed, self-desubscribing) and
// Desubscriber (keyed, single-target notify).
//
// Grounded on the teacher's single-callback Config pattern
// (_pkg.dev/connmgr/config.go's GetAddress/OnConnection/OnAccept fields,
// _pkg.dev/addrmgr's OnAddr/OnGetAddr responders), generalized here to
// ordered multi-callback fan-out with explicit stop semantics.
package subscribe

import "errors"

// ErrStopped is returned by Subscribe once the subscriber has been Stopped.
var ErrStopped = errors.New("subscriber stopped")

// ErrExists is returned by Resubscriber/Desubscriber Subscribe when the key
// is already registered.
var ErrExists = errors.New("subscriber exists")
