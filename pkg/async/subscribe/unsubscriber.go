package subscribe

// KeepHandler is a self-desubscribing callback: returning false removes it
// from its Unsubscriber/Resubscriber/Desubscriber in place, after this
// delivery.
type KeepHandler[T any] func(err error, args T) (keep bool)

// Unsubscriber is an ordered FIFO of handlers, like Subscriber, except each
// handler may remove itself by returning false from Notify.
type Unsubscriber[T any] struct {
	handlers []KeepHandler[T]
	stopped  bool
}

// NewUnsubscriber returns an empty Unsubscriber.
func NewUnsubscriber[T any]() *Unsubscriber[T] {
	return &Unsubscriber[T]{}
}

// Subscribe registers handler.
func (u *Unsubscriber[T]) Subscribe(h KeepHandler[T]) error {
	if u.stopped {
		return ErrStopped
	}
	u.handlers = append(u.handlers, h)
	return nil
}

// Notify invokes every handler once, in order, removing any that return
// false.
func (u *Unsubscriber[T]) Notify(err error, args T) {
	if u.stopped {
		return
	}
	kept := u.handlers[:0]
	for _, h := range u.handlers {
		if h(err, args) {
			kept = append(kept, h)
		}
	}
	u.handlers = kept
}

// Stop delivers (err, args) to every remaining handler once, ignoring the
// return value, then permanently empties the Unsubscriber.
func (u *Unsubscriber[T]) Stop(err error, args T) {
	if err == nil {
		panic("subscribe: Stop called with a nil (success) error")
	}
	if u.stopped {
		return
	}
	u.stopped = true
	handlers := u.handlers
	u.handlers = nil
	for _, h := range handlers {
		h(err, args)
	}
}

// Stopped reports whether Stop has already run.
func (u *Unsubscriber[T]) Stopped() bool {
	return u.stopped
}
