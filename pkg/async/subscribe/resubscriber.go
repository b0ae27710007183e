package subscribe

// Resubscriber is a keyed, unordered set of self-desubscribing handlers.
// Subscribing an already-registered key fails with ErrExists.
type Resubscriber[K comparable, T any] struct {
	handlers map[K]KeepHandler[T]
	stopped  bool
}

// NewResubscriber returns an empty Resubscriber.
func NewResubscriber[K comparable, T any]() *Resubscriber[K, T] {
	return &Resubscriber[K, T]{handlers: make(map[K]KeepHandler[T])}
}

// Subscribe registers handler under key.
func (r *Resubscriber[K, T]) Subscribe(key K, h KeepHandler[T]) error {
	if r.stopped {
		return ErrStopped
	}
	if _, ok := r.handlers[key]; ok {
		return ErrExists
	}
	r.handlers[key] = h
	return nil
}

// Desubscribe removes key's handler, if any, without invoking it.
func (r *Resubscriber[K, T]) Desubscribe(key K) {
	delete(r.handlers, key)
}

// Notify invokes every handler once, removing any that return false.
func (r *Resubscriber[K, T]) Notify(err error, args T) {
	if r.stopped {
		return
	}
	for k, h := range r.handlers {
		if !h(err, args) {
			delete(r.handlers, k)
		}
	}
}

// Stop delivers (err, args) to every remaining handler once and then
// permanently empties the Resubscriber.
func (r *Resubscriber[K, T]) Stop(err error, args T) {
	if err == nil {
		panic("subscribe: Stop called with a nil (success) error")
	}
	if r.stopped {
		return
	}
	r.stopped = true
	handlers := r.handlers
	r.handlers = nil
	for _, h := range handlers {
		h(err, args)
	}
}

// Stopped reports whether Stop has already run.
func (r *Resubscriber[K, T]) Stopped() bool {
	return r.stopped
}

// Len reports the number of currently registered handlers.
func (r *Resubscriber[K, T]) Len() int {
	return len(r.handlers)
}
