package subscribe

// Desubscriber matches Resubscriber's semantics and additionally supports
// NotifyOne, which delivers to exactly one handler (the one registered
// under the given key) instead of fanning out to all of them.
type Desubscriber[K comparable, T any] struct {
	handlers map[K]KeepHandler[T]
	stopped  bool
}

// NewDesubscriber returns an empty Desubscriber.
func NewDesubscriber[K comparable, T any]() *Desubscriber[K, T] {
	return &Desubscriber[K, T]{handlers: make(map[K]KeepHandler[T])}
}

// Subscribe registers handler under key.
func (d *Desubscriber[K, T]) Subscribe(key K, h KeepHandler[T]) error {
	if d.stopped {
		return ErrStopped
	}
	if _, ok := d.handlers[key]; ok {
		return ErrExists
	}
	d.handlers[key] = h
	return nil
}

// Desubscribe removes key's handler, if any, without invoking it.
func (d *Desubscriber[K, T]) Desubscribe(key K) {
	delete(d.handlers, key)
}

// Notify invokes every handler once, removing any that return false.
func (d *Desubscriber[K, T]) Notify(err error, args T) {
	if d.stopped {
		return
	}
	for k, h := range d.handlers {
		if !h(err, args) {
			delete(d.handlers, k)
		}
	}
}

// NotifyOne delivers (err, args) to exactly the handler registered under
// key, if any, removing it if it returns false. Reports whether a handler
// was found.
func (d *Desubscriber[K, T]) NotifyOne(key K, err error, args T) bool {
	if d.stopped {
		return false
	}
	h, ok := d.handlers[key]
	if !ok {
		return false
	}
	if !h(err, args) {
		delete(d.handlers, key)
	}
	return true
}

// Stop delivers (err, args) to every remaining handler once and then
// permanently empties the Desubscriber.
func (d *Desubscriber[K, T]) Stop(err error, args T) {
	if err == nil {
		panic("subscribe: Stop called with a nil (success) error")
	}
	if d.stopped {
		return
	}
	d.stopped = true
	handlers := d.handlers
	d.handlers = nil
	for _, h := range handlers {
		h(err, args)
	}
}

// Stopped reports whether Stop has already run.
func (d *Desubscriber[K, T]) Stopped() bool {
	return d.stopped
}
