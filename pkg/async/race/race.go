// Package race implements the four N-way join combinators spec.md §4.4
// requires: Speed (first finish wins), Quality (waits for every
// participant, then resolves with the first success seen, else the
// last), Unity (first failure wins, else the last) and Volume (fires
// "sufficient" once a threshold of successes accumulates, and "complete"
// once every participant has finished).
//
// None of the teacher's own code ships a general combinator like this —
// _pkg.dev/server.Server.Run's dependency chain (connmgr → chain height →
// sync request) is the closest thing, a hand-rolled sequential version of
// the same "wait for N things, then proceed" idea. These types generalize
// that idiom into explicit, reusable small state machines, one per spec.md's
// four distinct winning rules, rather than a single general-purpose
// combinator (see spec.md §9's "Racer variety" design note).
//
// Racers are not thread-safe; each racer is meant to live on one strand, the
// same contract every other async primitive in this module carries.
package race

// Speed resolves as soon as the first of N expected Finish calls arrives;
// later Finish calls are dropped. The completion handler receives exactly
// the winning call's (err, val).
type Speed[T any] struct {
	remaining int
	done      bool
	onDone    func(err error, val T)
}

// NewSpeed creates a Speed racer expecting n participants, invoking onDone
// exactly once with the first Finish's arguments.
func NewSpeed[T any](n int, onDone func(err error, val T)) *Speed[T] {
	return &Speed[T]{remaining: n, onDone: onDone}
}

// Finish reports one participant's outcome. Only the first call across all
// participants has any effect.
func (s *Speed[T]) Finish(err error, val T) {
	if s.done || s.remaining <= 0 {
		return
	}
	s.remaining--
	s.done = true
	s.onDone(err, val)
}

// Quality waits for all n participants to report before resolving: the
// first one to report success (err == nil) wins, but if none ever
// succeed, the last Finish to arrive wins. Unlike Speed, a success does
// not short-circuit the wait — onDone only fires once every participant
// has finished.
type Quality[T any] struct {
	remaining int
	done      bool
	won       bool
	winner    struct {
		err error
		val T
	}
	last struct {
		err error
		val T
	}
	onDone func(err error, val T)
}

// NewQuality creates a Quality racer expecting n participants.
func NewQuality[T any](n int, onDone func(err error, val T)) *Quality[T] {
	return &Quality[T]{remaining: n, onDone: onDone}
}

// Finish reports one participant's outcome.
func (q *Quality[T]) Finish(err error, val T) {
	if q.done {
		return
	}
	q.remaining--
	q.last.err, q.last.val = err, val

	if err == nil && !q.won {
		q.won = true
		q.winner.err, q.winner.val = err, val
	}

	if q.remaining == 0 {
		q.done = true
		if q.won {
			q.onDone(q.winner.err, q.winner.val)
		} else {
			q.onDone(q.last.err, q.last.val)
		}
	}
}

// Unity waits for all n participants; the result is the first *failed*
// Finish's arguments, or, if every participant succeeded, the last Finish's
// arguments.
type Unity[T any] struct {
	remaining  int
	done       bool
	sawFailure bool
	failure    struct {
		err error
		val T
	}
	last struct {
		err error
		val T
	}
	onDone func(err error, val T)
}

// NewUnity creates a Unity racer expecting n participants.
func NewUnity[T any](n int, onDone func(err error, val T)) *Unity[T] {
	return &Unity[T]{remaining: n, onDone: onDone}
}

// Finish reports one participant's outcome.
func (u *Unity[T]) Finish(err error, val T) {
	if u.done {
		return
	}
	u.remaining--
	u.last.err, u.last.val = err, val

	if err != nil && !u.sawFailure {
		u.sawFailure = true
		u.failure.err, u.failure.val = err, val
	}
	if u.remaining == 0 {
		u.done = true
		if u.sawFailure {
			u.onDone(u.failure.err, u.failure.val)
		} else {
			u.onDone(u.last.err, u.last.val)
		}
	}
}

// Volume fires Sufficient exactly once — at the first Finish whose
// cumulative success count reaches required (with successCode), or at the
// last Finish if that threshold is never reached (with failCode) — and
// fires Complete exactly once, at the last Finish, always with
// successCode. Used by the seed session (spec.md §4.12) to proceed once
// "enough" addresses have been learned regardless of how many seeds are
// still outstanding.
type Volume[T any] struct {
	total       int
	remaining   int
	required    int
	successes   int
	sufficient  bool
	successCode error
	failCode    error
	last        struct {
		val T
	}
	onSufficient func(err error, val T)
	onComplete   func(err error, val T)
}

// NewVolume creates a Volume racer expecting n participants; Sufficient
// fires once `required` of them have reported success.
func NewVolume[T any](n, required int, successCode, failCode error, onSufficient, onComplete func(err error, val T)) *Volume[T] {
	return &Volume[T]{
		total: n, remaining: n, required: required,
		successCode: successCode, failCode: failCode,
		onSufficient: onSufficient, onComplete: onComplete,
	}
}

// Finish reports one participant's outcome. ok indicates this participant's
// contribution counts toward the required threshold (e.g. "this seed
// returned at least one usable address"), independent of whether the
// participant itself errored.
func (v *Volume[T]) Finish(ok bool, val T) {
	v.remaining--
	if ok {
		v.successes++
	}
	v.last.val = val

	if !v.sufficient && v.successes >= v.required {
		v.sufficient = true
		v.onSufficient(v.successCode, val)
	}
	if v.remaining == 0 {
		if !v.sufficient {
			v.sufficient = true
			v.onSufficient(v.failCode, v.last.val)
		}
		v.onComplete(v.successCode, v.last.val)
	}
}
