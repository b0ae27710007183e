package socket

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// ErrStopped is delivered to any handler whose operation is canceled by
// Stop, and returned by operations issued after Stop (spec.md §4.5/§8).
var ErrStopped = errors.New("socket: stopped")

// ReadHandler receives the outcome of a ReadSome/Read call.
type ReadHandler func(err error, n int)

// WriteHandler receives the outcome of a queued Write.
type WriteHandler func(err error)

type writeRequest struct {
	payload []byte
	handler WriteHandler
}

// Socket owns a Transport (TCP or otherwise) plus its read/write
// accounting. It is single-reader, single-writer by contract (spec.md
// §4.5): callers serialize their own ReadSome/Read calls (the channel's
// strand does this above Socket), while Write is safe to call
// concurrently since it only ever enqueues onto socket's own FIFO.
type Socket struct {
	transport Transport
	strand    *strand.Strand

	mu       sync.Mutex
	queue    []writeRequest
	writing  bool
	stopped  bool
	stopOnce sync.Once

	backlog int64
	total   int64
}

// New wraps transport, posting read/write completions onto st.
func New(transport Transport, st *strand.Strand) *Socket {
	return &Socket{transport: transport, strand: st}
}

// RemoteAuthority returns the peer endpoint.
func (s *Socket) RemoteAuthority() wireaddr.Authority { return s.transport.RemoteAuthority() }

// LocalAuthority returns this endpoint's own bound address.
func (s *Socket) LocalAuthority() wireaddr.Authority { return s.transport.LocalAuthority() }

// ReadSome starts a best-effort read of up to len(buf) bytes, delivering
// the outcome to handler on the socket's strand.
func (s *Socket) ReadSome(buf []byte, handler ReadHandler) {
	if s.isStopped() {
		s.strand.Post(func() { handler(ErrStopped, 0) })
		return
	}
	go func() {
		n, err := s.transport.Read(buf)
		s.strand.Post(func() { handler(s.translateErr(err), n) })
	}()
}

// Read reads exactly len(buf) bytes (io.ReadFull semantics).
func (s *Socket) Read(buf []byte, handler ReadHandler) {
	if s.isStopped() {
		s.strand.Post(func() { handler(ErrStopped, 0) })
		return
	}
	go func() {
		n, err := io.ReadFull(s.transport, buf)
		s.strand.Post(func() { handler(s.translateErr(err), n) })
	}()
}

// Write enqueues payload for the socket's single write worker; handler
// fires on the strand once this exact chunk has been written (or failed).
func (s *Socket) Write(payload []byte, handler WriteHandler) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.strand.Post(func() { handler(ErrStopped) })
		return
	}
	s.queue = append(s.queue, writeRequest{payload: payload, handler: handler})
	atomic.AddInt64(&s.backlog, int64(len(payload)))
	startWorker := !s.writing
	if startWorker {
		s.writing = true
	}
	s.mu.Unlock()

	if startWorker {
		go s.writeLoop()
	}
}

func (s *Socket) writeLoop() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.writing = false
			s.mu.Unlock()
			return
		}
		req := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		_, err := s.transport.Write(req.payload)
		atomic.AddInt64(&s.backlog, -int64(len(req.payload)))
		if err == nil {
			atomic.AddInt64(&s.total, int64(len(req.payload)))
		}

		werr := s.translateErr(err)
		handler := req.handler
		s.strand.Post(func() { handler(werr) })
	}
}

// Backlog returns the number of bytes currently queued for write.
func (s *Socket) Backlog() int64 { return atomic.LoadInt64(&s.backlog) }

// Total returns the cumulative number of bytes successfully written.
func (s *Socket) Total() int64 { return atomic.LoadInt64(&s.total) }

// Stop idempotently closes the underlying transport; any in-flight or
// queued operation completes with ErrStopped.
func (s *Socket) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.transport.Close()
	})
}

func (s *Socket) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Socket) translateErr(err error) error {
	if err == nil {
		return nil
	}
	if s.isStopped() {
		return ErrStopped
	}
	return err
}
