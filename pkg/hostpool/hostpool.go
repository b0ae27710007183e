// Package hostpool implements the address pool (spec.md §4.11): a bounded,
// deduplicated, FIFO-ordered set of peer addresses, with line-oriented
// file persistence and take/restore bookkeeping for addresses currently
// being dialed. It is the one component spec.md calls out as reachable
// from multiple strands; it serializes its own mutations behind an
// internal mutex rather than a strand, since every operation here is pure
// in-memory bookkeeping with no suspension point.
package hostpool

import (
	"crypto/rand"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// keyOf derives the pool's dedup/lookup key for a bare Authority, matching
// AddressRecord.Key()'s "ip:port" convention.
func keyOf(a wireaddr.Authority) string {
	return wireaddr.NewAddressRecord(a, 0, 0).Key()
}

// FetchHandler receives a random batch of addresses, or address_empty if
// the pool (after filtering in-use/blacklisted/self entries) has none.
type FetchHandler func(err error, addrs []wireaddr.AddressRecord)

// SaveHandler receives the number of addresses actually accepted: new,
// specified, non-self, non-blacklisted entries not already known.
type SaveHandler func(err error, accepted int)

// Config configures a Pool. A zero Capacity disables the pool (every
// operation no-ops as if it were always empty), per spec.md §6.
type Config struct {
	Capacity  int
	FilePath  string
	Blacklist []wireaddr.Authority
	Selfs     []wireaddr.Authority

	// Logger receives corrupt-line warnings from the hosts file loader.
	// A nil Logger silently discards them.
	Logger *zap.Logger
}

// Pool is the address pool. All exported methods are safe to call from
// any goroutine/strand.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	records map[string]wireaddr.AddressRecord // key -> record
	inUse   map[string]bool
	order   []string // FIFO insertion order, oldest first

	stats *Stats
}

// New builds an unstarted Pool. A *Stats dial-reliability side-store can
// be attached via WithStats (a spec.md-supplemental feature; the pool's
// core contract does not require it); the Pool keeps the reference but
// none of its methods read or update it.
func New(cfg Config) *Pool {
	return &Pool{
		cfg:     cfg,
		records: make(map[string]wireaddr.AddressRecord),
		inUse:   make(map[string]bool),
	}
}

// WithStats attaches a dial-statistics side-store. Must be called before
// Start.
func (p *Pool) WithStats(s *Stats) *Pool {
	p.stats = s
	return p
}

// Start loads the hosts file (if configured); a missing file is not an
// error (first run).
func (p *Pool) Start() error {
	if p.cfg.Capacity <= 0 || p.cfg.FilePath == "" {
		return nil
	}
	records, err := loadFile(p.cfg.FilePath, p.cfg.Logger)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range records {
		if !p.makeRoomLocked() {
			break
		}
		p.insertLocked(r)
	}
	return nil
}

// Stop saves the hosts file (if configured).
func (p *Pool) Stop() error {
	if p.cfg.Capacity <= 0 || p.cfg.FilePath == "" {
		return nil
	}
	p.mu.Lock()
	records := make([]wireaddr.AddressRecord, 0, len(p.records))
	for _, k := range p.order {
		records = append(records, p.records[k])
	}
	p.mu.Unlock()
	return saveFile(p.cfg.FilePath, records)
}

// Count returns the current pool size.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Fetch returns a random selection of up to n addresses, filtering
// in-use, blacklisted and self entries. handler is invoked synchronously;
// callers on another strand should dispatch their own continuation.
func (p *Pool) Fetch(n int, handler FetchHandler) {
	p.mu.Lock()
	var candidates []wireaddr.AddressRecord
	for _, k := range p.order {
		if p.inUse[k] {
			continue
		}
		r := p.records[k]
		if p.blockedLocked(r.Authority()) {
			continue
		}
		candidates = append(candidates, r)
	}
	p.mu.Unlock()

	if len(candidates) == 0 {
		handler(neterr.ErrAddressEmpty, nil)
		return
	}
	shuffle(candidates)
	if n > 0 && n < len(candidates) {
		candidates = candidates[:n]
	}
	handler(nil, candidates)
}

// Save inserts new, deduplicated, non-self, non-blacklisted, specified
// addresses, evicting the oldest non-in-use entry at capacity. handler
// receives the number actually accepted.
func (p *Pool) Save(addresses []wireaddr.AddressRecord, handler SaveHandler) {
	if p.cfg.Capacity <= 0 {
		handler(nil, 0)
		return
	}
	p.mu.Lock()
	accepted := 0
	for _, r := range addresses {
		if !r.IsSpecified() {
			continue
		}
		if p.blockedLocked(r.Authority()) {
			continue
		}
		if _, known := p.records[r.Key()]; known {
			continue
		}
		if !p.makeRoomLocked() {
			continue
		}
		p.insertLocked(r)
		accepted++
	}
	p.mu.Unlock()
	handler(nil, accepted)
}

// Take marks address as in-use for the duration of an outbound dial
// attempt, excluding it from future Fetch results until Restore.
func (p *Pool) Take(a wireaddr.Authority) error {
	key := keyOf(a)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[key]; !ok {
		return neterr.ErrAddressNotFound
	}
	p.inUse[key] = true
	return nil
}

// Restore releases an address previously marked in-use by Take, making it
// eligible for Fetch again.
func (p *Pool) Restore(a wireaddr.Authority) error {
	key := keyOf(a)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[key]; !ok {
		return neterr.ErrAddressNotFound
	}
	delete(p.inUse, key)
	return nil
}

// insertLocked adds r to records/order, assuming the capacity check
// (makeRoomLocked) already ran. Duplicate keys overwrite in place without
// disturbing FIFO order.
func (p *Pool) insertLocked(r wireaddr.AddressRecord) {
	key := r.Key()
	if _, exists := p.records[key]; !exists {
		p.order = append(p.order, key)
	}
	p.records[key] = r
}

// makeRoomLocked evicts the oldest non-in-use entry if the pool is at
// capacity, per spec.md §4.11's FIFO eviction. Returns false if the pool
// is full of in-use entries and cannot make room.
func (p *Pool) makeRoomLocked() bool {
	if len(p.records) < p.cfg.Capacity {
		return true
	}
	for i, k := range p.order {
		if p.inUse[k] {
			continue
		}
		p.order = append(p.order[:i], p.order[i+1:]...)
		delete(p.records, k)
		return true
	}
	return false
}

// blockedLocked reports whether a is a self-address or matches a
// configured blacklist entry (spec.md §4.11/§4.15).
func (p *Pool) blockedLocked(a wireaddr.Authority) bool {
	for _, s := range p.cfg.Selfs {
		if a.Equal(s) {
			return true
		}
	}
	for _, b := range p.cfg.Blacklist {
		if a.Equal(b) {
			return true
		}
	}
	return false
}

func shuffle(r []wireaddr.AddressRecord) {
	for i := len(r) - 1; i > 0; i-- {
		j := randIntn(i + 1)
		r[i], r[j] = r[j], r[i]
	}
}

// randIntn returns a uniform random int in [0, n) via crypto/rand,
// matching the core's convention (see channel.randomNonce) of avoiding
// math/rand's global, non-cryptographic source.
func randIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
