package channel

import (
	"github.com/nspcc-dev/p2pnet/pkg/async/subscribe"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
)

// unknownBucket is the distributor's catch-all for commands with no
// registered subscriber (spec.md §4.6: "unknown commands are routed to
// the unknown bucket, which by default drops them").
const unknownBucket = "\x00unknown"

// Distributor holds one subscriber per known wire command and fans
// decoded messages out to it (spec.md §4.8). It is strand-local: every
// method must be called from the owning channel's strand.
type Distributor struct {
	buckets map[string]*subscribe.Subscriber[payload.Message]
}

// NewDistributor returns an empty Distributor with a default-dropping
// unknown bucket already wired.
func NewDistributor() *Distributor {
	d := &Distributor{buckets: make(map[string]*subscribe.Subscriber[payload.Message])}
	d.bucket(unknownBucket)
	return d
}

func (d *Distributor) bucket(command string) *subscribe.Subscriber[payload.Message] {
	b, ok := d.buckets[command]
	if !ok {
		b = subscribe.NewSubscriber[payload.Message]()
		d.buckets[command] = b
	}
	return b
}

// Subscribe registers handler for command's decoded messages.
func (d *Distributor) Subscribe(command string, handler subscribe.Handler[payload.Message]) error {
	return d.bucket(command).Subscribe(handler)
}

// SubscribeUnknown registers handler for commands with no dedicated
// bucket, overriding the default drop behavior.
func (d *Distributor) SubscribeUnknown(handler subscribe.Handler[payload.Message]) error {
	return d.bucket(unknownBucket).Subscribe(handler)
}

// Notify decodes raw as command and fans it out to the matching bucket
// (or the unknown bucket if none is registered). It returns
// ErrInvalidMessage on decode failure, never panics.
func (d *Distributor) Notify(command string, raw []byte) error {
	msg, err := payload.DecodeMessage(command, raw)
	if err != nil {
		return neterr.ErrInvalidMessage
	}

	b, ok := d.buckets[command]
	if !ok {
		b = d.buckets[unknownBucket]
	}
	b.Notify(nil, msg)
	return nil
}

// Stop cascades err to every bucket, terminating them all (spec.md §4.8).
func (d *Distributor) Stop(err error) {
	for _, b := range d.buckets {
		if !b.Stopped() {
			b.Stop(err, nil)
		}
	}
}
