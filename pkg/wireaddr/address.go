package wireaddr

import "strconv"

// Service is a bit in an AddressRecord's open services bitfield.
type Service uint64

// Known service flags (spec.md §3). The bitfield is intentionally open:
// unrecognized bits round-trip unexamined.
const (
	ServiceNetwork        Service = 1 << 0
	ServiceUTXO           Service = 1 << 1
	ServiceBloom          Service = 1 << 2
	ServiceWitness        Service = 1 << 3
	ServiceCompactFilters Service = 1 << 4
	ServiceNetworkLimited Service = 1 << 5
)

// Has reports whether all bits of want are set in s.
func (s Service) Has(want Service) bool {
	return s&want == want
}

// AddressRecord is a timestamped, service-tagged peer address, as exchanged
// by the address-exchange protocol and stored in the host pool.
type AddressRecord struct {
	Timestamp uint32 // unix seconds
	Services  Service
	IP        [16]byte
	Port      uint16
}

// NewAddressRecord builds a record from an Authority plus metadata.
func NewAddressRecord(a Authority, timestamp uint32, services Service) AddressRecord {
	return AddressRecord{
		Timestamp: timestamp,
		Services:  services,
		IP:        a.IP,
		Port:      a.Port,
	}
}

// Authority discards the timestamp/services and returns the bare host id.
func (r AddressRecord) Authority() Authority {
	return Authority{IP: r.IP, Port: r.Port}
}

// IsSpecified reports whether the record names an actual reachable peer:
// non-zero port and non-zero ip.
func (r AddressRecord) IsSpecified() bool {
	return r.Port != 0 && r.IP != [16]byte{}
}

// Key is the dedup/hash key the host pool indexes records by: "ip:port",
// ignoring timestamp and services, matching the teacher's NetAddr.IPPort().
func (r AddressRecord) Key() string {
	return r.Authority().Net().String() + ":" + strconv.Itoa(int(r.Port))
}

// Equal compares two records ignoring timestamp/services, per spec.md §3.
func (r AddressRecord) Equal(o AddressRecord) bool {
	return r.IP == o.IP && r.Port == o.Port
}
