package config

import (
	"fmt"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// P2P holds every configuration option spec.md §6 enumerates for the
// core, renamed to Go field conventions but otherwise a 1:1 mapping.
type P2P struct {
	Magic      uint32 `yaml:"Magic"`
	Identifier uint32 `yaml:"Identifier"`

	MinimumProtocol uint32 `yaml:"MinimumProtocol"`
	MaximumProtocol uint32 `yaml:"MaximumProtocol"`

	ServicesMinimum uint64 `yaml:"ServicesMinimum"`
	ServicesMaximum uint64 `yaml:"ServicesMaximum"`
	InvalidServices uint64 `yaml:"InvalidServices"`

	InboundConnections  int `yaml:"InboundConnections"`
	OutboundConnections int `yaml:"OutboundConnections"`
	ManualAttemptLimit  int `yaml:"ManualAttemptLimit"`
	ConnectBatchSize    int `yaml:"ConnectBatchSize"`

	ConnectTimeout        time.Duration `yaml:"ConnectTimeout"`
	ChannelHandshake      time.Duration `yaml:"ChannelHandshake"`
	ChannelHeartbeat      time.Duration `yaml:"ChannelHeartbeat"`
	ChannelInactivity     time.Duration `yaml:"ChannelInactivity"`
	ChannelExpiration     time.Duration `yaml:"ChannelExpiration"`
	HostPoolFlushInterval time.Duration `yaml:"HostPoolFlushInterval"`

	HostPoolCapacity int    `yaml:"HostPoolCapacity"` // 0 disables the pool (spec.md §4.11/§6)
	HostPoolFile     string `yaml:"HostPoolFile"`
	// HostPoolStatsFile names a bbolt database path for per-address dial
	// reliability stats (a spec.md-supplemental feature, see DESIGN.md).
	// Like HostPoolFile, a relative path is joined onto the base directory
	// given to the loader; nothing in this module opens a stats store from
	// it.
	HostPoolStatsFile string `yaml:"HostPoolStatsFile"`

	EnableIPv6        bool `yaml:"EnableIPv6"`
	EnableLoopback    bool `yaml:"EnableLoopback"`
	EnableReject      bool `yaml:"EnableReject"`
	EnableRelay       bool `yaml:"EnableRelay"`
	EnableTransaction bool `yaml:"EnableTransaction"`
	EnableAddress     bool `yaml:"EnableAddress"`
	EnableAddressV2   bool `yaml:"EnableAddressV2"`
	EnableWitnessTx   bool `yaml:"EnableWitnessTx"`

	Blacklists []string `yaml:"Blacklists"`
	Whitelists []string `yaml:"Whitelists"`
	Seeds      []string `yaml:"Seeds"`
	Selfs      []string `yaml:"Selfs"`
	Peers      []string `yaml:"Peers"` // manual, persistently-dialed endpoints
	Binds      []string `yaml:"Binds"` // inbound listen authorities
	SocksProxy string   `yaml:"SocksProxy"`

	UserAgent   string `yaml:"UserAgent"`
	StartHeight int32  `yaml:"StartHeight"`
	MaxPayload  uint32 `yaml:"MaxPayload"`
}

// defaultP2P matches the teacher's convention of seeding a few
// operationally-sane defaults into Config before the YAML decode
// overwrites whichever keys the file actually sets.
func defaultP2P() P2P {
	return P2P{
		MinimumProtocol:       31402,
		MaximumProtocol:       70016,
		ConnectTimeout:        5 * time.Second,
		ChannelHandshake:      5 * time.Second,
		ChannelHeartbeat:      30 * time.Second,
		ChannelInactivity:     90 * time.Second,
		ChannelExpiration:     24 * time.Hour,
		HostPoolFlushInterval: 10 * time.Minute,
		HostPoolCapacity:      2500,
		ConnectBatchSize:      8,
		MaxPayload:            4 << 20,
		EnableReject:          true,
	}
}

// Validate reports the first configuration error found, following the
// teacher's Logger.Validate convention of returning a single descriptive
// error rather than accumulating all of them.
func (p P2P) Validate() error {
	if p.Magic == 0 {
		return fmt.Errorf("p2p: Magic must be non-zero")
	}
	if p.MinimumProtocol > p.MaximumProtocol {
		return fmt.Errorf("p2p: MinimumProtocol (%d) exceeds MaximumProtocol (%d)", p.MinimumProtocol, p.MaximumProtocol)
	}
	if p.HostPoolCapacity < 0 {
		return fmt.Errorf("p2p: HostPoolCapacity must not be negative")
	}
	if p.InboundConnections < 0 || p.OutboundConnections < 0 {
		return fmt.Errorf("p2p: connection counts must not be negative")
	}
	for _, group := range [][]string{p.Blacklists, p.Whitelists, p.Selfs} {
		for _, s := range group {
			if _, err := wireaddr.NewAuthority(s); err != nil {
				return fmt.Errorf("p2p: %w", err)
			}
		}
	}
	for _, group := range [][]string{p.Seeds, p.Peers, p.Binds} {
		for _, s := range group {
			if _, err := wireaddr.NewEndpoint(s); err != nil {
				return fmt.Errorf("p2p: %w", err)
			}
		}
	}
	return nil
}

// Authorities parses a list of "ip:port[/cidr]" strings into Authorities,
// for Blacklists/Whitelists/Selfs. Validate must have already succeeded.
func Authorities(entries []string) []wireaddr.Authority {
	out := make([]wireaddr.Authority, 0, len(entries))
	for _, s := range entries {
		a, err := wireaddr.NewAuthority(s)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Endpoints parses a list of "[scheme://]host:port" strings into
// Endpoints, for Seeds/Peers/Binds. Validate must have already succeeded.
func Endpoints(entries []string) []wireaddr.Endpoint {
	out := make([]wireaddr.Endpoint, 0, len(entries))
	for _, s := range entries {
		e, err := wireaddr.NewEndpoint(s)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}
